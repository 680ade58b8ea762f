// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// OnlineMeetingClient looks up online meetings and their transcripts. All calls
// are scoped to a user because the unscoped endpoints do not support join URL
// filters.
type OnlineMeetingClient interface {
	// FindOnlineMeetingByJoinURL returns nil when no meeting matches.
	FindOnlineMeetingByJoinURL(ctx context.Context, userID, joinURL string) (*models.OnlineMeeting, error)
	ListTranscripts(ctx context.Context, userID, meetingID string) ([]models.TranscriptMetadata, error)
	GetTranscriptContent(ctx context.Context, userID, meetingID, transcriptID, format string) ([]byte, error)
}

// DirectoryClient answers group questions.
type DirectoryClient interface {
	IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// CalendarClient lists upcoming online meetings for a user.
type CalendarClient interface {
	ListUpcomingOnlineMeetings(ctx context.Context, userID string, window time.Duration) ([]models.CalendarEvent, error)
}

// ChatAppClient manages apps installed in a chat. InstallApp returns a
// conflict error when the app is already installed.
type ChatAppClient interface {
	ListInstalledApps(ctx context.Context, chatID string) ([]models.InstalledApp, error)
	InstallApp(ctx context.Context, chatID, catalogAppID string) error
}

// GraphClient is the full upstream directory and communications surface.
type GraphClient interface {
	OnlineMeetingClient
	DirectoryClient
	CalendarClient
	ChatAppClient
}

// ChatNotifier posts messages to a conversation through the messaging relay.
type ChatNotifier interface {
	SendMessage(ctx context.Context, serviceURL, conversationID, text string) error
	ReplyToActivity(ctx context.Context, serviceURL, conversationID, activityID, text string) error
}
