// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

var (
	// ErrTranscriptNotReady means the meeting exists but no transcript has
	// been produced yet. Callers retry on it.
	ErrTranscriptNotReady = errors.New("transcript not ready")
	// ErrOnlineMeetingNotFound means no online meeting matches the join URL.
	ErrOnlineMeetingNotFound = errors.New("online meeting not found")
)

// TranscriptResolver finds the transcript of a meeting from its join URL.
type TranscriptResolver struct {
	client domain.OnlineMeetingClient
	format string
}

// NewTranscriptResolver creates a resolver that downloads transcripts in format.
func NewTranscriptResolver(client domain.OnlineMeetingClient, format string) *TranscriptResolver {
	if format == "" {
		format = constants.DefaultTranscriptFormat
	}
	return &TranscriptResolver{client: client, format: format}
}

// Resolve runs one lookup attempt. It returns nil without error when there is
// nothing to look up, a permanent ErrOnlineMeetingNotFound when the join URL
// matches no meeting and ErrTranscriptNotReady when the meeting has no
// transcript yet.
func (r *TranscriptResolver) Resolve(ctx context.Context, joinURL, userID string) (*models.Transcript, error) {
	if joinURL == "" || userID == "" {
		slog.DebugContext(ctx, "transcript lookup skipped",
			"has_join_url", joinURL != "",
			"has_user_id", userID != "",
		)
		return nil, nil
	}

	meeting, err := r.client.FindOnlineMeetingByJoinURL(ctx, userID, joinURL)
	if err != nil {
		return nil, fmt.Errorf("looking up online meeting: %w", err)
	}
	if meeting == nil {
		return nil, backoff.Permanent(ErrOnlineMeetingNotFound)
	}

	transcripts, err := r.client.ListTranscripts(ctx, userID, meeting.ID)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil, ErrTranscriptNotReady
	}
	latest := transcripts[len(transcripts)-1]

	content, err := r.client.GetTranscriptContent(ctx, userID, meeting.ID, latest.ID, r.format)
	if err != nil {
		return nil, fmt.Errorf("downloading transcript %s: %w", latest.ID, err)
	}

	slog.DebugContext(ctx, "transcript resolved",
		"online_meeting_id", meeting.ID,
		"transcript_id", latest.ID,
		"transcript_count", len(transcripts),
		"length", len(content),
	)

	return &models.Transcript{
		ID:        latest.ID,
		MeetingID: meeting.ID,
		Format:    r.format,
		Content:   content,
		CreatedAt: latest.CreatedDateTime,
	}, nil
}
