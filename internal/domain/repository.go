// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// SessionRepository stores one session per meeting id.
type SessionRepository interface {
	// Get returns the session or a not found error.
	Get(ctx context.Context, meetingID string) (*models.Session, error)
	// Save upserts the full session.
	Save(ctx context.Context, session *models.Session) error
	// UpdateStatus moves the session to status and merges fields into it.
	UpdateStatus(ctx context.Context, meetingID string, status models.SessionStatus, fields models.SessionFields) error
}

// InstallCache remembers chats where the bot was already installed.
type InstallCache interface {
	GetInstallRecord(ctx context.Context, joinURL string) (*models.Session, error)
	SaveInstallRecord(ctx context.Context, record *models.Session) error
}

// TranscriptBlobStore keeps raw transcript content.
type TranscriptBlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
}
