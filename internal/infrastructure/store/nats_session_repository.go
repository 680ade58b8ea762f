// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
)

// maxWriteAttempts bounds the read-modify-write loop when another writer
// changes the record between the read and the conditional update.
const maxWriteAttempts = 3

// NatsSessionRepository stores meeting sessions and install cache records in
// a single NATS KV bucket. Expiry is enforced by the bucket TTL.
type NatsSessionRepository struct {
	base *NatsBaseRepository[models.Session]
	keys *KeyBuilder
	now  func() time.Time
}

// NewNatsSessionRepository creates a session repository over kvStore.
func NewNatsSessionRepository(kvStore INatsKeyValue) *NatsSessionRepository {
	return &NatsSessionRepository{
		base: NewNatsBaseRepository[models.Session](kvStore, "session"),
		keys: NewKeyBuilder(""),
		now:  time.Now,
	}
}

// IsReady reports whether the underlying bucket is available.
func (r *NatsSessionRepository) IsReady() bool {
	return r.base.IsReady()
}

// Get returns the session for meetingID or a not found error.
func (r *NatsSessionRepository) Get(ctx context.Context, meetingID string) (*models.Session, error) {
	if meetingID == "" {
		return nil, domain.NewValidationError("meeting id is required")
	}
	return r.base.Get(ctx, r.keys.SessionKey(meetingID))
}

// Save writes a full session record. It starts a lifecycle (active), records
// an ad-hoc end (ended) or marks a fresh install (bot_installed, only when no
// record exists yet).
func (r *NatsSessionRepository) Save(ctx context.Context, session *models.Session) error {
	if session == nil || session.MeetingID == "" {
		return domain.NewValidationError("meeting id is required")
	}
	if models.IsInstallRecordKey(session.MeetingID) {
		return domain.NewValidationError(fmt.Sprintf("meeting id must not start with %q", models.InstallRecordPrefix))
	}
	if !session.Status.Valid() {
		return domain.NewValidationError(fmt.Sprintf("unknown session status %q", session.Status))
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", session.MeetingID))

	return r.write(ctx, r.keys.SessionKey(session.MeetingID), func(current *models.Session) (*models.Session, error) {
		var from models.SessionStatus
		if current != nil {
			from = current.Status
		}
		if !models.CanSave(from, session.Status) {
			slog.WarnContext(ctx, "rejected session write",
				"from_status", from, "to_status", session.Status)
			return nil, domain.NewValidationError(
				fmt.Sprintf("cannot save session in status %q over %q", session.Status, from))
		}
		session.Touch(r.now())
		return session, nil
	})
}

// UpdateStatus moves a stored session to status and merges the non-nil fields.
func (r *NatsSessionRepository) UpdateStatus(ctx context.Context, meetingID string, status models.SessionStatus, fields models.SessionFields) error {
	if meetingID == "" {
		return domain.NewValidationError("meeting id is required")
	}

	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	return r.write(ctx, r.keys.SessionKey(meetingID), func(current *models.Session) (*models.Session, error) {
		if current == nil {
			return nil, domain.NewNotFoundError(fmt.Sprintf("session %s not found", meetingID))
		}
		if !models.CanTransition(current.Status, status) {
			slog.WarnContext(ctx, "rejected session status transition",
				"from_status", current.Status, "to_status", status)
			return nil, domain.NewValidationError(
				fmt.Sprintf("cannot move session from %q to %q", current.Status, status))
		}
		next := *current
		next.Status = status
		fields.Apply(&next)
		next.Touch(r.now())
		return &next, nil
	})
}

// GetInstallRecord returns the install cache record for a join URL.
func (r *NatsSessionRepository) GetInstallRecord(ctx context.Context, joinURL string) (*models.Session, error) {
	if joinURL == "" {
		return nil, domain.NewValidationError("join url is required")
	}
	return r.base.Get(ctx, r.keys.InstallRecordKey(models.InstallRecordKey(joinURL)))
}

// SaveInstallRecord writes an install cache record keyed by its join URL.
func (r *NatsSessionRepository) SaveInstallRecord(ctx context.Context, record *models.Session) error {
	if record == nil || record.JoinURL == "" {
		return domain.NewValidationError("join url is required")
	}

	record.MeetingID = models.InstallRecordKey(record.JoinURL)
	record.Status = models.StatusAutoInstalled
	record.EventType = models.EventTypeAutoInstall
	record.Touch(r.now())

	return r.base.Put(ctx, r.keys.InstallRecordKey(record.MeetingID), record)
}

func (r *NatsSessionRepository) write(ctx context.Context, key string, next func(current *models.Session) (*models.Session, error)) error {
	for attempt := 1; ; attempt++ {
		current, revision, err := r.base.GetWithRevision(ctx, key)
		if err != nil {
			if !domain.IsNotFound(err) {
				return err
			}
			current, revision = nil, 0
		}

		updated, err := next(current)
		if err != nil {
			return err
		}

		err = r.base.Update(ctx, key, updated, revision)
		if err == nil {
			return nil
		}
		if !domain.IsConflict(err) || attempt >= maxWriteAttempts {
			return err
		}
		slog.DebugContext(ctx, "session modified concurrently, retrying write", "attempt", attempt)
	}
}
