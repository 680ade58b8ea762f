// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects the meeting bot publishes to or listens on.
const (
	// SessionUpdatedSubject carries a SessionEvent after every lifecycle outcome.
	// The subject is of the form: lfx.meeting-bot.session.updated
	SessionUpdatedSubject = "lfx.meeting-bot.session.updated"

	// AutoInstallSweepSubject triggers an auto-install sweep.
	// The subject is of the form: lfx.meeting-bot.autoinstall.sweep
	AutoInstallSweepSubject = "lfx.meeting-bot.autoinstall.sweep"

	// MeetingBotQueue is the queue group for the bot's subscriptions.
	MeetingBotQueue = "lfx.meeting-bot.queue"
)

// SessionEvent is published when a session reaches a new status.
type SessionEvent struct {
	ID           string        `json:"id"`
	MeetingID    string        `json:"meeting_id"`
	Status       SessionStatus `json:"status"`
	EventType    string        `json:"event_type,omitempty"`
	Title        string        `json:"title,omitempty"`
	BlobKey      string        `json:"blob_key,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
