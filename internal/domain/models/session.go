// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a meeting session.
type SessionStatus string

// Session statuses.
const (
	StatusActive                      SessionStatus = "active"
	StatusSkipped                     SessionStatus = "skipped"
	StatusEnded                       SessionStatus = "ended"
	StatusTranscriptFetched           SessionStatus = "transcript_fetched"
	StatusTranscriptStored            SessionStatus = "transcript_stored"
	StatusCompleted                   SessionStatus = "completed"
	StatusTranscriptFetchedNoDelivery SessionStatus = "transcript_fetched_no_delivery"
	StatusCompletedNoTranscript       SessionStatus = "completed_no_transcript"
	StatusError                       SessionStatus = "error"
	StatusBotInstalled                SessionStatus = "bot_installed"

	// StatusAutoInstalled is only used by install cache records.
	StatusAutoInstalled SessionStatus = "auto_installed"
)

// Event types recorded on the session by the entry point that last wrote it.
const (
	EventTypeMeetingStart = "meeting_start"
	EventTypeMeetingEnd   = "meeting_end"
	EventTypeManualRecord = "manual_record"
	EventTypeBotInstalled = "bot_installed"
	EventTypeAutoInstall  = "auto_install"
)

// Skip reasons.
const (
	SkipReasonOrganizerNotInGroup = "organizer_not_in_group"
)

// SessionTTL is how long a session is retained after its last write.
const SessionTTL = 7 * 24 * time.Hour

// InstallRecordPrefix reserves the key namespace used by install cache records.
const InstallRecordPrefix = "autoinstall:"

// installRecordJoinURLLength is how much of the join URL goes into an install cache key.
const installRecordJoinURLLength = 200

// transitions lists the statuses reachable through a status update.
var transitions = map[SessionStatus][]SessionStatus{
	StatusActive:            {StatusSkipped, StatusEnded, StatusError},
	StatusBotInstalled:      {StatusActive, StatusEnded, StatusError},
	StatusEnded:             {StatusTranscriptFetched, StatusCompletedNoTranscript, StatusError},
	StatusTranscriptFetched: {StatusTranscriptStored, StatusCompleted, StatusTranscriptFetchedNoDelivery, StatusError},
	StatusTranscriptStored:  {StatusCompleted, StatusTranscriptFetchedNoDelivery, StatusError},
}

var knownStatuses = map[SessionStatus]struct{}{
	StatusActive:                      {},
	StatusSkipped:                     {},
	StatusEnded:                       {},
	StatusTranscriptFetched:           {},
	StatusTranscriptStored:            {},
	StatusCompleted:                   {},
	StatusTranscriptFetchedNoDelivery: {},
	StatusCompletedNoTranscript:       {},
	StatusError:                       {},
	StatusBotInstalled:                {},
	StatusAutoInstalled:               {},
}

// Valid reports whether s is one of the defined statuses.
func (s SessionStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// IsTerminal reports whether no status update can move a session out of s.
func (s SessionStatus) IsTerminal() bool {
	_, ok := transitions[s]
	return s.Valid() && !ok
}

// CanEnd reports whether a meeting end may start the transcript pipeline for
// a session in s.
func (s SessionStatus) CanEnd() bool {
	return s == StatusActive || s == StatusBotInstalled
}

// CanTransition reports whether a status update from one status to another is
// defined. Rewriting the same status is allowed, except ended which is
// entered once per lifecycle.
func CanTransition(from, to SessionStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return from != StatusEnded
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanSave reports whether a full write of a session with status to is allowed
// over an existing record in status from. An empty from means no record exists.
func CanSave(from, to SessionStatus) bool {
	switch to {
	case StatusActive:
		return true
	case StatusBotInstalled:
		return from == "" || from == StatusBotInstalled
	case StatusAutoInstalled:
		return false
	}
	return from == "" || CanTransition(from, to)
}

// Session is the record kept for one meeting.
type Session struct {
	MeetingID      string        `json:"meeting_id"`
	Status         SessionStatus `json:"status"`
	JoinURL        string        `json:"join_url,omitempty"`
	Title          string        `json:"title,omitempty"`
	OrganizerID    string        `json:"organizer_id,omitempty"`
	ServiceURL     string        `json:"service_url,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	FromID         string        `json:"from_id,omitempty"`
	EventType      string        `json:"event_type,omitempty"`
	ReceivedAt     time.Time     `json:"received_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	ExpiresAt      time.Time     `json:"expires_at"`

	ErrorMessage     string `json:"error_message,omitempty"`
	SkipReason       string `json:"skip_reason,omitempty"`
	TranscriptLength int    `json:"transcript_length,omitempty"`
	TranscriptID     string `json:"transcript_id,omitempty"`
	BlobKey          string `json:"blob_key,omitempty"`
}

// CanDeliver reports whether the session has enough routing data to post to its chat.
func (s *Session) CanDeliver() bool {
	return s != nil && s.ServiceURL != "" && s.ConversationID != ""
}

// Touch stamps the write time and the resulting expiry.
func (s *Session) Touch(now time.Time) {
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = now
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(SessionTTL)
}

// SessionFields is a partial update. Nil fields are left untouched.
type SessionFields struct {
	JoinURL          *string
	Title            *string
	OrganizerID      *string
	ServiceURL       *string
	ConversationID   *string
	FromID           *string
	EventType        *string
	ErrorMessage     *string
	SkipReason       *string
	TranscriptLength *int
	TranscriptID     *string
	BlobKey          *string
}

// Apply merges the non-nil fields into s.
func (f SessionFields) Apply(s *Session) {
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&s.JoinURL, f.JoinURL)
	assign(&s.Title, f.Title)
	assign(&s.OrganizerID, f.OrganizerID)
	assign(&s.ServiceURL, f.ServiceURL)
	assign(&s.ConversationID, f.ConversationID)
	assign(&s.FromID, f.FromID)
	assign(&s.EventType, f.EventType)
	assign(&s.ErrorMessage, f.ErrorMessage)
	assign(&s.SkipReason, f.SkipReason)
	assign(&s.TranscriptID, f.TranscriptID)
	assign(&s.BlobKey, f.BlobKey)
	if f.TranscriptLength != nil {
		s.TranscriptLength = *f.TranscriptLength
	}
}

// IsInstallRecordKey reports whether id falls in the install cache namespace.
func IsInstallRecordKey(id string) bool {
	return strings.HasPrefix(id, InstallRecordPrefix)
}

// InstallRecordKey returns the install cache key for a join URL.
func InstallRecordKey(joinURL string) string {
	runes := []rune(joinURL)
	if len(runes) > installRecordJoinURLLength {
		runes = runes[:installRecordJoinURLLength]
	}
	return InstallRecordPrefix + string(runes)
}
