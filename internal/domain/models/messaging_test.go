// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessagingSubjects(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{
			name:     "SessionUpdatedSubject",
			subject:  SessionUpdatedSubject,
			expected: "lfx.meeting-bot.session.updated",
		},
		{
			name:     "AutoInstallSweepSubject",
			subject:  AutoInstallSweepSubject,
			expected: "lfx.meeting-bot.autoinstall.sweep",
		},
		{
			name:     "MeetingBotQueue",
			subject:  MeetingBotQueue,
			expected: "lfx.meeting-bot.queue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.subject != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.subject)
			}
		})
	}
}

func TestSessionEvent_JSON(t *testing.T) {
	event := SessionEvent{
		ID:         "evt-1",
		MeetingID:  "meeting-1",
		Status:     StatusCompleted,
		EventType:  EventTypeMeetingEnd,
		BlobKey:    "transcripts/2025-03-14/meeting-1.vtt",
		OccurredAt: time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}

	if raw["status"] != "completed" {
		t.Errorf("expected status 'completed', got %v", raw["status"])
	}
	if raw["meeting_id"] != "meeting-1" {
		t.Errorf("expected meeting_id 'meeting-1', got %v", raw["meeting_id"])
	}
	if _, ok := raw["error_message"]; ok {
		t.Error("expected empty error_message to be omitted")
	}
	if _, ok := raw["title"]; ok {
		t.Error("expected empty title to be omitted")
	}
}
