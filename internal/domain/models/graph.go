// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// OnlineMeeting is the upstream record behind a join URL.
type OnlineMeeting struct {
	ID         string
	JoinWebURL string
	Subject    string
	ThreadID   string
}

// TranscriptMetadata describes one transcript available for an online meeting.
type TranscriptMetadata struct {
	ID              string
	MeetingID       string
	CreatedDateTime time.Time
}

// Transcript is a downloaded transcript.
type Transcript struct {
	ID        string
	MeetingID string
	Format    string
	Content   []byte
	CreatedAt time.Time
}

// CalendarEvent is an upcoming calendar entry that carries an online meeting.
type CalendarEvent struct {
	ID              string
	Subject         string
	IsOnlineMeeting bool
	JoinURL         string
	Start           time.Time
	End             time.Time
}

// InstalledApp is an app installed in a chat.
type InstalledApp struct {
	ID          string
	TeamsAppID  string
	DisplayName string
}

// SweepResult aggregates the outcomes of one auto-install sweep.
type SweepResult struct {
	Action    string `json:"action"`
	Users     int    `json:"users"`
	Meetings  int    `json:"meetings"`
	Installed int    `json:"installed"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
}

// SweepActionComplete is the action reported by a finished sweep.
const SweepActionComplete = "poll_complete"
