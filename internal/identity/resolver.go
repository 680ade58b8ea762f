// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package identity resolves meeting and organizer identifiers from activity
// payloads whose shape differs between event kinds.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// SourceGenerated names the fallback used when no meeting id candidate matched.
const SourceGenerated = "generated"

// placeholderIDs are identifiers used for system or anonymous accounts.
var placeholderIDs = map[string]struct{}{
	"00000000-0000-0000-0000-000000000000": {},
	"00000000000000000000000000000000":     {},
	"0":                                    {},
}

// IsPlaceholder reports whether id is a reserved all-zero identifier.
func IsPlaceholder(id string) bool {
	_, ok := placeholderIDs[strings.TrimSpace(id)]
	return ok
}

// Candidate extracts one possible value from an activity.
type Candidate struct {
	Name    string
	Extract func(a *models.Activity) string
}

// Identity is the resolved meeting and organizer.
type Identity struct {
	MeetingID       string
	MeetingIDSource string
	OrganizerID     string
	OrganizerSource string
}

// MeetingIDCandidates are evaluated in order; the first non-empty value wins.
var MeetingIDCandidates = []Candidate{
	{Name: "value.id", Extract: func(a *models.Activity) string { return a.MeetingValue().ID }},
	{Name: "channelData.meeting.id", Extract: func(a *models.Activity) string { return a.ChannelData.Meeting.ID }},
	{Name: "conversation.id", Extract: func(a *models.Activity) string { return a.Conversation.ID }},
}

// OrganizerCandidates are evaluated in order; the first real identity wins.
var OrganizerCandidates = []Candidate{
	{Name: "value.organizer.aadObjectId", Extract: func(a *models.Activity) string { return a.MeetingValue().Organizer.AADObjectID }},
	{Name: "value.organizer.id", Extract: func(a *models.Activity) string { return a.MeetingValue().Organizer.ID }},
	{Name: "channelData.meeting.organizer.aadObjectId", Extract: func(a *models.Activity) string { return a.ChannelData.Meeting.Organizer.AADObjectID }},
	{Name: "channelData.meeting.organizer.id", Extract: func(a *models.Activity) string { return a.ChannelData.Meeting.Organizer.ID }},
	{Name: "from.aadObjectId", Extract: func(a *models.Activity) string { return a.From.AADObjectID }},
}

// Resolver picks identifiers from activities. It performs no I/O.
type Resolver struct {
	meetingIDs []Candidate
	organizers []Candidate
	now        func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for generated meeting ids.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver with the default candidate lists.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		meetingIDs: MeetingIDCandidates,
		organizers: OrganizerCandidates,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the meeting id and organizer id for the activity. The
// meeting id is never empty.
func (r *Resolver) Resolve(a *models.Activity) Identity {
	var id Identity
	id.MeetingID, id.MeetingIDSource = r.MeetingID(a)
	id.OrganizerID, id.OrganizerSource = r.OrganizerID(a)
	return id
}

// MeetingID returns the first non-empty meeting id candidate and its source,
// or a generated m-<millis> id.
func (r *Resolver) MeetingID(a *models.Activity) (string, string) {
	if a != nil {
		if v, name := first(a, r.meetingIDs, func(string) bool { return true }); v != "" {
			return v, name
		}
	}
	return fmt.Sprintf("m-%d", r.now().UnixMilli()), SourceGenerated
}

// OrganizerID returns the first organizer candidate that is not a placeholder,
// or empty strings.
func (r *Resolver) OrganizerID(a *models.Activity) (string, string) {
	if a == nil {
		return "", ""
	}
	return first(a, r.organizers, func(v string) bool { return !IsPlaceholder(v) })
}

func first(a *models.Activity, candidates []Candidate, accept func(string) bool) (string, string) {
	for _, c := range candidates {
		v := strings.TrimSpace(c.Extract(a))
		if v != "" && accept(v) {
			return v, c.Name
		}
	}
	return "", ""
}

// CandidateNames lists the meeting id and organizer candidates in the order
// they are tried.
func (r *Resolver) CandidateNames() (meetingIDs, organizers []string) {
	for _, c := range r.meetingIDs {
		meetingIDs = append(meetingIDs, c.Name)
	}
	for _, c := range r.organizers {
		organizers = append(organizers, c.Name)
	}
	return meetingIDs, organizers
}
