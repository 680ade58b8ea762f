// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"strings"
)

// Activity types.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeEvent              = "event"
	ActivityTypeConversationUpdate = "conversationUpdate"
	ActivityTypeInvoke             = "invoke"
)

// Meeting lifecycle event names.
const (
	EventNameMeetingStart = "application/vnd.microsoft.meetingStart"
	EventNameMeetingEnd   = "application/vnd.microsoft.meetingEnd"
)

// BotIDPrefix is prepended to the app id to form the bot's channel account id.
const BotIDPrefix = "28:"

// Activity is the envelope delivered by the messaging platform for every
// inbound message, event and membership change.
type Activity struct {
	Type         string              `json:"type"`
	Name         string              `json:"name,omitempty"`
	ID           string              `json:"id,omitempty"`
	Text         string              `json:"text,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelData  ChannelData         `json:"channelData"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
	Value        json.RawMessage     `json:"value,omitempty"`
}

// ChannelAccount identifies a user or bot on the channel.
type ChannelAccount struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID               string `json:"id,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

// ChannelData carries channel specific metadata.
type ChannelData struct {
	Tenant  TenantInfo  `json:"tenant"`
	Meeting MeetingInfo `json:"meeting"`
}

// TenantInfo identifies the tenant.
type TenantInfo struct {
	ID string `json:"id,omitempty"`
}

// MeetingInfo is the meeting reference nested in channel data.
type MeetingInfo struct {
	ID        string      `json:"id,omitempty"`
	JoinURL   string      `json:"joinUrl,omitempty"`
	Organizer Participant `json:"organizer"`
}

// Participant is an organizer reference in an event payload.
type Participant struct {
	ID          string `json:"id,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

// MeetingEventValue is the payload of a meeting start or end event. The
// platform sends these keys in PascalCase; decoding is case-insensitive so
// camelCase payloads land in the same fields.
type MeetingEventValue struct {
	ID          string      `json:"Id,omitempty"`
	JoinURL     string      `json:"JoinUrl,omitempty"`
	Title       string      `json:"Title,omitempty"`
	MeetingType string      `json:"MeetingType,omitempty"`
	StartTime   string      `json:"StartTime,omitempty"`
	EndTime     string      `json:"EndTime,omitempty"`
	Organizer   Participant `json:"Organizer"`
}

// MeetingValue decodes the event value. A missing or non-object value yields
// the zero value.
func (a *Activity) MeetingValue() MeetingEventValue {
	var v MeetingEventValue
	if a == nil || len(a.Value) == 0 {
		return v
	}
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return MeetingEventValue{}
	}
	return v
}

// IsMeetingStart reports whether the activity is a meeting start event.
func (a *Activity) IsMeetingStart() bool {
	return a.Type == ActivityTypeEvent && matchesEventName(a.Name, EventNameMeetingStart)
}

// IsMeetingEnd reports whether the activity is a meeting end event.
func (a *Activity) IsMeetingEnd() bool {
	return a.Type == ActivityTypeEvent && matchesEventName(a.Name, EventNameMeetingEnd)
}

func matchesEventName(name, full string) bool {
	if name == "" {
		return false
	}
	short := full[strings.LastIndex(full, ".")+1:]
	return strings.EqualFold(name, full) || strings.EqualFold(name, short)
}

// BotAdded reports whether the bot identified by botAppID is among the added members.
func (a *Activity) BotAdded(botAppID string) bool {
	for _, m := range a.MembersAdded {
		if m.ID == "" {
			continue
		}
		if (botAppID != "" && m.ID == BotIDPrefix+botAppID) || m.ID == a.Recipient.ID {
			return true
		}
	}
	return false
}

// JoinURL returns the join URL carried by the event, if any.
func (a *Activity) JoinURL() string {
	if v := a.MeetingValue(); v.JoinURL != "" {
		return v.JoinURL
	}
	return a.ChannelData.Meeting.JoinURL
}
