// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"net/url"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// graphDateTimeLayout is the dateTimeTimeZone format used by calendar events.
const graphDateTimeLayout = "2006-01-02T15:04:05.9999999"

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (d dateTimeTimeZone) time() time.Time {
	loc := time.UTC
	if d.TimeZone != "" {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphDateTimeLayout, d.DateTime, loc)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type calendarEvent struct {
	ID              string           `json:"id"`
	Subject         string           `json:"subject"`
	IsOnlineMeeting bool             `json:"isOnlineMeeting"`
	Start           dateTimeTimeZone `json:"start"`
	End             dateTimeTimeZone `json:"end"`
	OnlineMeeting   *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
}

// ListUpcomingOnlineMeetings returns the user's online meetings starting
// within window from now. Events without a join URL are dropped.
func (c *Client) ListUpcomingOnlineMeetings(ctx context.Context, userID string, window time.Duration) ([]models.CalendarEvent, error) {
	now := c.now().UTC()
	query := url.Values{
		"startDateTime": {now.Format(time.RFC3339)},
		"endDateTime":   {now.Add(window).Format(time.RFC3339)},
		"$select":       {"id,subject,isOnlineMeeting,onlineMeeting,start,end"},
	}

	events, err := getAll[calendarEvent](ctx, c, userPath(userID)+"/calendarView?"+query.Encode())
	if err != nil {
		return nil, err
	}

	meetings := make([]models.CalendarEvent, 0, len(events))
	for _, e := range events {
		if !e.IsOnlineMeeting || e.OnlineMeeting == nil || e.OnlineMeeting.JoinURL == "" {
			continue
		}
		meetings = append(meetings, models.CalendarEvent{
			ID:              e.ID,
			Subject:         e.Subject,
			IsOnlineMeeting: true,
			JoinURL:         e.OnlineMeeting.JoinURL,
			Start:           e.Start.time(),
			End:             e.End.time(),
		})
	}
	return meetings, nil
}
