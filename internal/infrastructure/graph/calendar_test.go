// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListUpcomingOnlineMeetings(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/u1/calendarView", r.URL.Path)
		assert.Equal(t, "2026-03-04T09:00:00Z", r.URL.Query().Get("startDateTime"))
		assert.Equal(t, "2026-03-04T10:00:00Z", r.URL.Query().Get("endDateTime"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"value": []map[string]any{
				{
					"id":              "e1",
					"subject":         "Standup",
					"isOnlineMeeting": true,
					"onlineMeeting":   map[string]string{"joinUrl": "https://join/1"},
					"start":           map[string]string{"dateTime": "2026-03-04T09:30:00.0000000", "timeZone": "UTC"},
					"end":             map[string]string{"dateTime": "2026-03-04T09:45:00.0000000", "timeZone": "UTC"},
				},
				{"id": "e2", "subject": "Lunch", "isOnlineMeeting": false},
				{"id": "e3", "subject": "Broken", "isOnlineMeeting": true, "onlineMeeting": nil},
			},
		})
	})
	client.now = func() time.Time { return now }

	events, err := client.ListUpcomingOnlineMeetings(context.Background(), "u1", time.Hour)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "https://join/1", events[0].JoinURL)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 45, 0, 0, time.UTC), events[0].End)
}
