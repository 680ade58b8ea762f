// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package graph

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURLFilter(t *testing.T) {
	tests := []struct {
		name    string
		joinURL string
		want    string
	}{
		{
			name:    "percent-encoded url is decoded",
			joinURL: "https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc%40thread.v2/0",
			want:    "JoinWebUrl eq 'https://teams.microsoft.com/l/meetup-join/19:meeting_abc@thread.v2/0'",
		},
		{
			name:    "single quotes are doubled",
			joinURL: "https://join/it's",
			want:    "JoinWebUrl eq 'https://join/it''s'",
		},
		{
			name:    "undecodable url is used as is",
			joinURL: "https://join/%zz",
			want:    "JoinWebUrl eq 'https://join/%zz'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinURLFilter(tt.joinURL))
		})
	}
}

func TestClient_FindOnlineMeetingByJoinURL(t *testing.T) {
	ctx := context.Background()

	t.Run("match", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1.0/users/org-1/onlineMeetings", r.URL.Path)
			assert.Equal(t, "JoinWebUrl eq 'https://join/1'", r.URL.Query().Get("$filter"))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"value": []map[string]any{{
					"id":         "om-1",
					"joinWebUrl": "https://join/1",
					"subject":    "Weekly sync",
					"chatInfo":   map[string]string{"threadId": "19:thread@thread.v2"},
				}},
			})
		})

		meeting, err := client.FindOnlineMeetingByJoinURL(ctx, "org-1", "https://join/1")
		require.NoError(t, err)
		require.NotNil(t, meeting)
		assert.Equal(t, "om-1", meeting.ID)
		assert.Equal(t, "Weekly sync", meeting.Subject)
		assert.Equal(t, "19:thread@thread.v2", meeting.ThreadID)
	})

	t.Run("no match", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{"value": []any{}})
		})

		meeting, err := client.FindOnlineMeetingByJoinURL(ctx, "org-1", "https://join/1")
		require.NoError(t, err)
		assert.Nil(t, meeting)
	})
}

func TestClient_ListTranscripts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/org-1/onlineMeetings/om-1/transcripts", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"value": []map[string]any{
				{"id": "t1", "createdDateTime": "2026-03-04T10:00:00Z"},
				{"id": "t2", "meetingId": "om-1", "createdDateTime": "2026-03-04T11:00:00Z"},
			},
		})
	})

	transcripts, err := client.ListTranscripts(context.Background(), "org-1", "om-1")
	require.NoError(t, err)
	require.Len(t, transcripts, 2)
	assert.Equal(t, "t1", transcripts[0].ID)
	assert.Equal(t, "om-1", transcripts[0].MeetingID)
	assert.Equal(t, "t2", transcripts[1].ID)
	assert.Equal(t, 11, transcripts[1].CreatedDateTime.Hour())
}

func TestClient_GetTranscriptContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/org-1/onlineMeetings/om-1/transcripts/t2/content", r.URL.Path)
		assert.Equal(t, "text/vtt", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/vtt")
		_, _ = w.Write([]byte("WEBVTT\n\n00:00.000 --> 00:01.000\nhello"))
	})

	content, err := client.GetTranscriptContent(context.Background(), "org-1", "om-1", "t2", "")
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n00:00.000 --> 00:01.000\nhello", string(content))
}
