// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
)

type activityFixture struct {
	sessions *mocks.MockSessionRepository
	graph    *mocks.MockGraphClient
	notifier *mocks.MockChatNotifier
	handler  *ActivityHandler
}

func newActivityFixture() *activityFixture {
	f := &activityFixture{
		sessions: &mocks.MockSessionRepository{},
		graph:    &mocks.MockGraphClient{},
		notifier: &mocks.MockChatNotifier{},
	}
	config := service.ServiceConfig{
		BotName:         "Meeting Fetcher",
		BotAppID:        "bot-app",
		TranscriptRetry: backoff.Policy{Attempts: 1},
	}
	lifecycle := service.NewLifecycleService(
		f.sessions,
		f.graph,
		service.NewTranscriptResolver(f.graph, ""),
		f.notifier,
		nil,
		nil,
		config,
	)
	commands := service.NewCommandService(lifecycle, f.sessions, f.notifier, config)
	f.handler = NewActivityHandler(lifecycle, commands)
	return f
}

func (f *activityFixture) post(body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeActivityResponse(t *testing.T, rec *httptest.ResponseRecorder) ActivityResponse {
	t.Helper()
	var resp ActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestActivityHandler_Malformed(t *testing.T) {
	f := newActivityFixture()

	rec := f.post(`{"type":"event",`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusBadRequest, errResp.Code)
	f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivityHandler_IgnoredActivities(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "whitespace body", body: "  \n"},
		{name: "unknown type", body: `{"type":"typing"}`},
		{name: "unknown event", body: `{"type":"event","name":"application/vnd.microsoft.readReceipt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newActivityFixture()
			rec := f.post(tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.False(t, decodeActivityResponse(t, rec).Handled)
			f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestActivityHandler_MeetingStart(t *testing.T) {
	f := newActivityFixture()
	f.sessions.On("Save", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
		return s.MeetingID == "M1" && s.OrganizerID == "U1" && s.Status == models.StatusActive
	})).Return(nil).Once()
	f.notifier.On("SendMessage", mock.Anything, "https://smba.example/", "19:chat", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "recorded")
	})).Return(nil).Once()

	rec := f.post(`{
		"type": "event",
		"name": "application/vnd.microsoft.meetingStart",
		"serviceUrl": "https://smba.example/",
		"conversation": {"id": "19:chat"},
		"value": {"Id": "M1", "Title": "Sync", "Organizer": {"AadObjectId": "U1"}}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeActivityResponse(t, rec)
	assert.True(t, resp.Handled)
	assert.Equal(t, RouteMeetingStart, resp.Route)
	assert.Equal(t, "M1", resp.MeetingID)
	assert.Equal(t, models.StatusActive, resp.Status)
	f.sessions.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestActivityHandler_MeetingStartStoreFailure(t *testing.T) {
	f := newActivityFixture()
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(domain.NewUnavailableError("kv down"))

	rec := f.post(`{"type":"event","name":"meetingStart","value":{"Id":"M1"}}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestActivityHandler_MeetingEndWithoutSession(t *testing.T) {
	f := newActivityFixture()
	f.sessions.On("Get", mock.Anything, "M1").Return(nil, domain.NewNotFoundError("missing"))

	rec := f.post(`{"type":"event","name":"application/vnd.microsoft.meetingEnd","value":{"Id":"M1"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeActivityResponse(t, rec)
	assert.False(t, resp.Handled)
	assert.Equal(t, RouteMeetingEnd, resp.Route)
	f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestActivityHandler_Message(t *testing.T) {
	f := newActivityFixture()
	f.notifier.On("ReplyToActivity", mock.Anything, "https://smba.example/", "19:chat", "a1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "**Meeting Fetcher Help**")
	})).Return(nil).Once()

	rec := f.post(`{
		"type": "message",
		"id": "a1",
		"text": "<at>Meeting Fetcher</at> help",
		"serviceUrl": "https://smba.example/",
		"conversation": {"id": "19:chat"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeActivityResponse(t, rec)
	assert.Equal(t, RouteCommand, resp.Route)
	assert.Equal(t, service.CommandHelp, resp.Command)
	f.notifier.AssertExpectations(t)
}

func TestActivityHandler_ConversationUpdate(t *testing.T) {
	t.Run("user added", func(t *testing.T) {
		f := newActivityFixture()
		rec := f.post(`{"type":"conversationUpdate","recipient":{"id":"28:bot-app"},"membersAdded":[{"id":"29:user"}]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeActivityResponse(t, rec).Handled)
	})

	t.Run("bot added", func(t *testing.T) {
		f := newActivityFixture()
		f.sessions.On("Get", mock.Anything, "19:chat").Return(nil, domain.NewNotFoundError("missing"))
		f.sessions.On("Save", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
			return s.Status == models.StatusBotInstalled
		})).Return(nil)
		f.notifier.On("SendMessage", mock.Anything, "https://smba.example/", "19:chat", mock.Anything).Return(nil).Once()

		rec := f.post(`{
			"type": "conversationUpdate",
			"serviceUrl": "https://smba.example/",
			"recipient": {"id": "28:bot-app"},
			"conversation": {"id": "19:chat"},
			"membersAdded": [{"id": "28:bot-app"}]
		}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeActivityResponse(t, rec)
		assert.True(t, resp.Handled)
		assert.Equal(t, models.StatusBotInstalled, resp.Status)
		f.notifier.AssertExpectations(t)
	})
}

func TestSweepHandler_HTTP(t *testing.T) {
	graph := &mocks.MockGraphClient{}
	graph.On("ListUpcomingOnlineMeetings", mock.Anything, mock.Anything, mock.Anything).Return([]models.CalendarEvent{}, nil)
	h := NewSweepHandler(service.NewAutoInstallService(graph, &mocks.MockInstallCache{}, service.ServiceConfig{
		CatalogAppID:   "app",
		WatchedUserIDs: []string{"U1", "U2"},
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/sweep", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.SweepResult{Action: "poll_complete", Users: 2}, result)
}

func TestSweepHandler_HandleMessage(t *testing.T) {
	newHandler := func() *SweepHandler {
		return NewSweepHandler(service.NewAutoInstallService(&mocks.MockGraphClient{}, &mocks.MockInstallCache{}, service.ServiceConfig{}))
	}

	t.Run("replies with the result", func(t *testing.T) {
		msg := mocks.NewMockMessage(nil, models.AutoInstallSweepSubject)
		msg.On("HasReply").Return(true)
		msg.On("Respond", mock.MatchedBy(func(data []byte) bool {
			var result models.SweepResult
			return json.Unmarshal(data, &result) == nil && result.Action == models.SweepActionComplete
		})).Return(nil).Once()

		newHandler().HandleMessage(t.Context(), msg)
		msg.AssertExpectations(t)
	})

	t.Run("no reply subject", func(t *testing.T) {
		msg := mocks.NewMockMessage(nil, models.AutoInstallSweepSubject)
		msg.On("HasReply").Return(false)

		newHandler().HandleMessage(t.Context(), msg)
		msg.AssertNotCalled(t, "Respond", mock.Anything)
	})

	t.Run("unknown subject", func(t *testing.T) {
		msg := mocks.NewMockMessage(nil, "lfx.meeting-bot.unknown")
		msg.On("HasReply").Return(true)
		msg.On("Respond", []byte(nil)).Return(nil).Once()

		newHandler().HandleMessage(t.Context(), msg)
		msg.AssertExpectations(t)
	})
}

func TestConfigPageHandler(t *testing.T) {
	h, err := NewConfigPageHandler("Transcript Bot")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bot/config", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Transcript Bot</title>")
	assert.Contains(t, body, "<strong>Transcript Bot</strong>")
	assert.Contains(t, body, "<table>")
}

type readyStub bool

func (r readyStub) HandlerReady() bool { return bool(r) }

func TestHealthHandlers(t *testing.T) {
	rec := httptest.NewRecorder()
	Livez(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Readyz(readyStub(true), readyStub(true))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Readyz(readyStub(true), readyStub(false))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
