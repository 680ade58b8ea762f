// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
)

// memorySessions is a SessionRepository that enforces the status rules and
// keeps the status history of every meeting. With rejectDone set, writes
// fail once their context is done, like a network-backed store.
type memorySessions struct {
	mu         sync.Mutex
	sessions   map[string]models.Session
	history    map[string][]models.SessionStatus
	rejectDone bool
}

func newMemorySessions() *memorySessions {
	return &memorySessions{
		sessions: map[string]models.Session{},
		history:  map[string][]models.SessionStatus{},
	}
}

func (m *memorySessions) Get(_ context.Context, meetingID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meetingID]
	if !ok {
		return nil, domain.NewNotFoundError("session not found")
	}
	return &s, nil
}

func (m *memorySessions) writable(ctx context.Context) error {
	if m.rejectDone {
		return ctx.Err()
	}
	return nil
}

func (m *memorySessions) Save(ctx context.Context, session *models.Session) error {
	if err := m.writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var from models.SessionStatus
	if current, ok := m.sessions[session.MeetingID]; ok {
		from = current.Status
	}
	if !models.CanSave(from, session.Status) {
		return domain.NewValidationError(fmt.Sprintf("cannot save %q over %q", session.Status, from))
	}
	session.Touch(time.Now())
	m.sessions[session.MeetingID] = *session
	m.history[session.MeetingID] = append(m.history[session.MeetingID], session.Status)
	return nil
}

func (m *memorySessions) UpdateStatus(ctx context.Context, meetingID string, status models.SessionStatus, fields models.SessionFields) error {
	if err := m.writable(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[meetingID]
	if !ok {
		return domain.NewNotFoundError("session not found")
	}
	if !models.CanTransition(current.Status, status) {
		return domain.NewValidationError(fmt.Sprintf("cannot move from %q to %q", current.Status, status))
	}
	fields.Apply(&current)
	current.Status = status
	current.Touch(time.Now())
	m.sessions[meetingID] = current
	m.history[meetingID] = append(m.history[meetingID], status)
	return nil
}

func (m *memorySessions) put(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.MeetingID] = s
}

func (m *memorySessions) statuses(meetingID string) []models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionStatus(nil), m.history[meetingID]...)
}

func (m *memorySessions) session(t *testing.T, meetingID string) models.Session {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meetingID]
	if !ok {
		t.Fatalf("no session stored for %s", meetingID)
	}
	return s
}

func testConfig() ServiceConfig {
	return ServiceConfig{
		BotName:          "Meeting Fetcher",
		BotAppID:         "bot-app",
		TranscriptFormat: "text/vtt",
		TranscriptRetry:  backoff.Policy{Attempts: 3},
		HandlerTimeout:   time.Minute,
	}
}

type lifecycleFixture struct {
	sessions *memorySessions
	graph    *mocks.MockGraphClient
	notifier *mocks.MockChatNotifier
	blobs    *mocks.MockTranscriptBlobStore
	events   *mocks.MockSessionEventSender
	service  *LifecycleService
}

func newLifecycleFixture(config ServiceConfig) *lifecycleFixture {
	f := &lifecycleFixture{
		sessions: newMemorySessions(),
		graph:    &mocks.MockGraphClient{},
		notifier: &mocks.MockChatNotifier{},
		blobs:    &mocks.MockTranscriptBlobStore{},
		events:   &mocks.MockSessionEventSender{},
	}
	f.service = NewLifecycleService(
		f.sessions,
		f.graph,
		NewTranscriptResolver(f.graph, config.TranscriptFormat),
		f.notifier,
		f.blobs,
		f.events,
		config,
	)
	f.events.On("SendSessionEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.service.sleep = func(context.Context, time.Duration) error { return nil }
	f.service.now = func() time.Time { return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC) }
	return f
}

func meetingEvent(name string, value map[string]any) *models.Activity {
	raw, _ := json.Marshal(value)
	return &models.Activity{
		Type:         models.ActivityTypeEvent,
		Name:         name,
		ID:           "activity-1",
		ServiceURL:   "https://smba.example/amer/",
		From:         models.ChannelAccount{ID: "29:from", AADObjectID: "U1"},
		Conversation: models.ConversationAccount{ID: "19:meeting_thread@thread.v2"},
		Value:        raw,
	}
}

func startEvent() *models.Activity {
	return meetingEvent(models.EventNameMeetingStart, map[string]any{
		"Id":        "M1",
		"JoinUrl":   "https://teams.example/l/meetup-join/abc",
		"Title":     "Weekly sync",
		"Organizer": map[string]any{"AadObjectId": "U1"},
	})
}

func endEvent() *models.Activity {
	return meetingEvent(models.EventNameMeetingEnd, map[string]any{
		"Id":      "M1",
		"JoinUrl": "https://teams.example/l/meetup-join/abc",
	})
}

func messageActivity(text string) *models.Activity {
	return &models.Activity{
		Type:         models.ActivityTypeMessage,
		ID:           "msg-1",
		Text:         text,
		ServiceURL:   "https://smba.example/amer/",
		From:         models.ChannelAccount{ID: "29:from", AADObjectID: "U1"},
		Conversation: models.ConversationAccount{ID: "19:meeting_thread@thread.v2"},
		ChannelData:  models.ChannelData{Meeting: models.MeetingInfo{ID: "M1"}},
	}
}
