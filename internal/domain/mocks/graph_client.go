// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// MockGraphClient implements GraphClient for testing
type MockGraphClient struct {
	mock.Mock
}

func (m *MockGraphClient) FindOnlineMeetingByJoinURL(ctx context.Context, userID, joinURL string) (*models.OnlineMeeting, error) {
	args := m.Called(ctx, userID, joinURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OnlineMeeting), args.Error(1)
}

func (m *MockGraphClient) ListTranscripts(ctx context.Context, userID, meetingID string) ([]models.TranscriptMetadata, error) {
	args := m.Called(ctx, userID, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TranscriptMetadata), args.Error(1)
}

func (m *MockGraphClient) GetTranscriptContent(ctx context.Context, userID, meetingID, transcriptID, format string) ([]byte, error) {
	args := m.Called(ctx, userID, meetingID, transcriptID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockGraphClient) IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error) {
	args := m.Called(ctx, userID, groupID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGraphClient) ListGroupMembers(ctx context.Context, groupID string) ([]string, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGraphClient) ListUpcomingOnlineMeetings(ctx context.Context, userID string, window time.Duration) ([]models.CalendarEvent, error) {
	args := m.Called(ctx, userID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CalendarEvent), args.Error(1)
}

func (m *MockGraphClient) ListInstalledApps(ctx context.Context, chatID string) ([]models.InstalledApp, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InstalledApp), args.Error(1)
}

func (m *MockGraphClient) InstallApp(ctx context.Context, chatID, catalogAppID string) error {
	args := m.Called(ctx, chatID, catalogAppID)
	return args.Error(0)
}
