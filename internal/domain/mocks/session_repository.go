// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, meetingID string) (*models.Session, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Save(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateStatus(ctx context.Context, meetingID string, status models.SessionStatus, fields models.SessionFields) error {
	args := m.Called(ctx, meetingID, status, fields)
	return args.Error(0)
}

// MockInstallCache implements InstallCache for testing
type MockInstallCache struct {
	mock.Mock
}

func (m *MockInstallCache) GetInstallRecord(ctx context.Context, joinURL string) (*models.Session, error) {
	args := m.Called(ctx, joinURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockInstallCache) SaveInstallRecord(ctx context.Context, record *models.Session) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockTranscriptBlobStore implements TranscriptBlobStore for testing
type MockTranscriptBlobStore struct {
	mock.Mock
}

func (m *MockTranscriptBlobStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	args := m.Called(ctx, key, data, contentType, metadata)
	return args.Error(0)
}
