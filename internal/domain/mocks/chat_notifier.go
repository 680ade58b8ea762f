// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockChatNotifier implements ChatNotifier for testing
type MockChatNotifier struct {
	mock.Mock
}

func (m *MockChatNotifier) SendMessage(ctx context.Context, serviceURL, conversationID, text string) error {
	args := m.Called(ctx, serviceURL, conversationID, text)
	return args.Error(0)
}

func (m *MockChatNotifier) ReplyToActivity(ctx context.Context, serviceURL, conversationID, activityID, text string) error {
	args := m.Called(ctx, serviceURL, conversationID, activityID, text)
	return args.Error(0)
}
