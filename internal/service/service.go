// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

type Service interface {
	ServiceReady() bool
}

// ServiceConfig is the configuration for the Services.
type ServiceConfig struct {
	// BotName is shown in chat messages and stripped from commands.
	BotName string
	// BotAppID identifies the bot among added conversation members.
	BotAppID string
	// AllowedGroupID restricts recording to organizers in this group when set.
	AllowedGroupID string

	TranscriptFormat         string
	TranscriptInitialDelay   time.Duration
	TranscriptRetry          backoff.Policy
	TranscriptAttemptTimeout time.Duration

	// HandlerTimeout bounds the end-of-meeting pipeline once it is detached
	// from the inbound request.
	HandlerTimeout time.Duration

	// CatalogAppID is the app installed into meeting chats. Empty disables the sweep.
	CatalogAppID     string
	WatchedUserIDs   []string
	WatchedGroupID   string
	Lookahead        time.Duration
	SweepConcurrency int
}

func (c ServiceConfig) botName() string {
	if c.BotName == "" {
		return constants.DefaultBotName
	}
	return c.BotName
}

func (c ServiceConfig) transcriptFormat() string {
	if c.TranscriptFormat == "" {
		return constants.DefaultTranscriptFormat
	}
	return c.TranscriptFormat
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
