// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package botframework posts messages into conversations through the Bot
// Connector REST API.
package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/oauth"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

// Scope is the Bot Connector token audience.
const Scope = "https://api.botframework.com/.default"

// Config holds the bot registration credentials.
type Config struct {
	TenantID      string
	AppID         string
	AppSecret     string
	AuthorityHost string
	// Optional: override token URL for testing
	TokenURL string
	Timeout  time.Duration
}

// Relay sends bot messages to the conversation a session is bound to.
type Relay struct {
	httpClient func() *http.Client
}

var _ domain.ChatNotifier = (*Relay)(nil)

// NewRelay creates a relay. The authenticated HTTP client is built lazily.
func NewRelay(config Config) *Relay {
	return &Relay{
		httpClient: oauth.NewLazyClient(oauth.Credentials{
			TenantID:      config.TenantID,
			ClientID:      config.AppID,
			ClientSecret:  config.AppSecret,
			Scopes:        []string{Scope},
			AuthorityHost: config.AuthorityHost,
			TokenURL:      config.TokenURL,
			Timeout:       config.Timeout,
		}),
	}
}

// outgoingActivity is the message activity posted to a conversation.
type outgoingActivity struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	TextFormat string `json:"textFormat"`
	ReplyToID  string `json:"replyToId,omitempty"`
}

// SendMessage posts a markdown message to the conversation.
func (r *Relay) SendMessage(ctx context.Context, serviceURL, conversationID, text string) error {
	endpoint, err := activitiesURL(serviceURL, conversationID, "")
	if err != nil {
		return err
	}
	return r.post(ctx, endpoint, outgoingActivity{
		Type:       "message",
		Text:       text,
		TextFormat: "markdown",
	})
}

// ReplyToActivity posts a markdown message threaded under activityID.
func (r *Relay) ReplyToActivity(ctx context.Context, serviceURL, conversationID, activityID, text string) error {
	if activityID == "" {
		return r.SendMessage(ctx, serviceURL, conversationID, text)
	}
	endpoint, err := activitiesURL(serviceURL, conversationID, activityID)
	if err != nil {
		return err
	}
	return r.post(ctx, endpoint, outgoingActivity{
		Type:       "message",
		Text:       text,
		TextFormat: "markdown",
		ReplyToID:  activityID,
	})
}

func activitiesURL(serviceURL, conversationID, activityID string) (string, error) {
	if serviceURL == "" || conversationID == "" {
		return "", domain.NewValidationError("service url and conversation id are required")
	}
	if u, err := url.Parse(serviceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return "", domain.NewValidationError(fmt.Sprintf("invalid service url %q", serviceURL))
	}

	endpoint := strings.TrimRight(serviceURL, "/") + "/v3/conversations/" + url.PathEscape(conversationID) + "/activities"
	if activityID != "" {
		endpoint += "/" + url.PathEscape(activityID)
	}
	return endpoint, nil
}

func (r *Relay) post(ctx context.Context, endpoint string, activity outgoingActivity) error {
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)

	start := time.Now()
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return domain.NewUnavailableError("bot connector request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	slog.DebugContext(ctx, "bot connector request completed",
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		cause := fmt.Errorf("bot connector error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return domain.NewNotFoundError("conversation not found", cause)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return domain.NewUnavailableError("bot connector unavailable", cause)
		default:
			return domain.NewInternalError("bot connector rejected the message", cause)
		}
	}
	return nil
}
