// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package graph is the Microsoft Graph client used for online meetings,
// transcripts, directory lookups, calendars and chat app installation.
package graph

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
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

const (
	// BaseURL is the Graph v1.0 endpoint.
	BaseURL = "https://graph.microsoft.com/v1.0"
	// Scope requests the app permissions granted to the registration.
	Scope = "https://graph.microsoft.com/.default"

	// Default retry configuration for throttled or failing calls.
	DefaultMaxRetries     = 2
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 10 * time.Second

	// maxPages stops runaway @odata.nextLink chains.
	maxPages = 50
)

// Config holds the configuration for the Graph client.
type Config struct {
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	// Optional: override base URL for testing
	BaseURL string
	// Optional: override token URL for testing
	TokenURL string
	Timeout  time.Duration
	// Optional: retry configuration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client calls Microsoft Graph with an app-only token.
type Client struct {
	config     Config
	httpClient func() *http.Client
	now        func() time.Time
}

var _ domain.GraphClient = (*Client)(nil)

// NewClient creates a Graph client. The authenticated HTTP client is built on
// first use and shared by all calls.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = oauth.DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}

	return &Client{
		config: config,
		httpClient: oauth.NewLazyClient(oauth.Credentials{
			TenantID:      config.TenantID,
			ClientID:      config.ClientID,
			ClientSecret:  config.ClientSecret,
			Scopes:        []string{Scope},
			AuthorityHost: config.AuthorityHost,
			TokenURL:      config.TokenURL,
			Timeout:       config.Timeout,
		}),
		now: time.Now,
	}
}

func (c *Client) retryPolicy() backoff.Policy {
	return backoff.Policy{
		Attempts:  c.config.MaxRetries + 1,
		BaseDelay: c.config.InitialBackoff,
		MaxDelay:  c.config.MaxBackoff,
	}
}

// request describes one Graph call. Target is a path below the base URL or
// an absolute URL such as an @odata.nextLink.
type request struct {
	method string
	target string
	body   any
	accept string
}

func (c *Client) resolve(target string) string {
	if strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "http://") {
		return target
	}
	return c.config.BaseURL + target
}

// do performs the request, retrying throttling and server errors. Non-2xx
// responses are returned as domain errors.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	endpoint := c.resolve(r.target)
	label := "graph " + r.method + " " + pathOf(endpoint)

	return backoff.Do(ctx, c.retryPolicy(), label, func(ctx context.Context) (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if payload != nil {
			req.Header.Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
		}
		accept := r.accept
		if accept == "" {
			accept = constants.ContentTypeJSON
		}
		req.Header.Set(constants.AcceptHeader, accept)

		start := time.Now()
		resp, err := c.httpClient().Do(req)
		duration := time.Since(start)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, domain.NewUnavailableError("graph request failed", err)
		}

		slog.DebugContext(ctx, "graph request completed",
			"method", r.method,
			"path", pathOf(endpoint),
			"status", resp.StatusCode,
			"duration", duration.String(),
		)

		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		statusErr := responseError(resp)
		if retryable(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	})
}

// getJSON decodes a successful response into out.
func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	return c.doJSON(ctx, request{method: http.MethodGet, target: target}, out)
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewInternalError("failed to decode graph response", err)
	}
	return nil
}

// collection is a Graph list response.
type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// getAll follows @odata.nextLink until the last page.
func getAll[T any](ctx context.Context, c *Client, target string) ([]T, error) {
	var all []T
	for page := 0; target != "" && page < maxPages; page++ {
		var current collection[T]
		if err := c.getJSON(ctx, target, &current); err != nil {
			return nil, err
		}
		all = append(all, current.Value...)
		target = current.NextLink
	}
	return all, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// responseError reads and closes the body of a failed response.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	cause := parseErrorResponse(resp.StatusCode, body)
	message := fmt.Sprintf("graph returned status %d", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError(message, cause)
	case resp.StatusCode == http.StatusConflict:
		return domain.NewConflictError(message, cause)
	case retryable(resp.StatusCode):
		return domain.NewUnavailableError(message, cause)
	case resp.StatusCode == http.StatusBadRequest:
		return domain.NewValidationError(message, cause)
	default:
		return domain.NewInternalError(message, cause)
	}
}

// parseErrorResponse extracts the Graph error envelope.
func parseErrorResponse(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != "" {
		return fmt.Errorf("graph API error (%s): %s", errResp.Error.Code, errResp.Error.Message)
	}
	return fmt.Errorf("graph API error (status %d): %s", status, strings.TrimSpace(string(body)))
}

func pathOf(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		return u.Path
	}
	return endpoint
}

func userPath(userID string) string {
	return "/users/" + url.PathEscape(userID)
}
