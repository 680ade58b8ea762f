// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package config loads the meeting bot configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/backoff"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/utils"
)

// Config is the runtime configuration of the meeting bot.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	NATSURL                  string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	SessionsBucket           string `env:"SESSIONS_BUCKET" envDefault:"meeting-bot-sessions"`
	TranscriptsBucket        string `env:"TRANSCRIPTS_BUCKET" envDefault:"meeting-bot-transcripts"`
	TranscriptStorageEnabled bool   `env:"TRANSCRIPT_STORAGE_ENABLED" envDefault:"true"`

	TenantID          string `env:"TENANT_ID"`
	BotAppID          string `env:"BOT_APP_ID"`
	BotAppSecret      string `env:"BOT_APP_SECRET"`
	GraphClientID     string `env:"GRAPH_CLIENT_ID"`
	GraphClientSecret string `env:"GRAPH_CLIENT_SECRET"`
	GraphBaseURL      string `env:"GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com/v1.0"`
	AuthorityHost     string `env:"AUTHORITY_HOST" envDefault:"https://login.microsoftonline.com"`

	BotName        string `env:"BOT_NAME" envDefault:"Meeting Fetcher"`
	AllowedGroupID string `env:"ALLOWED_GROUP_ID"`

	CatalogAppID         string   `env:"TEAMS_CATALOG_APP_ID"`
	WatchedUserIDs       []string `env:"WATCHED_USER_IDS" envSeparator:","`
	WatchedGroupID       string   `env:"WATCHED_GROUP_ID"`
	PollLookaheadMinutes int      `env:"POLL_LOOKAHEAD_MINUTES" envDefault:"60"`
	SweepConcurrency     int      `env:"SWEEP_CONCURRENCY" envDefault:"4"`

	TranscriptInitialDelay   time.Duration `env:"TRANSCRIPT_INITIAL_DELAY" envDefault:"30s"`
	TranscriptMaxAttempts    int           `env:"TRANSCRIPT_MAX_ATTEMPTS" envDefault:"5"`
	TranscriptRetryBaseDelay time.Duration `env:"TRANSCRIPT_RETRY_BASE_DELAY" envDefault:"15s"`
	TranscriptRetryMaxDelay  time.Duration `env:"TRANSCRIPT_RETRY_MAX_DELAY" envDefault:"60s"`
	TranscriptAttemptTimeout time.Duration `env:"TRANSCRIPT_ATTEMPT_TIMEOUT" envDefault:"20s"`
	TranscriptFormat         string        `env:"TRANSCRIPT_FORMAT" envDefault:"text/vtt"`
	HandlerTimeout           time.Duration `env:"HANDLER_TIMEOUT" envDefault:"6m"`

	BotAuthDisabled  bool   `env:"BOT_AUTH_DISABLED" envDefault:"false"`
	BotOpenIDJWKSURL string `env:"BOT_OPENID_JWKS_URL" envDefault:"https://login.botframework.com/v1/.well-known/keys"`
	BotTokenIssuer   string `env:"BOT_TOKEN_ISSUER" envDefault:"https://api.botframework.com"`

	// SweepToken guards the HTTP sweep trigger when set.
	SweepToken string `env:"SWEEP_TOKEN"`
}

// Load reads the configuration from the process environment and validates it.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	ids := c.WatchedUserIDs[:0]
	for _, id := range c.WatchedUserIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.WatchedUserIDs = ids

	// Graph calls reuse the bot registration unless a dedicated app is configured.
	c.GraphClientID = utils.CoalesceString(c.GraphClientID, c.BotAppID)
	c.GraphClientSecret = utils.CoalesceString(c.GraphClientSecret, c.BotAppSecret)
	c.GraphBaseURL = strings.TrimRight(c.GraphBaseURL, "/")
	c.AuthorityHost = strings.TrimRight(c.AuthorityHost, "/")
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "TENANT_ID", value: c.TenantID},
		{name: "BOT_APP_ID", value: c.BotAppID},
		{name: "BOT_APP_SECRET", value: c.BotAppSecret},
	}
}

// Validate checks required fields and that the transcript retry schedule
// finishes inside the handler timeout.
func (c *Config) Validate() error {
	var errs []error
	for _, req := range c.requiredFieldChecks() {
		if strings.TrimSpace(req.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", req.name))
		}
	}

	for name, raw := range map[string]string{
		"GRAPH_BASE_URL": c.GraphBaseURL,
		"AUTHORITY_HOST": c.AuthorityHost,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if c.TranscriptMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("TRANSCRIPT_MAX_ATTEMPTS must be positive, got %d", c.TranscriptMaxAttempts))
	}
	if c.TranscriptInitialDelay < 0 || c.TranscriptRetryBaseDelay < 0 || c.TranscriptRetryMaxDelay < 0 {
		errs = append(errs, errors.New("transcript delays must not be negative"))
	}
	if c.TranscriptAttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TRANSCRIPT_ATTEMPT_TIMEOUT must be positive, got %s", c.TranscriptAttemptTimeout))
	}
	if c.TranscriptRetryMaxDelay > 0 && c.TranscriptRetryBaseDelay > c.TranscriptRetryMaxDelay {
		errs = append(errs, fmt.Errorf("TRANSCRIPT_RETRY_BASE_DELAY %s exceeds TRANSCRIPT_RETRY_MAX_DELAY %s",
			c.TranscriptRetryBaseDelay, c.TranscriptRetryMaxDelay))
	}
	if c.HandlerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HANDLER_TIMEOUT must be positive, got %s", c.HandlerTimeout))
	} else if worst := c.TranscriptWorstCase(); worst >= c.HandlerTimeout {
		errs = append(errs, fmt.Errorf("transcript retry schedule takes up to %s which does not fit in HANDLER_TIMEOUT %s",
			worst, c.HandlerTimeout))
	}

	if c.PollLookaheadMinutes <= 0 {
		errs = append(errs, fmt.Errorf("POLL_LOOKAHEAD_MINUTES must be positive, got %d", c.PollLookaheadMinutes))
	}
	if c.SweepConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_CONCURRENCY must be positive, got %d", c.SweepConcurrency))
	}

	return errors.Join(errs...)
}

// BackoffPolicy is the retry policy used for transcript resolution.
func (c *Config) BackoffPolicy() backoff.Policy {
	return backoff.Policy{
		Attempts:  c.TranscriptMaxAttempts,
		BaseDelay: c.TranscriptRetryBaseDelay,
		MaxDelay:  c.TranscriptRetryMaxDelay,
	}
}

// TranscriptWorstCase is the longest time transcript resolution can take:
// the initial delay, every retry wait and every attempt running to its
// timeout.
func (c *Config) TranscriptWorstCase() time.Duration {
	attempts := time.Duration(max(c.TranscriptMaxAttempts, 0)) * c.TranscriptAttemptTimeout
	return c.TranscriptInitialDelay + c.BackoffPolicy().Worst() + attempts
}

// Lookahead is the calendar window scanned by an auto-install sweep.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.PollLookaheadMinutes) * time.Minute
}

// AutoInstallEnabled reports whether sweeps have an app to install.
func (c *Config) AutoInstallEnabled() bool {
	return c.CatalogAppID != ""
}
