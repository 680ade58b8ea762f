// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package auth validates the bearer tokens the Bot Framework attaches to
// inbound activities.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

const (
	// DefaultJWKSURL is where the Bot Framework publishes its signing keys.
	DefaultJWKSURL = "https://login.botframework.com/v1/.well-known/keys"
	// DefaultIssuer is the issuer of Bot Framework channel tokens.
	DefaultIssuer = "https://api.botframework.com"
	// DefaultCacheTTL is how long signing keys are cached.
	DefaultCacheTTL = time.Hour
	// defaultClockSkew tolerates small clock drift with the channel.
	defaultClockSkew = 5 * time.Minute
)

// BotFrameworkClaims are the custom claims of a channel token.
type BotFrameworkClaims struct {
	ServiceURL string `json:"serviceurl"`
}

// Validate requires the service URL the activity must be answered on.
func (c *BotFrameworkClaims) Validate(_ context.Context) error {
	if c.ServiceURL == "" {
		return errors.New("serviceurl claim must be provided")
	}
	return nil
}

// BotAuthConfig configures inbound token validation.
type BotAuthConfig struct {
	// AppID is the expected audience.
	AppID    string
	Issuer   string
	JWKSURL  string
	CacheTTL time.Duration
	// Disabled turns the middleware into a pass-through for local testing.
	Disabled bool
}

// BotAuth validates Bot Framework channel tokens.
type BotAuth struct {
	validator *validator.Validator
	config    BotAuthConfig
}

// NewBotAuth creates a validator backed by a caching JWKS provider.
func NewBotAuth(config BotAuthConfig) (*BotAuth, error) {
	if config.Disabled {
		return &BotAuth{config: config}, nil
	}
	if config.AppID == "" {
		return nil, errors.New("bot app id is required for token validation")
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.JWKSURL == "" {
		config.JWKSURL = DefaultJWKSURL
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}

	issuerURL, err := url.Parse(config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid token issuer: %w", err)
	}
	jwksURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS URL: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, config.CacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	v, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		config.Issuer,
		[]string{config.AppID},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &BotFrameworkClaims{}
		}),
		validator.WithAllowedClockSkew(defaultClockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the JWT validator: %w", err)
	}

	return &BotAuth{validator: v, config: config}, nil
}

// ValidateToken checks the signature, issuer, audience and expiry of a token
// and returns its custom claims.
func (a *BotAuth) ValidateToken(ctx context.Context, token string) (*BotFrameworkClaims, error) {
	if a.validator == nil {
		return nil, errors.New("JWT validator is not set up")
	}

	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	custom, ok := claims.CustomClaims.(*BotFrameworkClaims)
	if !ok {
		return nil, errors.New("missing bot framework claims")
	}
	return custom, nil
}

// Middleware rejects requests without a valid channel token.
func (a *BotAuth) Middleware(next http.Handler) http.Handler {
	if a.config.Disabled {
		return next
	}

	mw := jwtmiddleware.New(
		func(ctx context.Context, token string) (any, error) {
			return a.validator.ValidateToken(ctx, token)
		},
		jwtmiddleware.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			slog.WarnContext(r.Context(), "rejected bot request", logging.ErrKey, err)
			w.Header().Set(constants.ContentTypeHeader, constants.ContentTypeJSON)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		}),
	)
	return mw.CheckJWT(next)
}

// ServiceURLFromContext returns the service URL claim validated by the
// middleware, if any.
func ServiceURLFromContext(ctx context.Context) string {
	claims, ok := ctx.Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok {
		return ""
	}
	if custom, ok := claims.CustomClaims.(*BotFrameworkClaims); ok {
		return custom.ServiceURL
	}
	return ""
}
