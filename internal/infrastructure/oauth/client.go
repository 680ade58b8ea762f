// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package oauth builds HTTP clients authenticated with the OAuth2 client
// credentials grant against the Microsoft identity platform.
package oauth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultAuthorityHost is the Microsoft identity platform host.
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	// DefaultTimeout bounds each outbound request, token requests included.
	DefaultTimeout = 30 * time.Second
)

// Credentials identify an app registration and the scope it requests.
type Credentials struct {
	TenantID      string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	AuthorityHost string
	// TokenURL overrides the token endpoint derived from AuthorityHost and TenantID.
	TokenURL string
	Timeout  time.Duration
}

// TokenEndpoint returns the v2.0 token endpoint for the tenant.
func (c Credentials) TokenEndpoint() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	host := c.AuthorityHost
	if host == "" {
		host = DefaultAuthorityHost
	}
	return strings.TrimRight(host, "/") + "/" + c.TenantID + "/oauth2/v2.0/token"
}

// Config returns the client credentials configuration.
func (c Credentials) Config() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenEndpoint(),
		Scopes:       c.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// NewLazyClient returns a function yielding one shared authenticated client.
// The client and its cached token source are built on first use.
func NewLazyClient(c Credentials) func() *http.Client {
	return sync.OnceValue(func() *http.Client {
		return NewClient(c)
	})
}

// NewClient builds an authenticated client. Tokens are cached and refreshed
// by the token source; both token and API calls are traced.
func NewClient(c Credentials) *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Timeout:   timeout,
		Transport: transport,
	})

	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Base:   transport,
			Source: c.Config().TokenSource(tokenCtx),
		},
	}
}
