// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/middleware"
)

// routes are the HTTP handlers the server mounts.
type routes struct {
	activity   *handlers.ActivityHandler
	sweep      *handlers.SweepHandler
	configPage *handlers.ConfigPageHandler
	botAuth    *auth.BotAuth
	sweepToken string
}

func newMux(r routes) *http.ServeMux {
	mux := http.NewServeMux()

	activity := r.botAuth.Middleware(r.activity)
	mux.Handle("POST /api/messages", activity)
	mux.Handle("POST /bot/messages", activity)
	mux.Handle("POST /bot/sweep", middleware.SharedTokenMiddleware(r.sweepToken)(r.sweep))
	mux.Handle("GET /bot/config", r.configPage)
	mux.HandleFunc("GET /livez", handlers.Livez)
	mux.Handle("GET /readyz", handlers.Readyz(r.activity, r.sweep))

	return mux
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, r routes, handlerTimeout time.Duration, gracefulCloseWG *sync.WaitGroup) *http.Server {
	var handler http.Handler = newMux(r)

	// Add HTTP middleware
	// Note: Order matters - RequestIDMiddleware should come first in the chain,
	// so it should be the last middleware added to the handler since it is executed in reverse order.
	handler = middleware.BodyLimitMiddleware(middleware.DefaultMaxBodyBytes)(handler)
	handler = middleware.RecoverMiddleware()(handler)
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = middleware.RequestIDMiddleware()(handler)
	handler = otelhttp.NewHandler(handler, "meeting-bot")

	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      handlerTimeout + shutdownMargin,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}
