// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main runs the meeting bot: it receives Bot Framework activities over
// HTTP, records and delivers meeting transcripts, and handles auto-install
// sweeps triggered over HTTP or NATS.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/config"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/utils"
)

func main() {
	flags := mustParseFlags()

	logging.InitStructureLogConfig()

	cfg, err := config.Load()
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid configuration")
		os.Exit(1)
	}
	if flags.Port == "" {
		flags.Port = cfg.Port
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
		}
	}()

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, cfg, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	injector := setupDI(ctx, cfg, natsConn)

	activityHandler, err := do.Invoke[*handlers.ActivityHandler](injector)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error building activity handler")
		return
	}
	sweepHandler, err := do.Invoke[*handlers.SweepHandler](injector)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error building sweep handler")
		return
	}
	configPage, err := do.Invoke[*handlers.ConfigPageHandler](injector)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error building configuration page")
		return
	}
	botAuth, err := do.Invoke[*auth.BotAuth](injector)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up bot authentication")
		return
	}
	if cfg.BotAuthDisabled {
		slog.Warn("bot token validation is disabled")
	}

	httpServer := setupHTTPServer(flags, routes{
		activity:   activityHandler,
		sweep:      sweepHandler,
		configPage: configPage,
		botAuth:    botAuth,
		sweepToken: cfg.SweepToken,
	}, cfg.HandlerTimeout, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	if err := createNatsSubscriptions(ctx, natsConn, sweepHandler); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	slog.With(
		"bot_name", cfg.BotName,
		"auto_install", cfg.AutoInstallEnabled(),
		"transcript_storage", cfg.TranscriptStorageEnabled,
	).Info("meeting bot started")

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel, cfg.HandlerTimeout+shutdownMargin)
}
