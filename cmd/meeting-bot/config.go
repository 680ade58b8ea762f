// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/config"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"
)

// flags are the command line flags for the meeting bot.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// parseFlags parses command line flags for the meeting bot. An empty port
// means the PORT environment variable decides.
func parseFlags(args []string) (flags, error) {
	fs := pflag.NewFlagSet("meeting-bot", pflag.ContinueOnError)
	debug := fs.BoolP("debug", "d", false, "enable debug logging")
	port := fs.StringP("port", "p", "", "listen port (defaults to $PORT)")
	bind := fs.String("bind", "*", "interface to bind on")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			return flags{}, fmt.Errorf("setting log level: %w", err)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}, nil
}

// mustParseFlags exits on bad flags, and cleanly on --help.
func mustParseFlags() flags {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error parsing flags")
		os.Exit(2)
	}
	return f
}

// serviceConfig maps the runtime configuration onto the service layer.
func serviceConfig(cfg *config.Config) service.ServiceConfig {
	return service.ServiceConfig{
		BotName:                  cfg.BotName,
		BotAppID:                 cfg.BotAppID,
		AllowedGroupID:           cfg.AllowedGroupID,
		TranscriptFormat:         cfg.TranscriptFormat,
		TranscriptInitialDelay:   cfg.TranscriptInitialDelay,
		TranscriptRetry:          cfg.BackoffPolicy(),
		TranscriptAttemptTimeout: cfg.TranscriptAttemptTimeout,
		HandlerTimeout:           cfg.HandlerTimeout,
		CatalogAppID:             cfg.CatalogAppID,
		WatchedUserIDs:           cfg.WatchedUserIDs,
		WatchedGroupID:           cfg.WatchedGroupID,
		Lookahead:                cfg.Lookahead(),
		SweepConcurrency:         cfg.SweepConcurrency,
	}
}
