// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/config"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
)

const (
	natsClientName = "lfx-v2-meeting-bot"
	// natsDrainTimeout bounds how long in-flight NATS messages get on shutdown.
	natsDrainTimeout = 25 * time.Second
	// shutdownMargin is added to the handler timeout so an end-of-meeting
	// pipeline that is already running can finish.
	shutdownMargin = 15 * time.Second

	bucketSetupTimeout = 10 * time.Second
)

// setupNATS connects to NATS. The connection holds one slot in the wait group
// which is released when the connection closes. An unexpected close asks the
// process to stop.
func setupNATS(ctx context.Context, cfg *config.Config, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	conn, err := nats.Connect(
		cfg.NATSURL,
		nats.Name(natsClientName),
		nats.DrainTimeout(natsDrainTimeout),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("url", cfg.NATSURL).Info("NATS connection established")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.With(logging.ErrKey, err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.With("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject, "queue", s.Queue).Error("async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			defer gracefulCloseWG.Done()
			if ctx.Err() != nil {
				slog.Info("NATS connection closed gracefully")
				return
			}
			slog.Error("NATS connection closed unexpectedly", logging.PriorityCritical())
			select {
			case done <- os.Interrupt:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NATSURL, err)
	}

	return conn, nil
}

// setupSessionBucket creates or updates the key-value bucket backing sessions
// and install records.
func setupSessionBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, bucketSetupTimeout)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "meeting bot sessions and install records",
		History:     1,
		TTL:         models.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating key-value bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// setupTranscriptBucket creates or updates the object store transcripts are
// archived to.
func setupTranscriptBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.ObjectStore, error) {
	ctx, cancel := context.WithTimeout(ctx, bucketSetupTimeout)
	defer cancel()

	obj, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "archived meeting transcripts",
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store %s: %w", bucket, err)
	}
	return obj, nil
}

func botAuthConfig(cfg *config.Config) auth.BotAuthConfig {
	return auth.BotAuthConfig{
		AppID:    cfg.BotAppID,
		Issuer:   cfg.BotTokenIssuer,
		JWKSURL:  cfg.BotOpenIDJWKSURL,
		CacheTTL: auth.DefaultCacheTTL,
		Disabled: cfg.BotAuthDisabled,
	}
}

// gracefulShutdown stops accepting HTTP requests, drains NATS and waits for
// both to finish.
func gracefulShutdown(httpServer *http.Server, natsConn *nats.Conn, gracefulCloseWG *sync.WaitGroup, cancel context.CancelFunc, grace time.Duration) {
	slog.With("grace", grace.String()).Info("graceful shutdown started")

	// Marks the shutdown as intentional for the NATS closed handler.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	go func() {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.With(logging.ErrKey, err).Error("http shutdown error")
		}
		gracefulCloseWG.Done()
	}()

	if natsConn != nil && !natsConn.IsClosed() && !natsConn.IsDraining() {
		slog.Info("draining NATS connection")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS connection")
			natsConn.Close()
		}
	}

	waited := make(chan struct{})
	go func() {
		gracefulCloseWG.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		slog.Info("graceful shutdown complete")
	case <-shutdownCtx.Done():
		slog.Error("graceful shutdown timed out")
		os.Exit(1)
	}
}
