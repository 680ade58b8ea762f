// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/samber/do/v2"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/config"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/botframework"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/graph"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"
)

// setupDI registers every component of the bot. Providers run lazily on the
// first Invoke, so NATS buckets are only created once something needs them.
func setupDI(ctx context.Context, cfg *config.Config, natsConn *nats.Conn) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, natsConn)

	registerInfrastructure(ctx, injector)
	registerServices(injector)
	registerHandlers(injector)

	return injector
}

func registerInfrastructure(ctx context.Context, injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (jetstream.JetStream, error) {
		return jetstream.New(do.MustInvoke[*nats.Conn](i))
	})

	do.Provide(injector, func(i do.Injector) (*store.NatsSessionRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		js := do.MustInvoke[jetstream.JetStream](i)
		kv, err := setupSessionBucket(ctx, js, cfg.SessionsBucket)
		if err != nil {
			return nil, err
		}
		return store.NewNatsSessionRepository(kv), nil
	})

	do.Provide(injector, func(i do.Injector) (domain.TranscriptBlobStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.TranscriptStorageEnabled {
			return nil, nil
		}
		js := do.MustInvoke[jetstream.JetStream](i)
		obj, err := setupTranscriptBucket(ctx, js, cfg.TranscriptsBucket)
		if err != nil {
			return nil, err
		}
		return store.NewNatsTranscriptStore(obj), nil
	})

	do.Provide(injector, func(i do.Injector) (*graph.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return graph.NewClient(graph.Config{
			TenantID:      cfg.TenantID,
			ClientID:      cfg.GraphClientID,
			ClientSecret:  cfg.GraphClientSecret,
			AuthorityHost: cfg.AuthorityHost,
			BaseURL:       cfg.GraphBaseURL,
		}), nil
	})

	do.Provide(injector, func(i do.Injector) (*botframework.Relay, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return botframework.NewRelay(botframework.Config{
			TenantID:      cfg.TenantID,
			AppID:         cfg.BotAppID,
			AppSecret:     cfg.BotAppSecret,
			AuthorityHost: cfg.AuthorityHost,
		}), nil
	})

	do.Provide(injector, func(i do.Injector) (*messaging.MessageBuilder, error) {
		return messaging.NewMessageBuilder(do.MustInvoke[*nats.Conn](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*auth.BotAuth, error) {
		return auth.NewBotAuth(botAuthConfig(do.MustInvoke[*config.Config](i)))
	})
}

func registerServices(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*service.LifecycleService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		graphClient := do.MustInvoke[*graph.Client](i)
		return service.NewLifecycleService(
			do.MustInvoke[*store.NatsSessionRepository](i),
			graphClient,
			service.NewTranscriptResolver(graphClient, cfg.TranscriptFormat),
			do.MustInvoke[*botframework.Relay](i),
			do.MustInvoke[domain.TranscriptBlobStore](i),
			do.MustInvoke[*messaging.MessageBuilder](i),
			serviceConfig(cfg),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*service.CommandService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewCommandService(
			do.MustInvoke[*service.LifecycleService](i),
			do.MustInvoke[*store.NatsSessionRepository](i),
			do.MustInvoke[*botframework.Relay](i),
			serviceConfig(cfg),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*service.AutoInstallService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewAutoInstallService(
			do.MustInvoke[*graph.Client](i),
			do.MustInvoke[*store.NatsSessionRepository](i),
			serviceConfig(cfg),
		), nil
	})
}

func registerHandlers(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*handlers.ActivityHandler, error) {
		return handlers.NewActivityHandler(
			do.MustInvoke[*service.LifecycleService](i),
			do.MustInvoke[*service.CommandService](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.SweepHandler, error) {
		return handlers.NewSweepHandler(do.MustInvoke[*service.AutoInstallService](i)), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.ConfigPageHandler, error) {
		return handlers.NewConfigPageHandler(do.MustInvoke[*config.Config](i).BotName)
	})
}
