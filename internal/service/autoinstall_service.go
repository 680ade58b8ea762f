// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

const meterName = "github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"

// Sweep outcomes recorded on the outcome counter.
const (
	OutcomeInstalled        = "installed"
	OutcomeCached           = "cached"
	OutcomeNoThread         = "no_thread"
	OutcomeAlreadyInstalled = "already_installed"
	OutcomeConflict         = "conflict"
	OutcomeError            = "error"
)

// AutoInstallService installs the bot into the chats of upcoming meetings.
type AutoInstallService struct {
	GraphClient  domain.GraphClient
	InstallCache domain.InstallCache
	Config       ServiceConfig

	outcomes metric.Int64Counter
}

// NewAutoInstallService creates a new AutoInstallService.
func NewAutoInstallService(graphClient domain.GraphClient, installCache domain.InstallCache, config ServiceConfig) *AutoInstallService {
	counter, err := otel.Meter(meterName).Int64Counter(
		"meeting_bot.autoinstall.outcomes",
		metric.WithDescription("Meetings processed by the auto-install sweep, by outcome"),
		metric.WithUnit("{meeting}"),
	)
	if err != nil {
		slog.Warn("failed to create auto-install counter", logging.ErrKey, err)
		counter, _ = noop.NewMeterProvider().Meter(meterName).Int64Counter("meeting_bot.autoinstall.outcomes")
	}

	return &AutoInstallService{
		GraphClient:  graphClient,
		InstallCache: installCache,
		Config:       config,
		outcomes:     counter,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AutoInstallService) ServiceReady() bool {
	return s.GraphClient != nil && s.InstallCache != nil
}

type sweepTally struct {
	meetings  atomic.Int64
	installed atomic.Int64
	skipped   atomic.Int64
	errors    atomic.Int64
}

// Sweep installs the catalog app into the chat of every upcoming online
// meeting of the watched users. Per-meeting failures are counted, not returned.
func (s *AutoInstallService) Sweep(ctx context.Context) (models.SweepResult, error) {
	result := models.SweepResult{Action: models.SweepActionComplete}

	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return result, domain.NewUnavailableError("auto-install service not initialized")
	}
	if s.Config.CatalogAppID == "" {
		slog.WarnContext(ctx, "auto-install sweep disabled, no catalog app id configured")
		return result, nil
	}

	users, err := s.watchedUsers(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve watched users", logging.ErrKey, err)
		return result, err
	}
	result.Users = len(users)
	if len(users) == 0 {
		slog.WarnContext(ctx, "auto-install sweep has no users to watch")
		return result, nil
	}

	started := time.Now()
	var tally sweepTally
	pool := concurrent.NewWorkerPool(s.Config.SweepConcurrency)
	concurrent.ForEach(ctx, pool, users, func(ctx context.Context, userID string) error {
		s.sweepUser(ctx, userID, &tally)
		return nil
	})

	result.Meetings = int(tally.meetings.Load())
	result.Installed = int(tally.installed.Load())
	result.Skipped = int(tally.skipped.Load())
	result.Errors = int(tally.errors.Load())

	slog.InfoContext(ctx, "auto-install sweep complete",
		"users", result.Users,
		"workers", pool.Size(),
		"meetings", result.Meetings,
		"installed", result.Installed,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", time.Since(started).String(),
	)
	return result, nil
}

func (s *AutoInstallService) watchedUsers(ctx context.Context) ([]string, error) {
	if len(s.Config.WatchedUserIDs) > 0 {
		return s.Config.WatchedUserIDs, nil
	}
	if s.Config.WatchedGroupID == "" {
		return nil, nil
	}
	return s.GraphClient.ListGroupMembers(ctx, s.Config.WatchedGroupID)
}

func (s *AutoInstallService) lookahead() time.Duration {
	if s.Config.Lookahead > 0 {
		return s.Config.Lookahead
	}
	return constants.DefaultLookahead
}

func (s *AutoInstallService) sweepUser(ctx context.Context, userID string, tally *sweepTally) {
	ctx = logging.AppendCtx(ctx, slog.String("user_id", userID))

	events, err := s.GraphClient.ListUpcomingOnlineMeetings(ctx, userID, s.lookahead())
	if err != nil {
		slog.WarnContext(ctx, "failed to list upcoming meetings", logging.ErrKey, err)
		s.record(ctx, tally, OutcomeError)
		return
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		if !ev.IsOnlineMeeting || ev.JoinURL == "" {
			continue
		}
		tally.meetings.Add(1)
		s.record(ctx, tally, s.sweepMeeting(ctx, userID, ev))
	}
}

func (s *AutoInstallService) sweepMeeting(ctx context.Context, userID string, ev models.CalendarEvent) string {
	ctx = logging.AppendCtx(ctx, slog.String("calendar_event_id", ev.ID))

	cached, err := s.InstallCache.GetInstallRecord(ctx, ev.JoinURL)
	switch {
	case err == nil && cached != nil && cached.Status == models.StatusAutoInstalled:
		return OutcomeCached
	case err != nil && !domain.IsNotFound(err):
		slog.WarnContext(ctx, "install cache lookup failed", logging.ErrKey, err)
	}

	meeting, err := s.GraphClient.FindOnlineMeetingByJoinURL(ctx, userID, ev.JoinURL)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve meeting chat", logging.ErrKey, err)
		return OutcomeError
	}
	if meeting == nil || meeting.ThreadID == "" {
		slog.DebugContext(ctx, "meeting has no chat thread yet")
		return OutcomeNoThread
	}
	ctx = logging.AppendCtx(ctx, slog.String("chat_id", meeting.ThreadID))

	apps, err := s.GraphClient.ListInstalledApps(ctx, meeting.ThreadID)
	if err != nil {
		slog.WarnContext(ctx, "failed to list installed apps", logging.ErrKey, err)
		return OutcomeError
	}
	for _, app := range apps {
		if app.TeamsAppID == s.Config.CatalogAppID {
			s.remember(ctx, userID, ev, meeting)
			return OutcomeAlreadyInstalled
		}
	}

	if err := s.GraphClient.InstallApp(ctx, meeting.ThreadID, s.Config.CatalogAppID); err != nil {
		if domain.IsConflict(err) {
			s.remember(ctx, userID, ev, meeting)
			return OutcomeConflict
		}
		slog.WarnContext(ctx, "failed to install app", logging.ErrKey, err)
		return OutcomeError
	}

	slog.InfoContext(ctx, "installed app into meeting chat", "subject", ev.Subject)
	s.remember(ctx, userID, ev, meeting)
	return OutcomeInstalled
}

func (s *AutoInstallService) remember(ctx context.Context, userID string, ev models.CalendarEvent, meeting *models.OnlineMeeting) {
	record := &models.Session{
		JoinURL:        ev.JoinURL,
		Title:          ev.Subject,
		OrganizerID:    userID,
		ConversationID: meeting.ThreadID,
	}
	if err := s.InstallCache.SaveInstallRecord(ctx, record); err != nil {
		slog.WarnContext(ctx, "failed to cache install record", logging.ErrKey, err)
	}
}

func (s *AutoInstallService) record(ctx context.Context, tally *sweepTally, outcome string) {
	switch outcome {
	case OutcomeInstalled:
		tally.installed.Add(1)
	case OutcomeError:
		tally.errors.Add(1)
	default:
		tally.skipped.Add(1)
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
