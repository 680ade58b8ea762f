// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
)

const testCatalogAppID = "catalog-app"

func sweepConfig(users ...string) ServiceConfig {
	config := testConfig()
	config.CatalogAppID = testCatalogAppID
	config.WatchedUserIDs = users
	config.Lookahead = time.Hour
	config.SweepConcurrency = 2
	return config
}

func calendarMeeting(id, joinURL string) models.CalendarEvent {
	return models.CalendarEvent{ID: id, Subject: "Standup " + id, IsOnlineMeeting: true, JoinURL: joinURL}
}

func TestAutoInstallService_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("users without meetings", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		cache := &mocks.MockInstallCache{}
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U1", time.Hour).Return([]models.CalendarEvent{}, nil)
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U2", time.Hour).Return([]models.CalendarEvent{}, nil)

		result, err := NewAutoInstallService(graph, cache, sweepConfig("U1", "U2")).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.SweepResult{Action: models.SweepActionComplete, Users: 2}, result)
		graph.AssertExpectations(t)
	})

	t.Run("conflict counts as skipped", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		cache := &mocks.MockInstallCache{}
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U1", time.Hour).Return([]models.CalendarEvent{calendarMeeting("E1", "https://join/1")}, nil)
		cache.On("GetInstallRecord", mock.Anything, "https://join/1").Return(nil, domain.NewNotFoundError("missing"))
		graph.On("FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/1").Return(&models.OnlineMeeting{ID: "OM1", ThreadID: "19:t1"}, nil)
		graph.On("ListInstalledApps", mock.Anything, "19:t1").Return([]models.InstalledApp{}, nil)
		graph.On("InstallApp", mock.Anything, "19:t1", testCatalogAppID).Return(domain.NewConflictError("already installed"))
		cache.On("SaveInstallRecord", mock.Anything, mock.MatchedBy(func(s *models.Session) bool {
			return s.JoinURL == "https://join/1" && s.ConversationID == "19:t1"
		})).Return(nil).Once()

		result, err := NewAutoInstallService(graph, cache, sweepConfig("U1")).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Meetings)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, result.Errors)
		assert.Equal(t, 0, result.Installed)
		cache.AssertExpectations(t)
	})

	t.Run("every outcome", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		cache := &mocks.MockInstallCache{}
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U1", time.Hour).Return([]models.CalendarEvent{
			calendarMeeting("cached", "https://join/cached"),
			calendarMeeting("nothread", "https://join/nothread"),
			calendarMeeting("present", "https://join/present"),
			calendarMeeting("fresh", "https://join/fresh"),
			calendarMeeting("broken", "https://join/broken"),
			{ID: "offline", Subject: "Lunch"},
		}, nil)
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U2", time.Hour).Return(nil, errors.New("calendar unavailable"))

		cache.On("GetInstallRecord", mock.Anything, "https://join/cached").Return(&models.Session{Status: models.StatusAutoInstalled}, nil)
		cache.On("GetInstallRecord", mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError("missing"))
		cache.On("SaveInstallRecord", mock.Anything, mock.Anything).Return(nil)

		graph.On("FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/nothread").Return(&models.OnlineMeeting{ID: "OM0"}, nil)
		graph.On("FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/present").Return(&models.OnlineMeeting{ID: "OM1", ThreadID: "19:present"}, nil)
		graph.On("FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/fresh").Return(&models.OnlineMeeting{ID: "OM2", ThreadID: "19:fresh"}, nil)
		graph.On("FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/broken").Return(&models.OnlineMeeting{ID: "OM3", ThreadID: "19:broken"}, nil)

		graph.On("ListInstalledApps", mock.Anything, "19:present").Return([]models.InstalledApp{{ID: "i1", TeamsAppID: testCatalogAppID}}, nil)
		graph.On("ListInstalledApps", mock.Anything, "19:fresh").Return([]models.InstalledApp{{ID: "i2", TeamsAppID: "other"}}, nil)
		graph.On("ListInstalledApps", mock.Anything, "19:broken").Return([]models.InstalledApp{}, nil)

		graph.On("InstallApp", mock.Anything, "19:fresh", testCatalogAppID).Return(nil)
		graph.On("InstallApp", mock.Anything, "19:broken", testCatalogAppID).Return(domain.NewInternalError("forbidden"))

		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		svc := NewAutoInstallService(graph, cache, sweepConfig("U1", "U2"))
		counter, err := provider.Meter("test").Int64Counter("meeting_bot.autoinstall.outcomes")
		require.NoError(t, err)
		svc.outcomes = counter

		result, err := svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.SweepResult{
			Action:    models.SweepActionComplete,
			Users:     2,
			Meetings:  5,
			Installed: 1,
			Skipped:   3,
			Errors:    2,
		}, result)

		graph.AssertNotCalled(t, "FindOnlineMeetingByJoinURL", mock.Anything, "U1", "https://join/cached")
		graph.AssertNotCalled(t, "InstallApp", mock.Anything, "19:present", mock.Anything)
		cache.AssertNumberOfCalls(t, "SaveInstallRecord", 2)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		counts := map[string]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
					counts[outcome.AsString()] += dp.Value
				}
			}
		}
		assert.Equal(t, map[string]int64{
			OutcomeCached:           1,
			OutcomeNoThread:         1,
			OutcomeAlreadyInstalled: 1,
			OutcomeInstalled:        1,
			OutcomeError:            2,
		}, counts)
	})

	t.Run("group members when no users are listed", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		cache := &mocks.MockInstallCache{}
		config := sweepConfig()
		config.WatchedGroupID = "G"
		graph.On("ListGroupMembers", mock.Anything, "G").Return([]string{"U1"}, nil)
		graph.On("ListUpcomingOnlineMeetings", mock.Anything, "U1", time.Hour).Return([]models.CalendarEvent{}, nil)

		result, err := NewAutoInstallService(graph, cache, config).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Users)
		graph.AssertExpectations(t)
	})

	t.Run("group lookup failure", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		config := sweepConfig()
		config.WatchedGroupID = "G"
		graph.On("ListGroupMembers", mock.Anything, "G").Return(nil, domain.NewUnavailableError("graph down"))

		_, err := NewAutoInstallService(graph, &mocks.MockInstallCache{}, config).Sweep(ctx)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("disabled without catalog app", func(t *testing.T) {
		graph := &mocks.MockGraphClient{}
		config := sweepConfig("U1")
		config.CatalogAppID = ""

		result, err := NewAutoInstallService(graph, &mocks.MockInstallCache{}, config).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.SweepResult{Action: models.SweepActionComplete}, result)
		graph.AssertNotCalled(t, "ListUpcomingOnlineMeetings", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not ready", func(t *testing.T) {
		_, err := NewAutoInstallService(nil, nil, sweepConfig("U1")).Sweep(ctx)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}
