// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"
)

// ActivityResponse acknowledges an inbound activity.
type ActivityResponse struct {
	Handled   bool                 `json:"handled"`
	Route     string               `json:"route,omitempty"`
	MeetingID string               `json:"meeting_id,omitempty"`
	Status    models.SessionStatus `json:"status,omitempty"`
	Command   service.Command      `json:"command,omitempty"`
}

// Activity routes.
const (
	RouteMeetingStart = "meeting_start"
	RouteMeetingEnd   = "meeting_end"
	RouteCommand      = "command"
	RouteMembership   = "membership"
)

// ActivityHandler receives activities from the messaging platform.
type ActivityHandler struct {
	lifecycleService *service.LifecycleService
	commandService   *service.CommandService
}

func NewActivityHandler(lifecycleService *service.LifecycleService, commandService *service.CommandService) *ActivityHandler {
	return &ActivityHandler{
		lifecycleService: lifecycleService,
		commandService:   commandService,
	}
}

func (h *ActivityHandler) HandlerReady() bool {
	return h.lifecycleService != nil && h.lifecycleService.ServiceReady() &&
		h.commandService != nil && h.commandService.ServiceReady()
}

// ServeHTTP decodes one activity and routes it by type. Malformed payloads
// are rejected before anything is written; empty and unknown activities are
// acknowledged without side effects.
func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Code: http.StatusRequestEntityTooLarge, Message: "payload too large"})
			return
		}
		writeError(w, domain.NewValidationError("failed to read request body", err))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		slog.DebugContext(ctx, "empty activity")
		writeJSON(w, http.StatusOK, ActivityResponse{})
		return
	}

	var activity models.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		slog.WarnContext(ctx, "malformed activity", logging.ErrKey, err)
		writeError(w, domain.NewValidationError("malformed activity payload", err))
		return
	}

	ctx = logging.AppendCtx(ctx, slog.String("activity_type", activity.Type))
	if activity.Name != "" {
		ctx = logging.AppendCtx(ctx, slog.String("activity_name", activity.Name))
	}
	slog.DebugContext(ctx, "activity received")

	var resp ActivityResponse
	switch {
	case activity.IsMeetingStart():
		session, err := h.lifecycleService.HandleStart(ctx, service.StartRequest{Activity: &activity})
		if err != nil {
			writeError(w, err)
			return
		}
		resp = sessionResponse(RouteMeetingStart, session)

	case activity.IsMeetingEnd():
		session, err := h.lifecycleService.HandleEnd(ctx, &activity)
		if err != nil {
			writeError(w, err)
			return
		}
		resp = sessionResponse(RouteMeetingEnd, session)

	case activity.Type == models.ActivityTypeMessage:
		cmd, _, err := h.commandService.HandleCommand(ctx, &activity)
		if err != nil {
			writeError(w, err)
			return
		}
		resp = ActivityResponse{Handled: true, Route: RouteCommand, Command: cmd}

	case activity.Type == models.ActivityTypeConversationUpdate:
		session, err := h.lifecycleService.HandleBotInstalled(ctx, &activity)
		if err != nil {
			writeError(w, err)
			return
		}
		resp = sessionResponse(RouteMembership, session)

	default:
		slog.DebugContext(ctx, "ignoring activity")
	}

	writeJSON(w, http.StatusOK, resp)
}

func sessionResponse(route string, session *models.Session) ActivityResponse {
	resp := ActivityResponse{Handled: session != nil, Route: route}
	if session != nil {
		resp.MeetingID = session.MeetingID
		resp.Status = session.Status
	}
	return resp
}
