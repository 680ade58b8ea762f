// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/service"
)

// SweepHandler triggers the auto-install sweep over HTTP or NATS.
type SweepHandler struct {
	autoInstallService *service.AutoInstallService
}

func NewSweepHandler(autoInstallService *service.AutoInstallService) *SweepHandler {
	return &SweepHandler{autoInstallService: autoInstallService}
}

func (h *SweepHandler) HandlerReady() bool {
	return h.autoInstallService != nil && h.autoInstallService.ServiceReady()
}

// ServeHTTP runs one sweep and returns its result.
func (h *SweepHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := h.autoInstallService.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleMessage implements [domain.MessageHandler] interface
func (h *SweepHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	subject := msg.Subject()
	ctx = logging.AppendCtx(ctx, slog.String("subject", subject))
	slog.DebugContext(ctx, "handling NATS message")

	handlers := map[string]func(ctx context.Context, msg domain.Message) ([]byte, error){
		models.AutoInstallSweepSubject: h.handleSweep,
	}

	handler, ok := handlers[subject]
	if !ok {
		slog.WarnContext(ctx, "unknown subject")
		h.respond(ctx, msg, nil)
		return
	}

	response, err := handler(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "error handling message", logging.ErrKey, err)
		h.respond(ctx, msg, nil)
		return
	}
	h.respond(ctx, msg, response)
}

func (h *SweepHandler) handleSweep(ctx context.Context, _ domain.Message) ([]byte, error) {
	result, err := h.autoInstallService.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (h *SweepHandler) respond(ctx context.Context, msg domain.Message, data []byte) {
	if !msg.HasReply() {
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.ErrorContext(ctx, "error responding to NATS message", logging.ErrKey, err)
		return
	}
	slog.DebugContext(ctx, "responded to NATS message", "response", string(data))
}
