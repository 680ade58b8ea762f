// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"net/http"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
)

// NatsMsg adapts a *nats.Msg to [domain.Message].
type NatsMsg struct {
	msg *nats.Msg
}

var _ domain.Message = (*NatsMsg)(nil)

// NewNatsMsg wraps msg.
func NewNatsMsg(msg *nats.Msg) *NatsMsg {
	return &NatsMsg{msg: msg}
}

// Subject returns the subject the message arrived on.
func (m *NatsMsg) Subject() string {
	return m.msg.Subject
}

// Data returns the message payload.
func (m *NatsMsg) Data() []byte {
	return m.msg.Data
}

// Respond replies to the sender.
func (m *NatsMsg) Respond(data []byte) error {
	return m.msg.Respond(data)
}

// HasReply reports whether the sender expects a response.
func (m *NatsMsg) HasReply() bool {
	return m.msg.Reply != ""
}

// Context returns ctx carrying the trace context propagated in the headers.
func (m *NatsMsg) Context(ctx context.Context) context.Context {
	if m.msg.Header == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(m.msg.Header)))
}
