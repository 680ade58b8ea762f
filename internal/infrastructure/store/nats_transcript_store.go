// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/logging"
	"github.com/linuxfoundation/lfx-v2-meeting-bot/pkg/constants"
)

// INatsObjectStore is the subset of jetstream.ObjectStore used for transcripts.
type INatsObjectStore interface {
	Put(ctx context.Context, obj jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
}

// NatsTranscriptStore keeps transcript files in a NATS object store bucket.
type NatsTranscriptStore struct {
	objectStore INatsObjectStore
}

// NewNatsTranscriptStore creates a transcript blob store.
func NewNatsTranscriptStore(objectStore INatsObjectStore) *NatsTranscriptStore {
	return &NatsTranscriptStore{objectStore: objectStore}
}

// IsReady reports whether the object store is available.
func (s *NatsTranscriptStore) IsReady() bool {
	return s.objectStore != nil
}

// Put uploads data under key. The content type travels as an object header.
func (s *NatsTranscriptStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "nats.object.put",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", "put"),
			attribute.String("db.nats.object", key),
			attribute.Int("db.nats.object_size", len(data)),
		),
	)
	defer span.End()

	if !s.IsReady() {
		err := domain.NewUnavailableError("transcript store is not available")
		return failSpan(span, err, err.Error())
	}
	if key == "" {
		err := domain.NewValidationError("object key is required")
		return failSpan(span, err, err.Error())
	}

	headers := nats.Header{}
	if contentType != "" {
		headers.Set(constants.ContentTypeHeader, contentType)
	}

	_, err := s.objectStore.Put(ctx, jetstream.ObjectMeta{
		Name:        key,
		Description: metadata["title"],
		Headers:     headers,
		Metadata:    metadata,
	}, bytes.NewReader(data))
	if err != nil {
		slog.ErrorContext(ctx, "error putting transcript in NATS object store",
			logging.ErrKey, err, "key", key)
		err = domain.NewUnavailableError("failed to store transcript", err)
		return failSpan(span, err, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
