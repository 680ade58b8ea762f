// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"strings"

	"github.com/nats-io/nats.go"
)

// Key prefixes within the sessions bucket.
const (
	KeyPrefixSession     = "session"
	KeyPrefixAutoInstall = "autoinstall"
)

// KeyBuilder builds NATS KV keys from arbitrary identifiers. Each segment is
// base64url encoded so ids carrying '/', ':' or spaces stay valid keys.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a key builder with an optional leading segment.
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

// SessionKey is the key of a meeting session.
func (kb *KeyBuilder) SessionKey(meetingID string) string {
	return kb.EncodeKey(KeyPrefixSession, meetingID)
}

// InstallRecordKey is the key of an install cache record. The id is the full
// install record id including its namespace prefix.
func (kb *KeyBuilder) InstallRecordKey(recordID string) string {
	return kb.EncodeKey(KeyPrefixAutoInstall, recordID)
}

// EncodeKey joins the encoded segments with '.'.
func (kb *KeyBuilder) EncodeKey(segments ...string) string {
	if kb.prefix != "" {
		segments = append([]string{kb.prefix}, segments...)
	}
	encoded := make([]string, 0, len(segments))
	for _, segment := range segments {
		encoded = append(encoded, base64.RawURLEncoding.EncodeToString([]byte(segment)))
	}
	return strings.Join(encoded, ".")
}

// DecodeKey reverses EncodeKey and returns the raw segments.
func (kb *KeyBuilder) DecodeKey(key string) ([]string, error) {
	if key == "" {
		return nil, nats.ErrInvalidKey
	}
	parts := strings.Split(key, ".")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		raw, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return nil, err
		}
		segments = append(segments, string(raw))
	}
	if kb.prefix != "" && len(segments) > 0 && segments[0] == kb.prefix {
		segments = segments[1:]
	}
	return segments, nil
}
