// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// mockKeyValueEntry implements jetstream.KeyValueEntry for testing
type mockKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
}

func (m *mockKeyValueEntry) Key() string                     { return m.key }
func (m *mockKeyValueEntry) Value() []byte                   { return m.value }
func (m *mockKeyValueEntry) Revision() uint64                { return m.revision }
func (m *mockKeyValueEntry) Created() time.Time              { return time.Now() }
func (m *mockKeyValueEntry) Delta() uint64                   { return 0 }
func (m *mockKeyValueEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }
func (m *mockKeyValueEntry) Bucket() string                  { return "test-bucket" }

// mockNatsKeyValue is an in-memory INatsKeyValue with revision checks.
type mockNatsKeyValue struct {
	mu        sync.Mutex
	data      map[string][]byte
	revisions map[string]uint64
	putError  error
	getError  error
	updateErr error

	// beforeUpdate runs once before the next Update is applied.
	beforeUpdate func(m *mockNatsKeyValue)
}

func newMockNatsKeyValue() *mockNatsKeyValue {
	return &mockNatsKeyValue{
		data:      make(map[string][]byte),
		revisions: make(map[string]uint64),
	}
}

func (m *mockNatsKeyValue) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	value, exists := m.data[key]
	if !exists {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockKeyValueEntry{key: key, value: value, revision: m.revisions[key]}, nil
}

func (m *mockNatsKeyValue) Put(_ context.Context, key string, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putError != nil {
		return 0, m.putError
	}
	return m.store(key, data), nil
}

func (m *mockNatsKeyValue) Update(_ context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	if m.revisions[key] != expectedRevision {
		return 0, errors.New("nats: wrong last sequence")
	}
	return m.store(key, data), nil
}

func (m *mockNatsKeyValue) store(key string, data []byte) uint64 {
	m.data[key] = data
	m.revisions[key]++
	return m.revisions[key]
}

// mockObjectStore records the objects written to it.
type mockObjectStore struct {
	objects  map[string][]byte
	metas    map[string]jetstream.ObjectMeta
	putError error
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{
		objects: make(map[string][]byte),
		metas:   make(map[string]jetstream.ObjectMeta),
	}
}

func (m *mockObjectStore) Put(_ context.Context, obj jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error) {
	if m.putError != nil {
		return nil, m.putError
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	m.objects[obj.Name] = data
	m.metas[obj.Name] = obj
	return &jetstream.ObjectInfo{ObjectMeta: obj, Size: uint64(len(data))}, nil
}
