// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-meeting-bot/internal/domain"
)

type testEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestNatsBaseRepository_IsReady(t *testing.T) {
	assert.True(t, NewNatsBaseRepository[testEntity](newMockNatsKeyValue(), "test").IsReady())
	assert.False(t, NewNatsBaseRepository[testEntity](nil, "test").IsReady())
}

func TestNatsBaseRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("successful get", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.data["k"] = []byte(`{"id":"1","name":"one"}`)
		kv.revisions["k"] = 4
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		entity, revision, err := repo.GetWithRevision(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, &testEntity{ID: "1", Name: "one"}, entity)
		assert.Equal(t, uint64(4), revision)
	})

	t.Run("not found", func(t *testing.T) {
		repo := NewNatsBaseRepository[testEntity](newMockNatsKeyValue(), "test")

		entity, err := repo.Get(ctx, "missing")
		assert.Nil(t, entity)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("store failure", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.getError = errors.New("connection lost")
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		_, err := repo.Get(ctx, "k")
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("corrupt value", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.data["k"] = []byte(`not json`)
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		_, err := repo.Get(ctx, "k")
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})

	t.Run("repository not ready", func(t *testing.T) {
		repo := NewNatsBaseRepository[testEntity](nil, "test")

		_, err := repo.Get(ctx, "k")
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}

func TestNatsBaseRepository_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		require.NoError(t, repo.Put(ctx, "k", &testEntity{ID: "1"}))
		require.NoError(t, repo.Put(ctx, "k", &testEntity{ID: "1", Name: "again"}))

		got, err := repo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "again", got.Name)
		assert.Equal(t, uint64(2), kv.revisions["k"])
	})

	t.Run("store failure", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.putError = errors.New("boom")
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		err := repo.Put(ctx, "k", &testEntity{ID: "1"})
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}

func TestNatsBaseRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("matching revision", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		repo := NewNatsBaseRepository[testEntity](kv, "test")
		require.NoError(t, repo.Put(ctx, "k", &testEntity{ID: "1"}))

		require.NoError(t, repo.Update(ctx, "k", &testEntity{ID: "1", Name: "updated"}, 1))
		got, err := repo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "updated", got.Name)
	})

	t.Run("stale revision is a conflict", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		repo := NewNatsBaseRepository[testEntity](kv, "test")
		require.NoError(t, repo.Put(ctx, "k", &testEntity{ID: "1"}))
		require.NoError(t, repo.Put(ctx, "k", &testEntity{ID: "1"}))

		err := repo.Update(ctx, "k", &testEntity{ID: "1"}, 1)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("zero revision creates", func(t *testing.T) {
		repo := NewNatsBaseRepository[testEntity](newMockNatsKeyValue(), "test")

		require.NoError(t, repo.Update(ctx, "new", &testEntity{ID: "2"}, 0))
		assert.True(t, domain.IsConflict(repo.Update(ctx, "new", &testEntity{ID: "2"}, 0)))
	})

	t.Run("store failure", func(t *testing.T) {
		kv := newMockNatsKeyValue()
		kv.updateErr = errors.New("timeout")
		repo := NewNatsBaseRepository[testEntity](kv, "test")

		err := repo.Update(ctx, "k", &testEntity{ID: "1"}, 0)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}
