// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	assert.Equal(t, "session not found", NewNotFoundError("session not found").Error())
	assert.Equal(t, "store unavailable: connection refused", NewUnavailableError("store unavailable", cause).Error())
	assert.ErrorIs(t, NewInternalError("failed", cause), cause)
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
		status   int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("missing"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("exists"), ErrorTypeConflict, http.StatusConflict},
		{"internal", NewInternalError("oops"), ErrorTypeInternal, http.StatusInternalServerError},
		{"unavailable", NewUnavailableError("down"), ErrorTypeUnavailable, http.StatusServiceUnavailable},
		{"wrapped conflict", fmt.Errorf("install: %w", NewConflictError("exists")), ErrorTypeConflict, http.StatusConflict},
		{"plain error", errors.New("plain"), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorType(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("x")))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("x")))
	assert.True(t, IsConflict(fmt.Errorf("wrap: %w", NewConflictError("x"))))
	assert.False(t, IsConflict(nil))
}
