// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"net/http"
)

// ReadyChecker reports whether a component can take requests.
type ReadyChecker interface {
	HandlerReady() bool
}

// Livez always succeeds while the process is running. As this endpoint is
// used as a liveness check, the service must self-terminate on
// non-recoverable errors.
func Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz succeeds when every checker is ready.
func Readyz(checkers ...ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, c := range checkers {
			if !c.HandlerReady() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("service unavailable\n"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	}
}
