// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Re-exported so callers only need to import this package for the common
// chi middleware alongside Logger, mirroring the rest of the package's
// middleware surface.
var (
	RequestID       = chimiddleware.RequestID
	RealIP          = chimiddleware.RealIP
	ThrottleBacklog = chimiddleware.ThrottleBacklog
)

// Recoverer is chi's middleware.Recoverer, re-exported unchanged: it
// recovers a panic, prints chi's plain-text stack dump and responds 500.
// It does not log through the zerolog logger passed to Logger.
func Recoverer(next http.Handler) http.Handler {
	return chimiddleware.Recoverer(next)
}

// Logger returns chi middleware that emits one structured access-log line
// per request (type=access) plus, on panic, a recovered type=error line —
// the inbound counterpart of the fetch client's span-per-request tracing.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			bytesIn := r.ContentLength
			if bytesIn < 0 {
				bytesIn = 0
			}

			defer func() {
				if rec := recover(); rec != nil {
					if ww.Status() == 0 {
						ww.WriteHeader(http.StatusInternalServerError)
					}
					logger.Error().
						Str("type", "error").
						Str("method", r.Method).
						Str("url", r.URL.String()).
						Int("status", ww.Status()).
						Dur("latency_ms", time.Since(start)).
						Interface("panic", rec).
						Msg("panic recovered")
					return
				}

				logger.Info().
					Str("type", "access").
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Int("status", ww.Status()).
					Int64("bytes_in", bytesIn).
					Int("bytes_out", ww.BytesWritten()).
					Str("user_agent", r.UserAgent()).
					Str("remote_addr", r.RemoteAddr).
					Dur("latency_ms", time.Since(start)).
					Msg("request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
