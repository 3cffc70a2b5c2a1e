// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aniwatch/aniwatch/pkg/redact"
)

// tracingTransport is the outermost middleware stage: a "request started"
// and a "request finished" log line per logical request, both tagged with
// the same span id. Retries happen inside this stage, so all attempts of a
// request fall between that pair; the retry stage's own log lines carry
// no span id.
type tracingTransport struct {
	base   http.RoundTripper
	logger zerolog.Logger
}

func newTracingTransport(base http.RoundTripper, logger zerolog.Logger) *tracingTransport {
	return &tracingTransport{base: base, logger: logger.With().Str("component", "fetch").Logger()}
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := uuid.NewString()
	start := time.Now()

	t.logger.Debug().
		Str("span", span).
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Msg("request started")

	resp, err := t.base.RoundTrip(req)

	ev := t.logger.Debug()
	if err != nil {
		ev = t.logger.Warn().Err(redact.URLError(err))
	}
	ev = ev.Str("span", span).Dur("elapsed", time.Since(start))
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode)
	}
	ev.Msg("request finished")

	return resp, err
}
