// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// retryTransport retries transient network errors and 5xx responses with
// exponential backoff, replacing a hand-rolled
// internal/proxy.RetryTransport onto avast/retry-go.
type retryTransport struct {
	base   http.RoundTripper
	cfg    RetryConfig
	logger zerolog.Logger
}

func newRetryTransport(base http.RoundTripper, cfg RetryConfig, logger zerolog.Logger) *retryTransport {
	return &retryTransport{base: base, cfg: cfg, logger: logger.With().Str("component", "fetch.retry").Logger()}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cfg.MaxAttempts <= 1 {
		return t.base.RoundTrip(req)
	}

	var resp *http.Response

	err := retry.Do(
		func() error {
			reqClone := req.Clone(req.Context())
			r, err := t.base.RoundTrip(reqClone)
			if err != nil {
				return err
			}
			if r.StatusCode >= 500 {
				resp = r
				return apperror.New(apperror.Transport, "upstream 5xx "+r.Status)
			}
			resp = r
			return nil
		},
		retry.Attempts(t.cfg.MaxAttempts),
		retry.Delay(t.cfg.BaseDelay),
		retry.MaxDelay(t.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(req.Context()),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Debug().
				Uint("attempt", n+1).
				Str("method", req.Method).
				Str("url", req.URL.Redacted()).
				Err(err).
				Msg("retrying request")
		}),
	)
	if err != nil {
		if resp != nil && resp.StatusCode >= 500 {
			return resp, nil
		}
		return nil, apperror.Wrap(apperror.Transport, "request failed after retries", err)
	}

	return resp, nil
}

// isRetryable classifies transient failures. Anything tagged
// apperror.Transport is retried: that covers the 5xx marker above and every
// error from the inner round trip, which userAgentTransport wraps as
// Transport (timeouts included). Untagged errors are retried for
// DNS/dial/read/reset/refused/broken-pipe failures and not for net
// timeouts. 4xx responses are not errors and are never retried; a
// cancelled request context ends the loop through retry.Context.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apperror.Is(err, apperror.Transport) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read"
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "no such host")
}
