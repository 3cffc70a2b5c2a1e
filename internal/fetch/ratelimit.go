// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitTransport acquires exactly one token per request and blocks
// until granted, implementing the leaky-bucket stage on top of
// golang.org/x/time/rate. Burst == MaxTokens, refill == RefillTokens per
// RefillInterval; InitialTokens seeds the bucket below full if configured.
type rateLimitTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newRateLimitTransport(base http.RoundTripper, cfg RateLimitConfig) *rateLimitTransport {
	refillPerSecond := float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()
	limiter := rate.NewLimiter(rate.Limit(refillPerSecond), cfg.MaxTokens)

	if cfg.InitialTokens < cfg.MaxTokens {
		// Burn down the initial burst so the bucket starts at InitialTokens
		// rather than full, per the configurable "initial_tokens" field.
		deficit := cfg.MaxTokens - cfg.InitialTokens
		_ = limiter.ReserveN(time.Now(), deficit)
	}

	return &rateLimitTransport{base: base, limiter: limiter}
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
