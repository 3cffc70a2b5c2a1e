// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fetch provides a resilient HTTP client whose round-tripper is a
// fixed four-stage middleware stack (tracing, retry, rate limit, cache),
// with Fork() producing per-credential sessions that own their own cookie
// jar. Middleware configuration fields are optional; omitting one disables
// that stage.
package fetch

import (
	"math/rand"
	"net/url"
	"time"
)

// mobileUserAgents is the pool a default Config draws from when UserAgent is
// left empty, per spec's "mobile UA, randomly chosen at construction".
var mobileUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
}

func randomMobileUserAgent() string {
	return mobileUserAgents[rand.Intn(len(mobileUserAgents))]
}

// RetryConfig configures the exponential-backoff retry middleware.
type RetryConfig struct {
	MaxAttempts uint // includes the initial attempt; 0 disables retry
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimitConfig configures the leaky-bucket rate limiter. A zero value
// (MaxTokens == 0) disables rate limiting.
type RateLimitConfig struct {
	MaxTokens      int
	InitialTokens  int
	RefillTokens   int
	RefillInterval time.Duration
}

// CacheConfig configures the in-memory RFC 7234 cache. A zero MaxEntries
// disables caching.
type CacheConfig struct {
	MaxEntries int
}

// Config is the full, cloneable middleware configuration for a Client. Fork
// copies it and only swaps the transport-local pieces (cookie jar, UA).
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Proxy     *url.URL

	Retry     *RetryConfig
	RateLimit *RateLimitConfig
	Cache     *CacheConfig
}

// DefaultConfig carries conservative defaults for the three optional
// middleware stages.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Retry: &RetryConfig{
			MaxAttempts: 4,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		RateLimit: &RateLimitConfig{
			MaxTokens:      10,
			InitialTokens:  10,
			RefillTokens:   10,
			RefillInterval: time.Second,
		},
		Cache: &CacheConfig{MaxEntries: 512},
	}
}

// clone returns a deep-enough copy for Fork: the pointer fields are
// duplicated so a fork's tuning can diverge from its parent's.
func (c *Config) clone() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cp := *c
	if c.Retry != nil {
		r := *c.Retry
		cp.Retry = &r
	}
	if c.RateLimit != nil {
		rl := *c.RateLimit
		cp.RateLimit = &rl
	}
	if c.Cache != nil {
		ch := *c.Cache
		cp.Cache = &ch
	}
	return &cp
}
