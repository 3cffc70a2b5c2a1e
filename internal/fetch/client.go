// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// Client is a polymorphic HTTP client capability: GET → bytes, GET → text,
// GET → bytes (image-typed). Its RoundTripper is the fixed four-stage
// middleware chain: tracing, retry, rate limit, cache, in that order.
type Client struct {
	http      *http.Client
	cfg       *Config
	userAgent string
	jar       *CookieJar // nil unless created via Fork
	logger    zerolog.Logger
}

// New builds a root Client from cfg (nil uses DefaultConfig). A root client
// has no cookie jar; use Fork to attach one for a credentialed session.
func New(cfg *Config) (*Client, error) {
	return newClient(cfg, nil)
}

func newClient(cfg *Config, jar *CookieJar) (*Client, error) {
	cfg = cfg.clone()
	logger := log.Logger.With().Str("component", "fetch").Logger()

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = randomMobileUserAgent()
	}

	var rt http.RoundTripper = &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent}

	if cfg.Cache != nil && cfg.Cache.MaxEntries > 0 {
		cacheRT, err := newCacheTransport(rt, *cfg.Cache)
		if err != nil {
			return nil, err
		}
		rt = cacheRT
	}
	if cfg.RateLimit != nil && cfg.RateLimit.MaxTokens > 0 {
		rt = newRateLimitTransport(rt, *cfg.RateLimit)
	}
	if cfg.Retry != nil {
		rt = newRetryTransport(rt, *cfg.Retry, logger)
	}
	rt = newTracingTransport(rt, logger)

	httpClient := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
	if jar != nil {
		httpClient.Jar = jarAdapter{jar}
	}

	return &Client{
		http:      httpClient,
		cfg:       cfg,
		userAgent: userAgent,
		jar:       jar,
		logger:    logger,
	}, nil
}

// userAgentTransport is the innermost real transport: it stamps the
// configured User-Agent and then delegates to base (normally
// http.DefaultTransport, swappable for tests).
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "round trip", err)
	}
	return resp, nil
}

// jarAdapter satisfies http.CookieJar for a *CookieJar.
type jarAdapter struct{ j *CookieJar }

func (a jarAdapter) SetCookies(u *url.URL, cookies []*http.Cookie) { a.j.SetCookies(u, cookies) }
func (a jarAdapter) Cookies(u *url.URL) []*http.Cookie             { return a.j.Cookies(u) }

// CookieJar returns the forked jar, or nil for a root client.
func (c *Client) CookieJar() *CookieJar { return c.jar }

// Fork returns a Builder seeded with this client's middleware configuration;
// Build() on it produces a Client with a fresh transport and its own cookie
// jar. This is the only way to attach a jar or per-session User-Agent.
func (c *Client) Fork() *Builder {
	return &Builder{cfg: c.cfg.clone()}
}

// Builder configures a forked Client before construction.
type Builder struct {
	cfg       *Config
	userAgent string
	jar       *CookieJar
}

// WithUserAgent overrides the per-session User-Agent.
func (b *Builder) WithUserAgent(ua string) *Builder {
	b.userAgent = ua
	return b
}

// WithCookieJar attaches an existing jar (e.g. restored from Credential3rd).
func (b *Builder) WithCookieJar(j *CookieJar) *Builder {
	b.jar = j
	return b
}

// Build finalizes the forked Client, creating a fresh empty jar if none was
// attached via WithCookieJar.
func (b *Builder) Build() (*Client, error) {
	jar := b.jar
	if jar == nil {
		var err error
		jar, err = NewCookieJar()
		if err != nil {
			return nil, err
		}
	}
	if b.userAgent != "" {
		b.cfg.UserAgent = b.userAgent
	}
	return newClient(b.cfg, jar)
}

// GetBytes performs a GET and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "read response body", err)
	}
	return body, nil
}

// GetText performs a GET and decodes the body as UTF-8 text.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	body, err := c.GetBytes(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ImageResult is the payload of GetImage: raw bytes plus the content type
// the remote reported.
type ImageResult struct {
	Bytes       []byte
	ContentType string
}

// GetImage performs a GET expected to return an image, surfacing the
// upstream Content-Type alongside the bytes.
func (c *Client) GetImage(ctx context.Context, rawURL string) (*ImageResult, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "read image body", err)
	}
	return &ImageResult{Bytes: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Do exposes the raw *http.Response for callers needing headers (e.g. the
// Mikan login flow's Set-Cookie inspection); the response body is the
// caller's responsibility to close.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "do request", err)
	}
	return resp, nil
}

// DoNoRedirect behaves like Do but returns the first response unfollowed,
// for handshakes (e.g. the Mikan login flow) that key off a redirect
// response's status and Set-Cookie headers rather than its target's body.
func (c *Client) DoNoRedirect(req *http.Request) (*http.Response, error) {
	noRedirect := &http.Client{
		Transport: c.http.Transport,
		Jar:       c.http.Jar,
		Timeout:   c.http.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "do request (no redirect)", err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.UserInput, "build request", err)
	}
	return c.Do(req)
}
