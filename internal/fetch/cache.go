// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// cacheEntry is a stored response, keyed by method+URL+Vary per RFC 7234.
type cacheEntry struct {
	status     int
	header     http.Header
	body       []byte
	storedAt   time.Time
	maxAge     time.Duration
	etag       string
	lastMod    string
	varyValues map[string]string // request header values named by Vary, captured at store time
}

func (e *cacheEntry) fresh() bool {
	return time.Since(e.storedAt) < e.maxAge
}

// cacheTransport is the innermost middleware stage: an in-memory,
// per-client LRU of bounded size implementing the cacheable subset of RFC
// 7234 (only GET and HEAD, only explicit positive freshness via max-age).
type cacheTransport struct {
	base  http.RoundTripper
	store *lru.Cache[string, []*cacheEntry]
	mu    sync.Mutex
}

func newCacheTransport(base http.RoundTripper, cfg CacheConfig) (*cacheTransport, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = 1
	}
	store, err := lru.New[string, []*cacheEntry](size)
	if err != nil {
		return nil, apperror.Wrap(apperror.CacheError, "create fetch cache", err)
	}
	return &cacheTransport{base: base, store: store}, nil
}

func (t *cacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.base.RoundTrip(req)
	}

	key := req.Method + " " + req.URL.String()

	t.mu.Lock()
	candidates, _ := t.store.Get(key)
	t.mu.Unlock()

	if entry := matchVary(candidates, req); entry != nil && entry.fresh() {
		return t.buildResponse(req, entry), nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	entry, ok := buildCacheEntry(req, resp)
	if !ok {
		return resp, nil
	}

	t.mu.Lock()
	t.store.Add(key, replaceVary(candidates, entry))
	t.mu.Unlock()

	return resp, nil
}

func matchVary(candidates []*cacheEntry, req *http.Request) *cacheEntry {
	for _, c := range candidates {
		match := true
		for h, v := range c.varyValues {
			if req.Header.Get(h) != v {
				match = false
				break
			}
		}
		if match {
			return c
		}
	}
	return nil
}

func replaceVary(candidates []*cacheEntry, entry *cacheEntry) []*cacheEntry {
	out := make([]*cacheEntry, 0, len(candidates)+1)
	for _, c := range candidates {
		same := len(c.varyValues) == len(entry.varyValues)
		if same {
			for h, v := range c.varyValues {
				if entry.varyValues[h] != v {
					same = false
					break
				}
			}
		}
		if !same {
			out = append(out, c)
		}
	}
	return append(out, entry)
}

func buildCacheEntry(req *http.Request, resp *http.Response) (*cacheEntry, bool) {
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	cc := resp.Header.Get("Cache-Control")
	if strings.Contains(cc, "no-store") {
		return nil, false
	}

	maxAge, hasMaxAge := parseMaxAge(cc)
	if !hasMaxAge || maxAge <= 0 {
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, false
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	vary := map[string]string{}
	for _, h := range strings.Split(resp.Header.Get("Vary"), ",") {
		h = strings.TrimSpace(h)
		if h == "" || h == "*" {
			continue
		}
		vary[h] = req.Header.Get(h)
	}

	return &cacheEntry{
		status:     resp.StatusCode,
		header:     resp.Header.Clone(),
		body:       body,
		storedAt:   time.Now(),
		maxAge:     maxAge,
		etag:       resp.Header.Get("ETag"),
		lastMod:    resp.Header.Get("Last-Modified"),
		varyValues: vary,
	}, true
}

func parseMaxAge(cacheControl string) (time.Duration, bool) {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func (t *cacheTransport) buildResponse(req *http.Request, entry *cacheEntry) *http.Response {
	resp := &http.Response{
		Status:     http.StatusText(entry.status),
		StatusCode: entry.status,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     entry.header.Clone(),
		Body:       io.NopCloser(bytes.NewReader(entry.body)),
		Request:    req,
	}
	resp.Header.Set("X-Fetch-Cache", "HIT")
	return resp
}
