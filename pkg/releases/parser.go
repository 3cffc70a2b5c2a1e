// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases classifies downloader-facing release strings (the
// `rls`-parsed view of a torrent name) for the Torrent Driver's Creation
// sanity check — never used by internal/rawname, which speaks its own CJK
// grammar instead.
package releases

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/moistari/rls"
)

// defaultCacheSize bounds the number of distinct release names held at once.
const defaultCacheSize = 4096

// Parser parses release names via moistari/rls, caching results for a TTL so
// repeated lookups of the same torrent name (e.g. from a poll loop) don't
// re-run the tokenizer.
type Parser struct {
	cache *lru.LRU[string, rls.Release]
}

// NewParser builds a Parser whose cache entries expire after ttl.
func NewParser(ttl time.Duration) *Parser {
	return &Parser{cache: lru.NewLRU[string, rls.Release](defaultCacheSize, nil, ttl)}
}

// NewDefaultParser builds a Parser with a sensible default TTL.
func NewDefaultParser() *Parser {
	return NewParser(10 * time.Minute)
}

// Parse returns the rls.Release for name, consulting and populating the
// cache. A nil Parser (or one with no cache) still parses, just uncached.
func (p *Parser) Parse(name string) *rls.Release {
	name = strings.TrimSpace(name)
	if p == nil || p.cache == nil {
		r := rls.ParseString(name)
		return &r
	}
	if cached, ok := p.cache.Get(name); ok {
		return &cached
	}
	r := rls.ParseString(name)
	p.cache.Add(name, r)
	return &r
}

// Clear evicts name from the cache, if present.
func (p *Parser) Clear(name string) {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.Remove(strings.TrimSpace(name))
}
