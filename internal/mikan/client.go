// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mikan implements the site-specific Mikan extractor: URL
// builders/parsers, goquery/gofeed-based HTML and RSS extraction, the login
// handshake, and the season-flow streaming pipeline. It is a thin stateful
// wrapper over internal/fetch — every network call goes through a
// per-credential *fetch.Client obtained via Fork, never the stdlib client
// directly.
package mikan

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/fetch"
)

// Client is a session-bound Mikan client: a forked *fetch.Client carrying
// one credential's cookie jar, plus the site's base URL and an optional
// poster cache.
type Client struct {
	http    *fetch.Client
	baseURL string
	posters PosterStore
}

// New wraps an already-forked *fetch.Client (e.g. from ForCredential) as a
// Mikan client.
func New(httpClient *fetch.Client, baseURL string, posters PosterStore) *Client {
	return &Client{http: httpClient, baseURL: baseURL, posters: posters}
}

// ForCredential forks root for a specific credential session, restoring its
// cookie jar from cookiesJSON (a Credential3rd.Cookies value; empty yields a
// fresh jar) and applying userAgent if non-empty.
func ForCredential(root *fetch.Client, baseURL, userAgent, cookiesJSON string, posters PosterStore) (*Client, error) {
	jar, err := fetch.RestoreCookieJar(cookiesJSON)
	if err != nil {
		return nil, err
	}
	builder := root.Fork().WithCookieJar(jar)
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	forked, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return New(forked, baseURL, posters), nil
}

// BaseURL returns the configured Mikan site root.
func (c *Client) BaseURL() string { return c.baseURL }

// ExportCookies snapshots the session's cookie jar for persistence back into
// Credential3rd.Cookies after a successful server call.
func (c *Client) ExportCookies() (string, error) {
	jar := c.http.CookieJar()
	if jar == nil {
		return "", apperror.New(apperror.Config, "mikan client has no cookie jar to export")
	}
	return jar.MarshalToString()
}

func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.http.GetText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, apperror.Wrap(apperror.ProtocolShape, "parse html document", err)
	}
	return doc, nil
}

// EpisodeMetaFromHomepageURL fetches and extracts an episode homepage.
func (c *Client) EpisodeMetaFromHomepageURL(ctx context.Context, rawURL string) (EpisodeMeta, error) {
	doc, err := c.fetchDocument(ctx, rawURL)
	if err != nil {
		return EpisodeMeta{}, err
	}
	return EpisodeMetaFromHomepage(doc, c.baseURL)
}

// BangumiIndexMetaFromHomepageURL fetches and extracts a bangumi homepage.
func (c *Client) BangumiIndexMetaFromHomepageURL(ctx context.Context, rawURL string) (BangumiIndexMeta, error) {
	doc, err := c.fetchDocument(ctx, rawURL)
	if err != nil {
		return BangumiIndexMeta{}, err
	}
	return BangumiIndexMetaFromHomepage(doc, c.baseURL)
}

// FetchRSSChannel fetches and parses an RSS feed URL.
func (c *Client) FetchRSSChannel(ctx context.Context, rawURL string) (RSSChannel, error) {
	body, err := c.http.GetBytes(ctx, rawURL)
	if err != nil {
		return RSSChannel{}, err
	}
	return ParseRSSChannel(body)
}

// FetchTorrent downloads a .torrent file through the session client, so
// authenticated feeds serve the same cookies as the page fetches.
func (c *Client) FetchTorrent(ctx context.Context, rawURL string) ([]byte, error) {
	return c.http.GetBytes(ctx, resolveAgainst(c.baseURL, rawURL))
}
