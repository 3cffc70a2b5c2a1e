// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/domain"
)

// filteredWriter wraps stderr to drop HTTP "unsolicited response" errors.
//
// qBittorrent occasionally sends extra HTTP responses after the main
// request completes, which causes Go's HTTP client to log "Unsolicited
// response received on idle HTTP channel" to stderr. The go-qbittorrent
// library doesn't expose HTTP client configuration, so the noise is
// filtered at the standard library log level instead.
type filteredWriter struct {
	writer io.Writer
}

func (fw *filteredWriter) Write(p []byte) (n int, err error) {
	if strings.Contains(string(p), "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	stdlog.SetOutput(&filteredWriter{writer: os.Stderr})
}

// minSetTagsVersion is the first Web API version with a native setTags
// endpoint. Connect records whether the remote reaches it (SupportsSetTags);
// no command here calls setTags or emulates it.
var minSetTagsVersion = semver.MustParse("2.11.4")

// Remote is an authenticated session against one downloader's qBittorrent
// Web UI, plus the capability flags probed at connect time.
type Remote struct {
	*qbt.Client

	downloaderID  int64
	webAPIVersion string

	mu              sync.RWMutex
	supportsSetTags bool
	lastHealthCheck time.Time
	healthy         bool
}

// Connect logs in to the downloader profile's endpoint and probes its Web
// API version.
func Connect(ctx context.Context, d domain.Downloader) (*Remote, error) {
	client := qbt.NewClient(qbt.Config{
		Host:     d.Endpoint,
		Username: d.Username,
		Password: d.Password,
		Timeout:  30,
	})

	if err := client.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("torrent: connect downloader %d: %w", d.ID, err)
	}

	webAPIVersion, err := client.GetWebAPIVersionCtx(ctx)
	if err != nil {
		webAPIVersion = ""
	}

	supportsSetTags := false
	if webAPIVersion != "" {
		if v, err := semver.NewVersion(webAPIVersion); err == nil {
			supportsSetTags = !v.LessThan(minSetTagsVersion)
		}
	}

	log.Debug().
		Int64("downloaderID", d.ID).
		Str("endpoint", d.Endpoint).
		Str("webAPIVersion", webAPIVersion).
		Bool("supportsSetTags", supportsSetTags).
		Msg("connected to downloader remote")

	return &Remote{
		Client:          client,
		downloaderID:    d.ID,
		webAPIVersion:   webAPIVersion,
		supportsSetTags: supportsSetTags,
		lastHealthCheck: time.Now(),
		healthy:         true,
	}, nil
}

func (r *Remote) DownloaderID() int64   { return r.downloaderID }
func (r *Remote) WebAPIVersion() string { return r.webAPIVersion }

func (r *Remote) SupportsSetTags() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supportsSetTags
}

func (r *Remote) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy
}

// HealthCheck probes the remote, re-authenticating once if the session
// cookie expired.
func (r *Remote) HealthCheck(ctx context.Context) error {
	if _, err := r.GetWebAPIVersionCtx(ctx); err != nil {
		if loginErr := r.LoginCtx(ctx); loginErr != nil {
			r.setHealth(false)
			return fmt.Errorf("torrent: health check login: %w", loginErr)
		}
		if _, err := r.GetWebAPIVersionCtx(ctx); err != nil {
			r.setHealth(false)
			return fmt.Errorf("torrent: health check probe: %w", err)
		}
	}
	r.setHealth(true)
	return nil
}

func (r *Remote) setHealth(ok bool) {
	r.mu.Lock()
	r.healthy = ok
	r.lastHealthCheck = time.Now()
	r.mu.Unlock()
}
