// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrent drives a qBittorrent-compatible remote as an
// eventually-consistent replica: a background sync loop pulls deltas via
// the remote's monotonic revision id ("rid") and merges them into an
// in-memory snapshot, while commands issue an HTTP call and then wait for
// that snapshot to reflect the expected post-condition.
package torrent

import (
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/aniwatch/aniwatch/pkg/pathcmp"
)

// Replica is the local mirror of one downloader's remote state. All reads
// and merges go through mu; callers needing a point-in-time view should
// copy out from Snapshot rather than hold the lock across other work.
type Replica struct {
	mu sync.RWMutex

	rid int64

	torrents   map[string]qbt.Torrent
	categories map[string]qbt.Category
	tags       map[string]struct{}
	trackers   map[string][]string
	serverState qbt.ServerState
}

func newReplica() *Replica {
	return &Replica{
		torrents:   make(map[string]qbt.Torrent),
		categories: make(map[string]qbt.Category),
		tags:       make(map[string]struct{}),
		trackers:   make(map[string][]string),
	}
}

// merge applies a sync delta: a full-update clears every map
// first; removed-lists delete; present-lists deep-merge key by key.
func (r *Replica) merge(data *qbt.MainData) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data.FullUpdate {
		r.torrents = make(map[string]qbt.Torrent)
		r.categories = make(map[string]qbt.Category)
		r.tags = make(map[string]struct{})
		r.trackers = make(map[string][]string)
	}

	for hash, t := range data.Torrents {
		r.torrents[hash] = t
	}
	for _, hash := range data.TorrentsRemoved {
		delete(r.torrents, hash)
	}

	for name, c := range data.Categories {
		r.categories[name] = c
	}
	for _, name := range data.CategoriesRemoved {
		delete(r.categories, name)
	}

	for _, tag := range data.Tags {
		r.tags[tag] = struct{}{}
	}
	for _, tag := range data.TagsRemoved {
		delete(r.tags, tag)
	}

	for host, trackers := range data.Trackers {
		r.trackers[host] = trackers
	}

	r.serverState = data.ServerState
	r.rid = data.Rid
}

func (r *Replica) currentRid() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rid
}

// Snapshot is a read-only copy of the replica, safe to inspect without
// holding any lock.
type Snapshot struct {
	Torrents    map[string]qbt.Torrent
	Categories  map[string]qbt.Category
	Tags        map[string]struct{}
	ServerState qbt.ServerState
}

func (r *Replica) snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Torrents:    make(map[string]qbt.Torrent, len(r.torrents)),
		Categories:  make(map[string]qbt.Category, len(r.categories)),
		Tags:        make(map[string]struct{}, len(r.tags)),
		ServerState: r.serverState,
	}
	for k, v := range r.torrents {
		s.Torrents[k] = v
	}
	for k, v := range r.categories {
		s.Categories[k] = v
	}
	for k := range r.tags {
		s.Tags[k] = struct{}{}
	}
	return s
}

// pathsEqual neutralizes separator and case differences across
// heterogeneous filesystems by rendering both sides of a path comparison as
// file:// URLs.
func pathsEqual(a, b string) bool {
	return pathcmp.Equal(a, b)
}
