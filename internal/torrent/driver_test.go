// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

func TestReplicaMergeSemantics(t *testing.T) {
	t.Parallel()

	r := newReplica()

	r.merge(&qbt.MainData{
		Rid:        1,
		FullUpdate: true,
		Torrents: map[string]qbt.Torrent{
			"aaa": {Hash: "aaa", Category: "x"},
			"bbb": {Hash: "bbb"},
		},
		Categories: map[string]qbt.Category{"x": {Name: "x"}},
		Tags:       []string{"t1"},
	})

	snap := r.snapshot()
	assert.Len(t, snap.Torrents, 2)
	assert.Contains(t, snap.Categories, "x")
	assert.Contains(t, snap.Tags, "t1")

	// Delta: removed-lists delete, present-lists merge.
	r.merge(&qbt.MainData{
		Rid:             2,
		TorrentsRemoved: []string{"bbb"},
		Torrents:        map[string]qbt.Torrent{"ccc": {Hash: "ccc"}},
		TagsRemoved:     []string{"t1"},
	})
	snap = r.snapshot()
	assert.NotContains(t, snap.Torrents, "bbb")
	assert.Contains(t, snap.Torrents, "aaa")
	assert.Contains(t, snap.Torrents, "ccc")
	assert.NotContains(t, snap.Tags, "t1")
	assert.EqualValues(t, 2, r.currentRid())

	// Full update clears everything first.
	r.merge(&qbt.MainData{Rid: 3, FullUpdate: true})
	snap = r.snapshot()
	assert.Empty(t, snap.Torrents)
	assert.Empty(t, snap.Categories)
}

func TestPathsEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, pathsEqual("/downloads/Anime/", "/downloads/anime"))
	assert.True(t, pathsEqual(`C:\Anime`, "c:/anime"))
	assert.False(t, pathsEqual("/a", "/b"))
}

func TestWaitSyncUntilReturnsWhenPredicateHolds(t *testing.T) {
	t.Parallel()

	d := New(1, 1, "test", nil, 2*time.Second)

	done := make(chan error, 1)
	go func() {
		done <- d.waitSyncUntil(context.Background(), "test_action", func(s Snapshot) bool {
			_, ok := s.Torrents["aaa"]
			return ok
		})
	}()

	// Simulate the sync task: merge then notify.
	time.Sleep(50 * time.Millisecond)
	d.replica.merge(&qbt.MainData{Rid: 1, Torrents: map[string]qbt.Torrent{"aaa": {Hash: "aaa"}}})
	d.watch.notify(time.Now())

	require.NoError(t, <-done)
}

func TestWaitSyncUntilTimesOut(t *testing.T) {
	t.Parallel()

	d := New(1, 1, "test", nil, 100*time.Millisecond)
	err := d.waitSyncUntil(context.Background(), "never_done", func(Snapshot) bool { return false })
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Timeout))
	assert.Contains(t, err.Error(), "never_done")
}

// fakeQbit is a minimal qBittorrent Web API v2 remote: auth, torrent add,
// category create, and rid-versioned maindata sync.
type fakeQbit struct {
	mu         sync.Mutex
	rid        int64
	torrents   map[string]map[string]any
	categories map[string]map[string]any
}

var magnetHashRe = regexp.MustCompile(`urn:btih:([0-9a-fA-F]{40})`)

func newFakeQbit() *fakeQbit {
	return &fakeQbit{
		torrents:   map[string]map[string]any{},
		categories: map[string]map[string]any{},
	}
}

func (f *fakeQbit) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "fake-session", Path: "/"})
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/app/webapiVersion", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("2.11.4"))
	})
	mux.HandleFunc("/api/v2/torrents/createCategory", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		name := r.FormValue("category")
		f.mu.Lock()
		f.categories[name] = map[string]any{"name": name, "savePath": r.FormValue("savePath")}
		f.rid++
		f.mu.Unlock()
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		urls := r.FormValue("urls")
		category := r.FormValue("category")
		savePath := r.FormValue("savepath")
		tags := r.FormValue("tags")
		f.mu.Lock()
		for _, line := range strings.Split(urls, "\n") {
			if m := magnetHashRe.FindStringSubmatch(line); m != nil {
				hash := strings.ToLower(m[1])
				f.torrents[hash] = map[string]any{
					"hash":      hash,
					"category":  category,
					"save_path": savePath,
					"tags":      tags,
					"state":     "downloading",
				}
			}
		}
		f.rid++
		f.mu.Unlock()
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/sync/maindata", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		payload := map[string]any{
			"rid":         f.rid,
			"full_update": true,
			"torrents":    f.torrents,
			"categories":  f.categories,
			"server_state": map[string]any{
				"connection_status": "connected",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
	return mux
}

// Add-and-categorize against a fresh remote: after AddDownloads returns,
// the replica contains the hash, the category exists, and the torrent
// carries it — all inside the 3 s wait budget.
func TestAddDownloadsAgainstFakeRemote(t *testing.T) {
	fake := newFakeQbit()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := qbt.NewClient(qbt.Config{Host: srv.URL, Username: "admin", Password: "pass", Timeout: 5})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.LoginCtx(ctx))

	d := New(1, 1, "fake", client, 3*time.Second)
	d.Start(ctx)
	defer d.Stop()

	const hash = "0123456789abcdef0123456789abcdef01234567"
	start := time.Now()
	err := d.AddDownloads(ctx, Creation{
		SavePath: "/a",
		Tags:     []string{"t"},
		Category: "cat",
		Sources: []HashTorrentSource{{
			Kind:      SourceMagnet,
			InfoHash:  hash,
			MagnetURL: "magnet:?xt=urn:btih:" + hash + "&dn=x",
		}},
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	snap := d.Snapshot()
	torrent, ok := snap.Torrents[hash]
	require.True(t, ok, "replica must contain the added hash")
	assert.Equal(t, "cat", torrent.Category)
	_, ok = snap.Categories["cat"]
	assert.True(t, ok, "category must be created")
}
