// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/fetch"
)

func TestEpisodeMetaFromHomepageURLEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Home/Episode/3141", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Mikan Project - 呪術廻戦 第1話</title></head><body>
<div class="bangumi-title">
  <a href="/Home/Bangumi/3416">呪術廻戦</a>
  <a class="mikan-rss" href="/RSS/Bangumi?bangumiId=3416&subgroupid=370">RSS</a>
</div>
<div class="bangumi-info"><a href="/Home/PublishGroup/370">LoliHouse</a></div>
</body></html>`))
	})

	mc, srv := newTestMikanClient(t, mux)
	meta, err := mc.EpisodeMetaFromHomepageURL(context.Background(), srv.URL+"/Home/Episode/3141")
	require.NoError(t, err)
	assert.Equal(t, "3416", meta.MikanBangumiID)
	assert.Equal(t, "370", meta.MikanFansubID)
}

func TestFetchRSSChannel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/RSS/Bangumi", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Mikan Project - x</title>
<link>` + "http://" + r.Host + `/RSS/Bangumi?bangumiId=1&amp;subgroupid=2</link>
</channel></rss>`))
	})

	mc, srv := newTestMikanClient(t, mux)
	channel, err := mc.FetchRSSChannel(context.Background(), srv.URL+"/RSS/Bangumi?bangumiId=1&subgroupid=2")
	require.NoError(t, err)
	assert.Equal(t, RSSChannelBangumi, channel.Kind)
}

type fakePosterStore struct {
	mu    sync.Mutex
	put   map[string][]byte
	exist map[string]bool
}

func newFakePosterStore() *fakePosterStore {
	return &fakePosterStore{put: map[string][]byte{}, exist: map[string]bool{}}
}

func (f *fakePosterStore) Exists(_ context.Context, subscriberID int64, category, bucket, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exist[f.objKey(subscriberID, category, bucket, key)], nil
}

func (f *fakePosterStore) Put(_ context.Context, subscriberID int64, category, bucket, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.objKey(subscriberID, category, bucket, key)
	f.put[k] = data
	f.exist[k] = true
	return nil
}

func (f *fakePosterStore) ObjectPath(subscriberID int64, category, bucket, key string) string {
	return "/subscribers/" + f.objKey(subscriberID, category, bucket, key)
}

func (f *fakePosterStore) objKey(subscriberID int64, category, bucket, key string) string {
	return category + "/" + bucket + "/" + key
}

func TestPosterMetaCachesOnMiss(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/Bangumi/123_poster.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("poster-bytes"))
	})

	store := newFakePosterStore()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	root, err := fetch.New(nil)
	require.NoError(t, err)
	mc, err := ForCredential(root, srv.URL, "", "", store)
	require.NoError(t, err)

	path, err := mc.PosterMeta(context.Background(), 7, "/images/Bangumi/123_poster.jpg")
	require.NoError(t, err)
	assert.Contains(t, path, "123_poster.jpg")

	exists, err := store.Exists(context.Background(), 7, posterCategory, posterBucket, "123_poster.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}
