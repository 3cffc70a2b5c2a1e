// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/bencode"

	"github.com/aniwatch/aniwatch/internal/database"
	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/fetch"
	"github.com/aniwatch/aniwatch/internal/models"
	"github.com/aniwatch/aniwatch/internal/testdb"
	"github.com/aniwatch/aniwatch/internal/torrent"
)

// minimal single-file torrent, built with the same bencoding the driver's
// metainfo parser reads back.
type testTorrentInfoDict struct {
	Length      int    `bencode:"length"`
	Name        string `bencode:"name"`
	PieceLength int    `bencode:"piece length"`
	Pieces      string `bencode:"pieces"`
}

func testTorrentInfoBytes() []byte {
	raw, err := bencode.EncodeBytes(testTorrentInfoDict{
		Length:      1,
		Name:        "abc",
		PieceLength: 16384,
		Pieces:      "aaaaaaaaaaaaaaaaaaaa",
	})
	if err != nil {
		panic(err)
	}
	return raw
}

func testTorrentBytes() []byte {
	raw, err := bencode.EncodeBytes(struct {
		Info bencode.RawMessage `bencode:"info"`
	}{Info: testTorrentInfoBytes()})
	if err != nil {
		panic(err)
	}
	return raw
}

func testTorrentHash() string {
	sum := sha1.Sum(testTorrentInfoBytes())
	return hex.EncodeToString(sum[:])
}

type fakeDriver struct {
	mu        sync.Mutex
	creations []torrent.Creation
}

func (f *fakeDriver) AddDownloads(ctx context.Context, c torrent.Creation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creations = append(f.creations, c)
	return nil
}

type fakeDrivers struct {
	driver *fakeDriver
}

func (f *fakeDrivers) DriverFor(downloaderID int64) (TorrentAdder, bool) {
	return f.driver, true
}

type orchestratorEnv struct {
	db     *database.DB
	orch   *Orchestrator
	driver *fakeDriver
	stores Stores
}

func newOrchestratorEnv(t *testing.T, siteURL string) *orchestratorEnv {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "orchestrator", "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	httpClient, err := fetch.New(&fetch.Config{})
	require.NoError(t, err)

	stores := Stores{
		Subscriptions: models.NewSubscriptionStore(db),
		Credentials:   models.NewCredentialStore(db),
		Bangumi:       models.NewBangumiStore(db),
		Episodes:      models.NewEpisodeStore(db),
		Joins:         models.NewJoinStore(db),
		Downloads:     models.NewDownloadStore(db),
		Downloaders:   models.NewDownloaderStore(db),
	}
	driver := &fakeDriver{}

	return &orchestratorEnv{
		db:     db,
		orch:   New(httpClient, siteURL, nil, stores, &fakeDrivers{driver: driver}),
		driver: driver,
		stores: stores,
	}
}

func seedSubscription(t *testing.T, env *orchestratorEnv, sourceURL string) {
	t.Helper()
	ctx := context.Background()
	_, err := env.db.ExecContext(ctx, `INSERT INTO subscriber (display_name) VALUES ('alice')`)
	require.NoError(t, err)
	_, err = env.db.ExecContext(ctx, `
		INSERT INTO subscription (subscriber_id, display_name, category, source_url, enabled)
		VALUES (1, 'jjk', 'mikan_bangumi', ?, 1)`, sourceURL)
	require.NoError(t, err)
	_, err = env.db.ExecContext(ctx, `
		INSERT INTO downloader (subscriber_id, kind, endpoint, username, password, save_path)
		VALUES (1, 'qbittorrent', 'http://localhost:8080', 'admin', 'pass', '/downloads')`)
	require.NoError(t, err)
}

func newMikanSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var srv *httptest.Server
	mux.HandleFunc("/RSS/Bangumi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Mikan Project - 呪術廻戦 第2期</title>
<link>%s/RSS/Bangumi?bangumiId=3416&amp;subgroupid=370</link>
<item>
<title>[LoliHouse] 呪術廻戦 - 08 [WebRip 1080p HEVC-10bit AAC][简繁内封字幕]</title>
<link>%s/Home/Episode/3141</link>
<enclosure url="%s/Download/20240102/abc.torrent" length="123456" type="application/x-bittorrent"/>
</item>
</channel></rss>`, srv.URL, srv.URL, srv.URL)
	})
	mux.HandleFunc("/Download/20240102/abc.torrent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-bittorrent")
		w.Write(testTorrentBytes())
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleSubscriptionReconcilesFeed(t *testing.T) {
	site := newMikanSite(t)
	env := newOrchestratorEnv(t, site.URL)
	seedSubscription(t, env, site.URL+"/RSS/Bangumi?bangumiId=3416&subgroupid=370")

	ctx := context.Background()
	row := domain.Cron{Source: "subscription/1"}
	require.NoError(t, env.orch.HandleSubscription(ctx, row))

	// Bangumi upserted from the channel with both mikan ids.
	bangumis, err := env.stores.Bangumi.ListBySubscriber(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bangumis, 1)
	assert.Equal(t, "3416", bangumis[0].MikanBangumiID)
	assert.Equal(t, "370", bangumis[0].MikanFansubID.String)
	assert.Equal(t, 2, bangumis[0].Season)

	// Episode parsed from the release title.
	episodes, err := env.stores.Episodes.ListByBangumi(ctx, 1, bangumis[0].ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "3141", episodes[0].MikanEpisodeID)
	assert.Equal(t, 8, episodes[0].EpisodeIndex)
	assert.Equal(t, "LoliHouse", episodes[0].Fansub.String)
	assert.Equal(t, "1080p", episodes[0].Resolution.String)
	assert.Equal(t, "WebRip", episodes[0].Source.String)
	assert.True(t, episodes[0].DownloadID.Valid)

	// Download handed to the driver with the canonical info-hash.
	require.Len(t, env.driver.creations, 1)
	creation := env.driver.creations[0]
	require.Len(t, creation.Sources, 1)
	assert.Equal(t, testTorrentHash(), creation.Sources[0].InfoHash)
	assert.Equal(t, "aniwatch", creation.Category)

	download, err := env.stores.Downloads.Get(ctx, 1, episodes[0].DownloadID.Int64)
	require.NoError(t, err)
	assert.Equal(t, domain.DownloadRunning, download.Status)
}

func TestHandleSubscriptionIsIdempotent(t *testing.T) {
	site := newMikanSite(t)
	env := newOrchestratorEnv(t, site.URL)
	seedSubscription(t, env, site.URL+"/RSS/Bangumi?bangumiId=3416&subgroupid=370")

	ctx := context.Background()
	row := domain.Cron{Source: "subscription/1"}
	require.NoError(t, env.orch.HandleSubscription(ctx, row))
	require.NoError(t, env.orch.HandleSubscription(ctx, row))

	downloads, err := env.stores.Downloads.ListBySubscriber(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, downloads, 1, "second firing must not duplicate downloads")

	assert.Len(t, env.driver.creations, 1, "second firing must not re-add to the driver")
}

func TestHandleSubscriptionDisabled(t *testing.T) {
	site := newMikanSite(t)
	env := newOrchestratorEnv(t, site.URL)
	seedSubscription(t, env, site.URL+"/RSS/Bangumi?bangumiId=3416")

	ctx := context.Background()
	_, err := env.db.ExecContext(ctx, `UPDATE subscription SET enabled = 0 WHERE id = 1`)
	require.NoError(t, err)

	require.NoError(t, env.orch.HandleSubscription(ctx, domain.Cron{Source: "subscription/1"}))
	assert.Empty(t, env.driver.creations)
}

func TestSubscriptionIDFromSource(t *testing.T) {
	id, err := subscriptionIDFromSource(domain.Cron{Source: "subscription/42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = subscriptionIDFromSource(domain.Cron{Source: "subscription/notanumber"})
	require.Error(t, err)
}
