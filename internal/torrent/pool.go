// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"sync"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/metrics"
)

// Pool owns one running Driver per configured downloader. It implements
// the orchestrator's DriverProvider and metrics.StatsProvider.
type Pool struct {
	mu      sync.RWMutex
	drivers map[int64]*Driver
	remotes map[int64]*Remote
}

func NewPool() *Pool {
	return &Pool{
		drivers: make(map[int64]*Driver),
		remotes: make(map[int64]*Remote),
	}
}

// Start connects to a downloader remote and launches its driver's sync
// loop. Starting an id that is already running is a no-op.
func (p *Pool) Start(ctx context.Context, d domain.Downloader, waitTimeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.drivers[d.ID]; ok {
		return nil
	}

	remote, err := Connect(ctx, d)
	if err != nil {
		return err
	}

	driver := New(d.ID, d.SubscriberID, d.Endpoint, remote.Client, waitTimeout)
	driver.Start(ctx)
	p.drivers[d.ID] = driver
	p.remotes[d.ID] = remote
	return nil
}

// StartAll connects every profile, logging and skipping unreachable
// remotes so one down downloader doesn't block boot.
func (p *Pool) StartAll(ctx context.Context, downloaders []domain.Downloader, waitTimeout time.Duration) {
	for _, d := range downloaders {
		if err := p.Start(ctx, d, waitTimeout); err != nil {
			log.Error().Err(err).Int64("downloaderID", d.ID).Msg("downloader unreachable, driver not started")
		}
	}
}

// Stop shuts down every driver's sync loop.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, d := range p.drivers {
		d.Stop()
		delete(p.drivers, id)
		delete(p.remotes, id)
	}
}

// Driver returns the running driver for a downloader id.
func (p *Pool) Driver(downloaderID int64) (*Driver, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.drivers[downloaderID]
	return d, ok
}

// CollectStats implements metrics.StatsProvider from the drivers' replicas;
// no remote call happens on the scrape path.
func (p *Pool) CollectStats(ctx context.Context) ([]metrics.DownloaderStats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]metrics.DownloaderStats, 0, len(p.drivers))
	for id, driver := range p.drivers {
		snap := driver.Snapshot()
		stats := metrics.DownloaderStats{
			DownloaderID:  id,
			SubscriberID:  driver.SubscriberID,
			Name:          driver.Name,
			Connected:     snap.ServerState.ConnectionStatus == "connected",
			TorrentsTotal: len(snap.Torrents),
			DownloadSpeed: snap.ServerState.DlInfoSpeed,
			UploadSpeed:   snap.ServerState.UpInfoSpeed,
		}
		for _, torrent := range snap.Torrents {
			switch torrent.State {
			case qbt.TorrentStateDownloading, qbt.TorrentStateStalledDl, qbt.TorrentStateMetaDl,
				qbt.TorrentStateQueuedDl, qbt.TorrentStateForcedDl:
				stats.TorrentsDownloading++
			case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp,
				qbt.TorrentStateQueuedUp, qbt.TorrentStateForcedUp:
				stats.TorrentsSeeding++
			case qbt.TorrentStatePausedDl, qbt.TorrentStatePausedUp:
				stats.TorrentsPaused++
			case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
				stats.TorrentsError++
			case qbt.TorrentStateCheckingDl, qbt.TorrentStateCheckingUp, qbt.TorrentStateCheckingResumeData:
				stats.TorrentsChecking++
			}
		}
		out = append(out, stats)
	}
	return out, nil
}
