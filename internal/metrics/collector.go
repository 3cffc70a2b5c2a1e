// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// DownloaderStats is a point-in-time snapshot of one subscriber's torrent
// downloader replica, as maintained by the torrent driver's background sync
// loop. Every downloader belongs to exactly one subscriber, unlike the
// usual shared multi-instance pool found in qBittorrent frontends.
type DownloaderStats struct {
	DownloaderID        int64
	SubscriberID        int64
	Name                string
	Connected           bool
	TorrentsTotal       int
	TorrentsDownloading int
	TorrentsSeeding     int
	TorrentsPaused      int
	TorrentsError       int
	TorrentsChecking    int
	DownloadSpeed       int64
	UploadSpeed         int64
}

// StatsProvider supplies the current replica state of every downloader it
// manages. Collect calls it on every scrape, so implementations should read
// from an in-memory cache rather than hit the remote API directly.
type StatsProvider interface {
	CollectStats(ctx context.Context) ([]DownloaderStats, error)
}

// TorrentCollector exposes per-downloader torrent counts and transfer speeds
// to Prometheus.
type TorrentCollector struct {
	stats StatsProvider

	torrentsTotalDesc              *prometheus.Desc
	torrentsDownloadingDesc        *prometheus.Desc
	torrentsSeedingDesc            *prometheus.Desc
	torrentsPausedDesc             *prometheus.Desc
	torrentsErrorDesc              *prometheus.Desc
	torrentsCheckingDesc           *prometheus.Desc
	downloadSpeedDesc              *prometheus.Desc
	uploadSpeedDesc                *prometheus.Desc
	downloaderConnectionStatusDesc *prometheus.Desc
}

func NewTorrentCollector(stats StatsProvider) *TorrentCollector {
	labels := []string{"downloader_id", "subscriber_id", "downloader_name"}

	return &TorrentCollector{
		stats: stats,

		torrentsTotalDesc: prometheus.NewDesc(
			"aniwatch_torrents_total",
			"Total number of torrents by downloader",
			labels,
			nil,
		),
		torrentsDownloadingDesc: prometheus.NewDesc(
			"aniwatch_torrents_downloading",
			"Number of downloading torrents by downloader",
			labels,
			nil,
		),
		torrentsSeedingDesc: prometheus.NewDesc(
			"aniwatch_torrents_seeding",
			"Number of seeding torrents by downloader",
			labels,
			nil,
		),
		torrentsPausedDesc: prometheus.NewDesc(
			"aniwatch_torrents_paused",
			"Number of paused torrents by downloader",
			labels,
			nil,
		),
		torrentsErrorDesc: prometheus.NewDesc(
			"aniwatch_torrents_error",
			"Number of torrents in error state by downloader",
			labels,
			nil,
		),
		torrentsCheckingDesc: prometheus.NewDesc(
			"aniwatch_torrents_checking",
			"Number of torrents being checked by downloader",
			labels,
			nil,
		),
		downloadSpeedDesc: prometheus.NewDesc(
			"aniwatch_download_speed_bytes_per_second",
			"Current download speed in bytes per second by downloader",
			labels,
			nil,
		),
		uploadSpeedDesc: prometheus.NewDesc(
			"aniwatch_upload_speed_bytes_per_second",
			"Current upload speed in bytes per second by downloader",
			labels,
			nil,
		),
		downloaderConnectionStatusDesc: prometheus.NewDesc(
			"aniwatch_downloader_connection_status",
			"Connection status of the downloader's remote (1=connected, 0=disconnected)",
			labels,
			nil,
		),
	}
}

func (c *TorrentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.torrentsTotalDesc
	ch <- c.torrentsDownloadingDesc
	ch <- c.torrentsSeedingDesc
	ch <- c.torrentsPausedDesc
	ch <- c.torrentsErrorDesc
	ch <- c.torrentsCheckingDesc
	ch <- c.downloadSpeedDesc
	ch <- c.uploadSpeedDesc
	ch <- c.downloaderConnectionStatusDesc
}

func (c *TorrentCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		log.Debug().Msg("stats provider is nil, skipping torrent metrics collection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshots, err := c.stats.CollectStats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to collect downloader stats for metrics")
		return
	}

	log.Debug().Int("downloaders", len(snapshots)).Msg("collecting torrent metrics")

	for _, s := range snapshots {
		idStr := strconv.FormatInt(s.DownloaderID, 10)
		subStr := strconv.FormatInt(s.SubscriberID, 10)

		connected := 0.0
		if s.Connected {
			connected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(
			c.downloaderConnectionStatusDesc,
			prometheus.GaugeValue,
			connected,
			idStr, subStr, s.Name,
		)

		if !s.Connected {
			log.Debug().
				Int64("downloaderID", s.DownloaderID).
				Str("downloaderName", s.Name).
				Msg("skipping metrics for disconnected downloader")
			continue
		}

		ch <- prometheus.MustNewConstMetric(c.torrentsTotalDesc, prometheus.GaugeValue, float64(s.TorrentsTotal), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.torrentsDownloadingDesc, prometheus.GaugeValue, float64(s.TorrentsDownloading), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.torrentsSeedingDesc, prometheus.GaugeValue, float64(s.TorrentsSeeding), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.torrentsPausedDesc, prometheus.GaugeValue, float64(s.TorrentsPaused), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.torrentsErrorDesc, prometheus.GaugeValue, float64(s.TorrentsError), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.torrentsCheckingDesc, prometheus.GaugeValue, float64(s.TorrentsChecking), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.downloadSpeedDesc, prometheus.GaugeValue, float64(s.DownloadSpeed), idStr, subStr, s.Name)
		ch <- prometheus.MustNewConstMetric(c.uploadSpeedDesc, prometheus.GaugeValue, float64(s.UploadSpeed), idStr, subStr, s.Name)

		log.Debug().
			Int64("downloaderID", s.DownloaderID).
			Str("downloaderName", s.Name).
			Msg("collected downloader metrics")
	}
}
