// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Manager owns the process-wide Prometheus registry. Components that have
// their own prometheus.Collector (the torrent driver, future ones) register
// against it at startup.
type Manager struct {
	registry         *prometheus.Registry
	torrentCollector *TorrentCollector
}

// NewManager creates a registry with Go/process collectors and a torrent
// collector sourced from stats. stats may be nil until the torrent driver
// has started; Collect then simply reports no downloader metrics.
func NewManager(stats StatsProvider) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	torrentCollector := NewTorrentCollector(stats)
	registry.MustRegister(torrentCollector)

	log.Info().Msg("metrics manager initialized with torrent collector")

	return &Manager{
		registry:         registry,
		torrentCollector: torrentCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
