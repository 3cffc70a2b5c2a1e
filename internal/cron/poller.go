// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = 15 * time.Second

// Poller is the single-process scheduling loop for the sqlite deployment
// profile, where LISTEN/NOTIFY isn't available: it periodically lists due
// rows through the dialect-generic Store and claims each with the same
// compare-and-swap the distributed worker uses, so moving to Postgres
// later changes the wakeup mechanism but not the claim semantics.
type Poller struct {
	ID       string
	store    *Store
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger
}

func NewPoller(id string, store *Store, registry *Registry, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		ID:       id,
		store:    store,
		registry: registry,
		interval: interval,
		logger:   log.Logger.With().Str("component", "cron.poller").Str("workerID", id).Logger(),
	}
}

// Run blocks until ctx is canceled, scanning for due rows every interval.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	now := time.Now().UTC()
	due, err := p.store.ListDue(ctx, now)
	if err != nil {
		p.logger.Warn().Err(err).Msg("due scan failed")
		return
	}
	for _, row := range due {
		won, err := p.store.Claim(ctx, row.ID, p.ID, now)
		if err != nil {
			p.logger.Warn().Err(err).Int64("cronID", row.ID).Msg("claim attempt failed")
			continue
		}
		if !won {
			continue
		}
		executeClaimed(ctx, p.store, p.registry, p.logger, row.ID)
	}
}
