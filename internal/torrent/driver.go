// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"sync/atomic"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

const (
	tickInterval       = 100 * time.Millisecond
	fullSyncInterval   = 10 * time.Second
	subscriberInterval = 1 * time.Second

	defaultWaitTimeout = 10 * time.Second
)

// Driver mediates between imperative commands and one downloader's
// eventually-consistent remote. One Driver instance owns one
// background sync loop task.
type Driver struct {
	DownloaderID int64
	SubscriberID int64
	Name         string

	client *qbt.Client

	replica *Replica
	watch   *watch

	waitTimeout time.Duration
	waiters     int32 // atomic; nonzero makes the 1s sync threshold eligible

	lastSync atomic.Value // time.Time

	logger zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// New constructs a Driver around an already-authenticated client. Call
// Start to launch its background sync loop.
func New(downloaderID, subscriberID int64, name string, client *qbt.Client, waitTimeout time.Duration) *Driver {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	d := &Driver{
		DownloaderID: downloaderID,
		SubscriberID: subscriberID,
		Name:         name,
		client:       client,
		replica:      newReplica(),
		watch:        newWatch(),
		waitTimeout:  waitTimeout,
		logger:       log.Logger.With().Str("component", "torrent.driver").Int64("downloaderID", downloaderID).Logger(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	d.lastSync.Store(time.Time{})
	return d
}

// Start launches the background sync loop; it returns once ctx is canceled
// or Stop is called.
func (d *Driver) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *Driver) Stop() {
	close(d.stop)
	<-d.done
}

func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			last := d.lastSync.Load().(time.Time)
			elapsed := time.Since(last)

			switch {
			case elapsed >= fullSyncInterval:
				d.syncOnce(ctx)
			case atomic.LoadInt32(&d.waiters) > 0 && elapsed >= subscriberInterval:
				d.syncOnce(ctx)
			}
		}
	}
}

func (d *Driver) syncOnce(ctx context.Context) {
	rid := d.replica.currentRid()

	data, err := d.client.SyncMainDataCtx(ctx, rid)
	if err != nil {
		d.logger.Warn().Err(err).Msg("sync failed")
		d.lastSync.Store(time.Now())
		return
	}

	d.replica.merge(data)
	ts := time.Now()
	d.lastSync.Store(ts)
	d.watch.notify(ts)
}

// waitSyncUntil implements the command-and-wait pattern: it checks the
// replica immediately, then rechecks on each merge notification until
// predicate holds or timeout elapses. It subscribes before every check, so a
// merge landing between a check and the wait is not missed.
func (d *Driver) waitSyncUntil(ctx context.Context, action string, predicate func(Snapshot) bool) error {
	atomic.AddInt32(&d.waiters, 1)
	defer atomic.AddInt32(&d.waiters, -1)

	timer := time.NewTimer(d.waitTimeout)
	defer timer.Stop()

	for {
		sub := d.watch.subscribe()
		if predicate(d.replica.snapshot()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return apperror.Wrap(apperror.Timeout, "wait for "+action, ctx.Err())
		case <-timer.C:
			return apperror.New(apperror.Timeout, "timed out waiting for "+action)
		case <-sub:
		}
	}
}

// Snapshot returns the current replica state.
func (d *Driver) Snapshot() Snapshot {
	return d.replica.snapshot()
}
