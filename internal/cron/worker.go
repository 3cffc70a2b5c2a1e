// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
)

const (
	notifyChannel = "cron_due"

	// defaultCleanupInterval governs the periodic lock-cleanup + due-scan
	// sweep, run on a timeout_ms-scale tick.
	defaultCleanupInterval = 30 * time.Second

	// defaultConcurrency bounds the number of handler goroutines spawned
	// per worker.
	defaultConcurrency = 8
)

// Worker is the distributed scheduling loop: it LISTENs on a dedicated
// Postgres connection (LISTEN/NOTIFY requires one outside database/sql's
// pooling), periodically self-heals via the lock-cleanup and due-scan
// functions, and claims+dispatches rows as notifications arrive.
type Worker struct {
	ID string

	conn     *pgx.Conn
	store    *Store
	registry *Registry

	cleanupInterval time.Duration
	sem             chan struct{}

	logger zerolog.Logger

	wg sync.WaitGroup
}

// WorkerOption customizes Worker construction.
type WorkerOption func(*Worker)

// WithCleanupInterval overrides the periodic self-heal tick interval.
func WithCleanupInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.cleanupInterval = d }
}

// WithConcurrency overrides the per-process handler concurrency bound.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

// NewWorker constructs a Worker bound to a dedicated Postgres connection
// (conn) for LISTEN/NOTIFY, and a dialect-generic Store for claim/complete/
// fail bookkeeping — Store's compare-and-swap claim (comparing the
// previously-read locked_at in the UPDATE's WHERE clause) is itself
// distributed-safe, so no raw interval SQL is needed in this package;
// internal/cron/pgsql carries the Postgres-only trigger/scan functions
// that the notifications and periodic sweep rely on.
func NewWorker(id string, conn *pgx.Conn, store *Store, registry *Registry, opts ...WorkerOption) *Worker {
	w := &Worker{
		ID:              id,
		conn:            conn,
		store:           store,
		registry:        registry,
		cleanupInterval: defaultCleanupInterval,
		sem:             make(chan struct{}, defaultConcurrency),
		logger:          log.Logger.With().Str("component", "cron.worker").Str("workerID", id).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// dueNotification is the JSON shape pg_notify('cron_due', row_to_json(...))
// emits; only the id is needed, the row is re-read at claim time so a stale
// notification payload can never cause a stale claim.
type dueNotification struct {
	ID int64 `json:"id"`
}

// Run blocks until ctx is canceled, executing the worker loop: LISTEN
// subscription, periodic self-heal tick, and per-notification claim
// attempts. Each successful claim dispatches its handler in its own
// goroutine, bounded by the worker's concurrency semaphore.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	defer func() {
		_, _ = w.conn.Exec(context.Background(), "UNLISTEN "+notifyChannel)
	}()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	notifications := make(chan *pgconn.Notification)
	notifyErrs := make(chan error, 1)
	go w.listenLoop(ctx, notifications, notifyErrs)

	// Run one sweep immediately so a freshly started worker doesn't wait a
	// full tick before recovering abandoned locks.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return ctx.Err()
		case err := <-notifyErrs:
			w.wg.Wait()
			return err
		case <-ticker.C:
			w.sweep(ctx)
		case n := <-notifications:
			w.handleNotification(ctx, n)
		}
	}
}

func (w *Worker) listenLoop(ctx context.Context, out chan<- *pgconn.Notification, errs chan<- error) {
	for {
		n, err := w.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			errs <- err
			return
		}
		select {
		case out <- n:
		case <-ctx.Done():
			return
		}
	}
}

// sweep runs the lock-cleanup then due-scan functions, catching missed
// notifications and recovering abandoned locks.
func (w *Worker) sweep(ctx context.Context) {
	var cleaned int
	if err := w.conn.QueryRow(ctx, "SELECT cron_lock_cleanup()").Scan(&cleaned); err != nil {
		w.logger.Warn().Err(err).Msg("lock cleanup failed")
	} else if cleaned > 0 {
		w.logger.Info().Int("releasedLocks", cleaned).Msg("reclaimed stale cron locks")
	}

	var scanned int
	if err := w.conn.QueryRow(ctx, "SELECT cron_due_scan()").Scan(&scanned); err != nil {
		w.logger.Warn().Err(err).Msg("due scan failed")
	}
}

func (w *Worker) handleNotification(ctx context.Context, n *pgconn.Notification) {
	var payload dueNotification
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		w.logger.Warn().Err(err).Str("payload", n.Payload).Msg("malformed cron_due payload")
		return
	}

	won, err := w.store.Claim(ctx, payload.ID, w.ID, time.Now().UTC())
	if err != nil {
		w.logger.Warn().Err(err).Int64("cronID", payload.ID).Msg("claim attempt failed")
		return
	}
	if !won {
		return // another worker won the claim; drop the event.
	}

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		w.run(ctx, payload.ID)
	}()
}

func (w *Worker) run(ctx context.Context, cronID int64) {
	executeClaimed(ctx, w.store, w.registry, w.logger, cronID)
}

// executeClaimed loads an already-claimed row, dispatches its handler with
// the row's timeout, and records the outcome. Shared by the LISTEN-based
// Worker and the single-process Poller.
func executeClaimed(ctx context.Context, store *Store, registry *Registry, baseLogger zerolog.Logger, cronID int64) {
	row, err := store.Get(ctx, cronID)
	if err != nil {
		baseLogger.Warn().Err(err).Int64("cronID", cronID).Msg("load claimed row failed")
		return
	}

	logger := baseLogger.With().Int64("cronID", cronID).Str("source", row.Source).Logger()

	timeout := defaultCleanupInterval
	if row.TimeoutMs.Valid && row.TimeoutMs.Int64 > 0 {
		timeout = time.Duration(row.TimeoutMs.Int64) * time.Millisecond
	}
	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runAt := time.Now().UTC()
	handlerErr := dispatchRecovered(handlerCtx, registry, row)

	// handlerCtx may have already expired — the handler is not preempted
	// and keeps running regardless, and by the time it
	// returns another worker may already have reclaimed and completed this
	// row. Complete/Fail still execute unconditionally: they are plain
	// UPDATEs, and a harmless double-write to a row no longer locked by us
	// is the accepted tradeoff.
	if handlerErr != nil {
		if err := store.Fail(ctx, cronID, runAt, handlerErr); err != nil {
			logger.Error().Err(err).Msg("record cron failure")
		}
		logger.Warn().Err(handlerErr).Msg("cron handler failed")
		return
	}

	if err := store.Complete(ctx, cronID, row.CronExpr, runAt); err != nil {
		logger.Error().Err(err).Msg("record cron completion")
	}
}

// dispatchRecovered runs the handler and converts a panic into an error, so
// a single misbehaving handler fails its row (freeing the lock for a retry)
// instead of taking the whole worker down.
func dispatchRecovered(ctx context.Context, registry *Registry, row *domain.Cron) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperror.New(apperror.Timeout, fmt.Sprintf("cron handler panicked: %v", r))
		}
	}()
	return registry.Dispatch(ctx, *row)
}

// Close releases the dedicated listen connection.
func (w *Worker) Close(ctx context.Context) error {
	return w.conn.Close(ctx)
}
