// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
)

// querier is satisfied by *database.DB, keeping the store's pattern of
// accepting the narrowest interface a store actually needs rather than a
// concrete *sql.DB, so the same Store works against both dialects.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the CRUD surface over the cron table shared by the orchestrator
// (creating one row per subscription) and cron.Worker (claiming and
// updating rows). Worker talks to Postgres directly over a dedicated
// connection only for LISTEN and the cleanup/due-scan functions; claiming
// and all row bookkeeping go through Store, which is dialect generic and
// also backs the sqlite Poller and sqlite-backed tests.
type Store struct {
	db querier
}

func NewStore(db querier) *Store {
	return &Store{db: db}
}

// Create inserts a new cron row, computing its first next_run from
// cron_expr evaluated against now.
func (s *Store) Create(ctx context.Context, row domain.Cron) (int64, error) {
	expr, err := ParseExpr(row.CronExpr)
	if err != nil {
		return 0, apperror.Wrap(apperror.UserInput, "invalid cron expression", err)
	}

	if row.MaxAttempts <= 0 {
		row.MaxAttempts = 3
	}
	if !row.TimeoutMs.Valid {
		row.TimeoutMs = sql.NullInt64{Int64: int64(30 * time.Second / time.Millisecond), Valid: true}
	}
	nextRun := expr.NextRun(time.Now().UTC())

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cron (cron_expr, source, subscriber_id, subscription_id, next_run, enabled, timeout_ms, max_attempts, priority, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')
	`, row.CronExpr, row.Source, row.SubscriberID, row.SubscriptionID, nextRun, row.Enabled, row.TimeoutMs, row.MaxAttempts, row.Priority)
	if err != nil {
		return 0, fmt.Errorf("cron: create: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) Get(ctx context.Context, id int64) (*domain.Cron, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, cron_expr, source, subscriber_id, subscription_id, next_run, last_run, last_error,
		       enabled, locked_by, locked_at, timeout_ms, attempts, max_attempts, priority, status, created_at, updated_at
		FROM cron WHERE id = ?
	`, id)
	c, err := scanCron(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "cron row not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("cron: get: %w", err)
	}
	return c, nil
}

// SetEnabled flips a cron row's enabled flag. The
// transition false→true is expected to fire a due notification in the same
// transaction if the row is otherwise due — the AFTER UPDATE trigger in
// internal/cron/pgsql handles this automatically since it compares OLD vs
// NEW enabled-ness as part of the due predicate.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cron SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("cron: set enabled: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCron(row scanner) (*domain.Cron, error) {
	var c domain.Cron
	if err := row.Scan(
		&c.ID, &c.CronExpr, &c.Source, &c.SubscriberID, &c.SubscriptionID, &c.NextRun, &c.LastRun, &c.LastError,
		&c.Enabled, &c.LockedBy, &c.LockedAt, &c.TimeoutMs, &c.Attempts, &c.MaxAttempts, &c.Priority, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListDue is the generic (dialect-agnostic) equivalent of the Postgres
// due-scan function, used directly by sqlite deployments (which have no
// LISTEN/NOTIFY) and by tests against either dialect. It does not issue
// pg_notify; callers drive handlers directly off the returned rows.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]domain.Cron, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cron_expr, source, subscriber_id, subscription_id, next_run, last_run, last_error,
		       enabled, locked_by, locked_at, timeout_ms, attempts, max_attempts, priority, status, created_at, updated_at
		FROM cron
		WHERE next_run IS NOT NULL AND next_run <= ? AND enabled = ? AND status = 'pending' AND attempts < max_attempts
		ORDER BY priority ASC, next_run ASC
	`, now, true)
	if err != nil {
		return nil, fmt.Errorf("cron: list due: %w", err)
	}
	defer rows.Close()

	var out []domain.Cron
	for rows.Next() {
		c, err := scanCron(rows)
		if err != nil {
			return nil, fmt.Errorf("cron: scan due row: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Claim attempts the distributed claim: it only succeeds if
// the row is still pending and its lock (if any) has expired. The
// staleness check (domain.Cron.IsLockStale) runs in Go rather than SQL so
// the same Store works unmodified against sqlite and Postgres; the
// conditional UPDATE re-validates the exact previous locked_at/status it
// read, so a concurrent winner still loses this UPDATE's WHERE clause.
// Both the LISTEN-based Worker and the single-process sqlite Poller claim
// through this method.
func (s *Store) Claim(ctx context.Context, id int64, workerID string, now time.Time) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status != domain.CronPending {
		return false, nil
	}
	if current.LockedAt.Valid && !current.IsLockStale(now) {
		return false, nil
	}

	var res sql.Result
	if current.LockedAt.Valid {
		res, err = s.db.ExecContext(ctx, `
			UPDATE cron SET status = 'running', locked_by = ?, locked_at = ?
			WHERE id = ? AND status = 'pending' AND locked_at = ?
		`, workerID, now, id, current.LockedAt)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE cron SET status = 'running', locked_by = ?, locked_at = ?
			WHERE id = ? AND status = 'pending' AND locked_at IS NULL
		`, workerID, now, id)
	}
	if err != nil {
		return false, fmt.Errorf("cron: claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cron: claim rows affected: %w", err)
	}
	return affected == 1, nil
}

// Complete records a successful handler run and reschedules from cron_expr.
func (s *Store) Complete(ctx context.Context, id int64, cronExpr string, runAt time.Time) error {
	expr, err := ParseExpr(cronExpr)
	if err != nil {
		return apperror.Wrap(apperror.UserInput, "invalid cron expression on complete", err)
	}
	next := expr.NextRun(runAt)
	_, err = s.db.ExecContext(ctx, `
		UPDATE cron
		SET status = 'pending', locked_by = NULL, locked_at = NULL,
		    last_run = ?, last_error = NULL, attempts = 0, next_run = ?
		WHERE id = ?
	`, runAt, next, id)
	if err != nil {
		return fmt.Errorf("cron: complete: %w", err)
	}
	return nil
}

// Fail records a failed handler run. If attempts has reached max_attempts
// the row terminates in status=failed; otherwise it returns to pending for
// retry, keeping attempts <= max_attempts at all times.
// lastError is truncated to 2KB.
func (s *Store) Fail(ctx context.Context, id int64, runAt time.Time, cause error) error {
	errText := cause.Error()
	const maxErrLen = 2048
	if len(errText) > maxErrLen {
		errText = errText[:maxErrLen]
	}

	row := s.db.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM cron WHERE id = ?`, id)
	var attempts, maxAttempts int
	if err := row.Scan(&attempts, &maxAttempts); err != nil {
		return fmt.Errorf("cron: fail: load attempts: %w", err)
	}
	attempts++

	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE cron
		SET status = ?, locked_by = NULL, locked_at = NULL, last_run = ?, last_error = ?, attempts = ?
		WHERE id = ?
	`, status, runAt, errText, attempts, id)
	if err != nil {
		return fmt.Errorf("cron: fail: %w", err)
	}
	return nil
}
