// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/database"
	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/testdb"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := testdb.PathFromTemplate(t, "cron", "cron.db")
	db, err := database.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "*/5 * * * *",
		Source:   "subscription/1",
		Enabled:  true,
		Priority: 5,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "subscription/1", row.Source)
	assert.Equal(t, domain.CronPending, row.Status)
	assert.Equal(t, 3, row.MaxAttempts)
	assert.True(t, row.NextRun.Valid)
}

func TestStoreGetMissingIsDBNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_not_found")
}

func TestStoreClaimIsExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "* * * * *",
		Source:   "subscription/1",
		Enabled:  true,
	})
	require.NoError(t, err)

	// Force next_run into the past so the row is claimable.
	_, err = store.db.ExecContext(ctx, "UPDATE cron SET next_run = ? WHERE id = ?", time.Now().Add(-time.Minute), id)
	require.NoError(t, err)

	now := time.Now().UTC()
	wonA, err := store.Claim(ctx, id, "worker-a", now)
	require.NoError(t, err)
	assert.True(t, wonA)

	wonB, err := store.Claim(ctx, id, "worker-b", now)
	require.NoError(t, err)
	assert.False(t, wonB, "a second claim attempt on an already-running row must fail")
}

func TestStoreClaimReclaimsStaleLock(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr:  "* * * * *",
		Source:    "subscription/1",
		Enabled:   true,
		TimeoutMs: sql.NullInt64{Int64: 1000, Valid: true},
	})
	require.NoError(t, err)

	staleLock := time.Now().Add(-time.Hour)
	_, err = store.db.ExecContext(ctx, `
		UPDATE cron SET status = 'pending', locked_by = 'dead-worker', locked_at = ?, next_run = ? WHERE id = ?
	`, staleLock, time.Now().Add(-time.Minute), id)
	require.NoError(t, err)

	won, err := store.Claim(ctx, id, "worker-new", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won, "a stale lock must be reclaimable")
}

func TestStoreCompleteReschedules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "0 9 * * *",
		Source:   "subscription/1",
		Enabled:  true,
	})
	require.NoError(t, err)

	runAt := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Complete(ctx, id, "0 9 * * *", runAt))

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CronPending, row.Status)
	assert.Equal(t, 0, row.Attempts)
	assert.True(t, row.NextRun.Valid)
	assert.Equal(t, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), row.NextRun.Time.UTC())
}

func TestStoreFailTerminatesAfterMaxAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr:    "* * * * *",
		Source:      "subscription/1",
		Enabled:     true,
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, id, time.Now(), errors.New("boom")))
	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CronPending, row.Status)
	assert.Equal(t, 1, row.Attempts)

	require.NoError(t, store.Fail(ctx, id, time.Now(), errors.New("boom again")))
	row, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CronFailed, row.Status)
	assert.Equal(t, 2, row.Attempts)
}
