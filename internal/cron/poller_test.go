// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/domain"
)

func TestPollerTickRunsDueRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "* * * * *",
		Source:   "subscription/7",
		Enabled:  true,
	})
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "UPDATE cron SET next_run = ? WHERE id = ?", time.Now().UTC().Add(-time.Minute), id)
	require.NoError(t, err)

	var dispatched []string
	registry := NewRegistry()
	registry.Register("subscription", func(ctx context.Context, row domain.Cron) error {
		dispatched = append(dispatched, row.Source)
		return nil
	})

	poller := NewPoller("poller-test", store, registry, time.Second)
	poller.tick(ctx)

	assert.Equal(t, []string{"subscription/7"}, dispatched)

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CronCompleted, row.Status)
	assert.True(t, row.LastRun.Valid)
	assert.Zero(t, row.Attempts)
	assert.True(t, row.NextRun.Valid)
	assert.True(t, row.NextRun.Time.After(time.Now().UTC().Add(-time.Second)))
}

func TestPollerTickRecordsFailureForRetry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "* * * * *",
		Source:   "subscription/7",
		Enabled:  true,
	})
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "UPDATE cron SET next_run = ? WHERE id = ?", time.Now().UTC().Add(-time.Minute), id)
	require.NoError(t, err)

	registry := NewRegistry()
	registry.Register("subscription", func(ctx context.Context, row domain.Cron) error {
		return errors.New("upstream down")
	})

	poller := NewPoller("poller-test", store, registry, time.Second)
	poller.tick(ctx)

	row, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CronPending, row.Status, "attempts below max returns to pending")
	assert.Equal(t, 1, row.Attempts)
	assert.Contains(t, row.LastError.String, "upstream down")
}

func TestPollerTickSkipsDisabledRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, domain.Cron{
		CronExpr: "* * * * *",
		Source:   "subscription/7",
		Enabled:  false,
	})
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "UPDATE cron SET next_run = ? WHERE id = ?", time.Now().UTC().Add(-time.Minute), id)
	require.NoError(t, err)

	called := false
	registry := NewRegistry()
	registry.Register("subscription", func(ctx context.Context, row domain.Cron) error {
		called = true
		return nil
	})

	NewPoller("poller-test", store, registry, time.Second).tick(ctx)
	assert.False(t, called)
}
