// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tenancy

import (
	"context"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := NewGuard()
	require.NoError(t, err)
	return g
}

func TestRequireIdentity(t *testing.T) {
	g := newGuard(t)

	_, err := g.RequireIdentity(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.AuthZ))

	want := &authn.Identity{SubscriberID: 7, Subject: "s"}
	got, err := g.RequireIdentity(authn.WithIdentity(context.Background(), want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCheckOwner(t *testing.T) {
	g := newGuard(t)
	id := &authn.Identity{SubscriberID: 7}

	require.NoError(t, g.CheckOwner(id, 7))

	err := g.CheckOwner(id, 8)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.AuthZ))
}

func TestValidateSuppliedSubscriberID(t *testing.T) {
	g := newGuard(t)
	id := &authn.Identity{SubscriberID: 7}

	// Default injection on omitted value.
	got, err := g.ValidateSuppliedSubscriberID(id, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	// Matching value passes through.
	seven := int64(7)
	got, err = g.ValidateSuppliedSubscriberID(id, &seven)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	// Mismatch rejects.
	eight := int64(8)
	_, err = g.ValidateSuppliedSubscriberID(id, &eight)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.AuthZ))
}

func TestScopeWhere(t *testing.T) {
	g := newGuard(t)
	id := &authn.Identity{SubscriberID: 7}

	sql, args, err := g.ScopeWhere(id, nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "subscriber_id = ?", sql)
	assert.Equal(t, []any{int64(7)}, args)

	sql, args, err = g.ScopeWhere(id, squirrel.Eq{"category": "mikan_season"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(category = ? AND subscriber_id = ?)", sql)
	assert.Equal(t, []any{"mikan_season", int64(7)}, args)
}
