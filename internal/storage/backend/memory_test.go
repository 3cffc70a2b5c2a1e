// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWriteStatOpen(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, "/a/b.txt", bytes.NewReader([]byte("hello"))))

	info, err := m.Stat(ctx, "/a/b.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size)

	obj, err := m.Open(ctx, "/a/b.txt")
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMemoryStatMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Stat(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMemoryOpenMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Open(context.Background(), "/missing")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Write(ctx, "/a", bytes.NewReader([]byte("x"))))
	require.NoError(t, m.Delete(ctx, "/a"))

	_, err := m.Stat(ctx, "/a")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestMemoryOverwrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Write(ctx, "/a", bytes.NewReader([]byte("first"))))
	require.NoError(t, m.Write(ctx, "/a", bytes.NewReader([]byte("second-longer"))))

	obj, err := m.Open(ctx, "/a")
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "second-longer", string(data))
}
