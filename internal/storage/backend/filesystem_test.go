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

func TestFilesystemWriteStatOpen(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "/nested/dir/file.txt", bytes.NewReader([]byte("data"))))

	info, err := fs.Stat(ctx, "/nested/dir/file.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size)

	obj, err := fs.Open(ctx, "/nested/dir/file.txt")
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestFilesystemStatMissing(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	_, err := fs.Stat(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFilesystemDeleteMissingIsNoop(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	assert.NoError(t, fs.Delete(context.Background(), "/nope"))
}

func TestFilesystemCannotEscapeRoot(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "/../../../etc/passwd", bytes.NewReader([]byte("x"))))

	// The traversal attempt must resolve inside root, not at the real /etc/passwd.
	info, err := fs.Stat(ctx, "/etc/passwd")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Size)
}
