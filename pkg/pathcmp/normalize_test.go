// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathcmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/downloads/anime/", "/downloads/anime"},
		{`C:\Downloads\Anime`, "C:/Downloads/Anime"},
		{`C:\`, "C:/"},
		{"C:", "C:"},
		{"/a/b/../c", "/a/c"},
		{"/a//b", "/a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), "input %q", tt.in)
	}
}

func TestIsWindowsDriveAbs(t *testing.T) {
	assert.True(t, IsWindowsDriveAbs("C:/foo"))
	assert.True(t, IsWindowsDriveAbs("z:/"))
	assert.False(t, IsWindowsDriveAbs("C:"))
	assert.False(t, IsWindowsDriveAbs("/c/foo"))
}

func TestEqualNeutralizesSeparatorAndCase(t *testing.T) {
	assert.True(t, Equal("/downloads/Anime", "/downloads/anime/"))
	assert.True(t, Equal(`C:\Downloads`, "c:/downloads"))
	assert.False(t, Equal("/downloads/a", "/downloads/b"))
}

func TestFileURLEscapesSpaces(t *testing.T) {
	assert.Equal(t, "file:///a%20b", FileURL("/a b"))
}
