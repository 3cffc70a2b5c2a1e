// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/storage/backend"
)

func TestBuildSubscriberObjectPath(t *testing.T) {
	got := BuildSubscriberObjectPath(42, CategoryImage, "mikan-poster", "3288.jpg")
	assert.Equal(t, "/subscribers/42/image/mikan-poster/3288.jpg", got)
}

func TestBuildPublicObjectPath(t *testing.T) {
	got := BuildPublicObjectPath(CategoryImage, "mikan-poster", "3288.jpg")
	assert.Equal(t, "/public/image/mikan-poster/3288.jpg", got)
}

func TestSanitizeKey(t *testing.T) {
	cases := map[string]string{
		"3288.jpg":              "3288.jpg",
		"../../etc/passwd":      "passwd",
		"..":                    "_",
		".":                     "_",
		"":                      "_",
		"a/b/c.jpg":             "c.jpg",
		"/absolute/path.jpg":    "path.jpg",
		"装甲娘战记 第01话.mp4": "装甲娘战记 第01话.mp4",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeKey(in), "input %q", in)
	}
}

func TestFacadeImplementsPosterStoreContract(t *testing.T) {
	mem := backend.NewMemory()
	f := NewFacade(mem)
	ctx := context.Background()

	exists, err := f.Exists(ctx, 7, "image", "mikan-poster", "a/../b.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.Put(ctx, 7, "image", "mikan-poster", "a/../b.jpg", []byte("poster-bytes"), "image/jpeg"))

	exists, err = f.Exists(ctx, 7, "image", "mikan-poster", "b.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, "/subscribers/7/image/mikan-poster/b.jpg", f.ObjectPath(7, "image", "mikan-poster", "b.jpg"))
}

func newTestFacade(t *testing.T, objectPath string, data []byte) *Facade {
	t.Helper()
	mem := backend.NewMemory()
	require.NoError(t, mem.Write(context.Background(), objectPath, bytes.NewReader(data)))
	return NewFacade(mem)
}

func TestServeFileNoRange(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 1000)
	f := newTestFacade(t, "/x.bin", data)

	req := httptest.NewRequest(http.MethodGet, "/x.bin", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/x.bin"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestServeFileSingleRange(t *testing.T) {
	data := bytes.Repeat([]byte("b"), 1000)
	f := newTestFacade(t, "/x.bin", data)

	req := httptest.NewRequest(http.MethodGet, "/x.bin", nil)
	req.Header.Set("Range", "bytes=0-99")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/x.bin"))

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-99/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, 100, rec.Body.Len())
}

func TestServeFileRangeEqualToWholeObject(t *testing.T) {
	data := bytes.Repeat([]byte("c"), 500)
	f := newTestFacade(t, "/x.bin", data)

	req := httptest.NewRequest(http.MethodGet, "/x.bin", nil)
	req.Header.Set("Range", "bytes=0-499")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/x.bin"))

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestServeFileMultipleRanges(t *testing.T) {
	data := bytes.Repeat([]byte("d"), 1000)
	f := newTestFacade(t, "/x.bin", data)

	req := httptest.NewRequest(http.MethodGet, "/x.bin", nil)
	req.Header.Set("Range", "bytes=0-99,500-599")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/x.bin"))

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "multipart/byteranges; boundary=")
	body := rec.Body.String()
	assert.Contains(t, body, "Content-Range: bytes 0-99/1000")
	assert.Contains(t, body, "Content-Range: bytes 500-599/1000")
}

func TestServeFileUnsatisfiableRange(t *testing.T) {
	data := bytes.Repeat([]byte("e"), 100)
	f := newTestFacade(t, "/x.bin", data)

	req := httptest.NewRequest(http.MethodGet, "/x.bin", nil)
	req.Header.Set("Range", "bytes=500-600")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/x.bin"))

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */100", rec.Header().Get("Content-Range"))
}

func TestServeFileNotFound(t *testing.T) {
	mem := backend.NewMemory()
	f := NewFacade(mem)

	req := httptest.NewRequest(http.MethodGet, "/missing.bin", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeFile(context.Background(), rec, req, "/missing.bin"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeOptimizedImageFallsBackToOriginal(t *testing.T) {
	mem := backend.NewMemory()
	require.NoError(t, mem.Write(context.Background(), "/poster.jpg", bytes.NewReader([]byte("jpeg-bytes"))))
	f := NewFacade(mem)

	req := httptest.NewRequest(http.MethodGet, "/poster.jpg", nil)
	req.Header.Set("Accept", "image/webp,image/*")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeOptimizedImage(context.Background(), rec, req, "/poster.jpg"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
}

func TestServeOptimizedImagePrefersSiblingWebp(t *testing.T) {
	mem := backend.NewMemory()
	require.NoError(t, mem.Write(context.Background(), "/poster.jpg", bytes.NewReader([]byte("jpeg-bytes"))))
	require.NoError(t, mem.Write(context.Background(), "/poster.webp", bytes.NewReader([]byte("webp-bytes"))))
	f := NewFacade(mem)

	req := httptest.NewRequest(http.MethodGet, "/poster.jpg", nil)
	req.Header.Set("Accept", "image/webp")
	rec := httptest.NewRecorder()
	require.NoError(t, f.ServeOptimizedImage(context.Background(), rec, req, "/poster.jpg"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "webp-bytes", rec.Body.String())
}
