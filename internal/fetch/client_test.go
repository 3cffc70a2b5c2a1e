// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieJarRoundTrip(t *testing.T) {
	t.Parallel()

	var sawCookie atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
	})
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			sawCookie.Store(c.Value)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	root, err := New(&Config{})
	require.NoError(t, err)
	forked, err := root.Fork().Build()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = forked.GetBytes(ctx, srv.URL+"/set")
	require.NoError(t, err)

	// Serialize -> restore -> the restored jar reproduces the same Cookie
	// headers for the same URLs.
	serialized, err := forked.CookieJar().MarshalToString()
	require.NoError(t, err)
	require.NotEmpty(t, serialized)

	restored, err := RestoreCookieJar(serialized)
	require.NoError(t, err)
	revived, err := root.Fork().WithCookieJar(restored).Build()
	require.NoError(t, err)

	_, err = revived.GetBytes(ctx, srv.URL+"/check")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sawCookie.Load())
}

func TestRestoreCookieJarEmptyString(t *testing.T) {
	t.Parallel()

	jar, err := RestoreCookieJar("")
	require.NoError(t, err)
	out, err := jar.MarshalToString()
	require.NoError(t, err)
	assert.Equal(t, "null", out)
}

func TestRootClientHasNoJar(t *testing.T) {
	t.Parallel()

	root, err := New(&Config{})
	require.NoError(t, err)
	assert.Nil(t, root.CookieJar())
}

func TestRetryOnServerError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := New(&Config{
		Retry: &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
	})
	require.NoError(t, err)

	body, err := client.GetText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.EqualValues(t, 3, hits.Load())
}

func TestCacheServesRepeatGets(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("cached"))
	}))
	defer srv.Close()

	client, err := New(&Config{Cache: &CacheConfig{MaxEntries: 8}})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := client.GetText(ctx, srv.URL)
	require.NoError(t, err)
	second, err := client.GetText(ctx, srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "cached", first)
	assert.Equal(t, "cached", second)
	assert.EqualValues(t, 1, hits.Load(), "second GET must come from the cache")
}

func TestForkIsolatesSessions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "s", Value: "one", Path: "/"})
	}))
	defer srv.Close()

	root, err := New(&Config{})
	require.NoError(t, err)

	a, err := root.Fork().Build()
	require.NoError(t, err)
	b, err := root.Fork().Build()
	require.NoError(t, err)

	_, err = a.GetBytes(context.Background(), srv.URL)
	require.NoError(t, err)

	aJar, err := a.CookieJar().MarshalToString()
	require.NoError(t, err)
	bJar, err := b.CookieJar().MarshalToString()
	require.NoError(t, err)

	assert.NotEqual(t, "null", aJar)
	assert.Equal(t, "null", bJar, "sibling forks must not share cookies")
}
