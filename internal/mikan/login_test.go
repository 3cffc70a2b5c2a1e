// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniwatch/aniwatch/internal/fetch"
)

func newTestMikanClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	root, err := fetch.New(nil)
	require.NoError(t, err)
	mc, err := ForCredential(root, srv.URL, "", "", nil)
	require.NoError(t, err)
	return mc, srv
}

func TestClientLoginSuccess(t *testing.T) {
	loggedIn := false
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/SignIn", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: ".AspNetCore.Antiforgery.abc123", Value: "tok-value"})
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "tok-value", r.FormValue("__RequestVerificationToken"))
			assert.Equal(t, "alice", r.FormValue("UserName"))
			http.SetCookie(w, &http.Cookie{Name: ".AspNetCore.Identity.Application", Value: "sess"})
			loggedIn = true
			w.Header().Set("Location", "/")
			w.WriteHeader(http.StatusFound)
		}
	})

	mc, _ := newTestMikanClient(t, mux)
	err := mc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.True(t, loggedIn)
}

func TestClientLoginMissingAntiforgeryCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/SignIn", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mc, _ := newTestMikanClient(t, mux)
	err := mc.Login(context.Background(), "alice", "hunter2")
	assert.Error(t, err)
}

func TestClientHasLoginTrue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/Manage", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mc, _ := newTestMikanClient(t, mux)
	ok, err := mc.HasLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientHasLoginFalseOnRedirectToSignIn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/Manage", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/Account/SignIn")
		w.WriteHeader(http.StatusFound)
	})

	mc, _ := newTestMikanClient(t, mux)
	ok, err := mc.HasLogin(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
