// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package fetch

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// storedCookie is the JSON-round-trippable projection of an http.Cookie,
// enough to reconstruct the jar's contents for a known set of URLs.
type storedCookie struct {
	URL    string      `json:"url"`
	Cookie http.Cookie `json:"cookie"`
}

// CookieJar wraps the stdlib's PublicSuffix-aware jar with a read-write lock
// and JSON (de)serialization, so a Credential3rd row can carry a session
// across process restarts.
type CookieJar struct {
	mu   sync.RWMutex
	jar  *cookiejar.Jar
	urls map[string]*url.URL // every URL ever set, for MarshalJSON enumeration
}

// NewCookieJar creates an empty jar.
func NewCookieJar() (*CookieJar, error) {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, apperror.Wrap(apperror.CookieSerialization, "create cookie jar", err)
	}
	return &CookieJar{jar: j, urls: map[string]*url.URL{}}, nil
}

func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	j.urls[u.String()] = u
}

func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// MarshalJSON snapshots every (url, cookie) pair the jar has ever seen. This
// is a read-only snapshot; concurrent writers keep mutating the live jar.
func (j *CookieJar) MarshalJSON() ([]byte, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var stored []storedCookie
	for raw, u := range j.urls {
		for _, c := range j.jar.Cookies(u) {
			stored = append(stored, storedCookie{URL: raw, Cookie: *c})
		}
	}
	return json.Marshal(stored)
}

// UnmarshalJSON rebuilds a jar from a MarshalJSON snapshot. The receiver
// must already be constructed via NewCookieJar.
func (j *CookieJar) UnmarshalJSON(data []byte) error {
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return apperror.Wrap(apperror.CookieSerialization, "decode cookie jar", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	byURL := map[string][]*http.Cookie{}
	for _, sc := range stored {
		c := sc.Cookie
		byURL[sc.URL] = append(byURL[sc.URL], &c)
	}
	for raw, cookies := range byURL {
		u, err := url.Parse(raw)
		if err != nil {
			return apperror.Wrap(apperror.CookieSerialization, "parse stored cookie url", err)
		}
		j.jar.SetCookies(u, cookies)
		j.urls[raw] = u
	}
	return nil
}

// MarshalToString is a convenience for Credential3rd.Cookies (a plain
// string column).
func (j *CookieJar) MarshalToString() (string, error) {
	b, err := j.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RestoreCookieJar builds a jar from a Credential3rd.Cookies string. An
// empty string yields an empty jar, not an error.
func RestoreCookieJar(serialized string) (*CookieJar, error) {
	j, err := NewCookieJar()
	if err != nil {
		return nil, err
	}
	if serialized == "" {
		return j, nil
	}
	if err := j.UnmarshalJSON([]byte(serialized)); err != nil {
		return nil, err
	}
	return j, nil
}
