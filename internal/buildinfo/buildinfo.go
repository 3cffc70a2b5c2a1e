// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo carries the version/commit/date values set by the
// release build (via -ldflags) and derives the process-wide default
// User-Agent used by internal/fetch and internal/mikan.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// These are overridden at build time via -ldflags "-X ...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is the default User-Agent string for outbound fetch.Client
// instances; callers that need a randomized mobile UA build one
// separately and pass it through fetch.Config instead.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("aniwatch/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String renders a three-line human summary of the build fields.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

// JSON renders the same fields as a JSON object.
func JSON() ([]byte, error) {
	return json.Marshal(struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`
	}{Version, Commit, Date})
}
