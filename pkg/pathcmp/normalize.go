// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp compares save paths across heterogeneous filesystems.
// The torrent driver's move/relocate predicates compare the path it asked
// for against what the remote reports back, and the two sides may disagree
// on separators, trailing slashes, and case; comparisons therefore go
// through a file:// URL canonical form. qBittorrent paths are generally
// forward-slashed, so normalization uses path semantics (not filepath).
package pathcmp

import (
	"net/url"
	"path"
	"strings"
)

// IsWindowsDriveAbs reports whether p is a Windows absolute path (e.g.
// C:/...): a drive letter, colon, and forward slash. Backslashes should be
// normalized before calling.
func IsWindowsDriveAbs(p string) bool {
	if len(p) < 3 {
		return false
	}
	c := p[0]
	return ((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) && p[1] == ':' && p[2] == '/'
}

// NormalizePath prepares a path for comparison: backslashes become forward
// slashes, trailing slashes are dropped (preserving Windows drive roots
// like C:/), and . / .. segments are cleaned where possible.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")

	// Windows drive paths keep their root slash (path.Clean turns C:/ into C:).
	if len(p) >= 2 && ((p[0] >= 'A' && p[0] <= 'Z') || (p[0] >= 'a' && p[0] <= 'z')) && p[1] == ':' {
		drive := p[:2]
		rest := p[2:]

		// Bare drive letter (C:) is drive-relative.
		if rest == "" {
			return drive
		}

		rest = path.Clean(rest)
		if rest == "/" || rest == "." {
			return drive + "/"
		}
		return drive + rest
	}

	p = path.Clean(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// FileURL renders p as its lowercase file:// URL canonical form, the
// representation path equalities are performed in.
func FileURL(p string) string {
	u := url.URL{Scheme: "file", Path: NormalizePath(p)}
	return strings.ToLower(u.String())
}

// Equal reports whether two paths canonicalize to the same file URL.
func Equal(a, b string) bool {
	return FileURL(a) == FileURL(b)
}
