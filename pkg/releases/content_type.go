// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import (
	"github.com/moistari/rls"
)

// ContentTypeInfo is the coarse classification the torrent driver's
// creation sanity check consumes: enough to notice a movie arriving where
// an episode was expected, nothing finer.
type ContentTypeInfo struct {
	ContentType string // "movie", "tv", "music", "unknown"
}

// DetermineContentType classifies a parsed release, falling back to
// series/episode/year heuristics when rls couldn't type it.
func DetermineContentType(release *rls.Release) ContentTypeInfo {
	if release == nil {
		return ContentTypeInfo{ContentType: "unknown"}
	}

	switch release.Type {
	case rls.Movie:
		return ContentTypeInfo{ContentType: "movie"}
	case rls.Episode, rls.Series:
		return ContentTypeInfo{ContentType: "tv"}
	case rls.Music:
		return ContentTypeInfo{ContentType: "music"}
	}

	switch {
	case release.Series > 0 || release.Episode > 0:
		return ContentTypeInfo{ContentType: "tv"}
	case release.Year > 0:
		return ContentTypeInfo{ContentType: "movie"}
	default:
		return ContentTypeInfo{ContentType: "unknown"}
	}
}
