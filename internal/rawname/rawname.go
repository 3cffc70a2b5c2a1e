// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rawname parses fansub-style release titles that mix CJK and Latin
// script into structured metadata. It never fails catastrophically: when
// structure cannot be recognized the parser falls back to season 1, episode
// 1, and the best-effort inner region as the name.
package rawname

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// OriginNameMeta is the structured result of parsing a single release
// title.
type OriginNameMeta struct {
	Name         string
	Season       int
	SeasonRaw    string
	EpisodeIndex int
	IsCollection bool
	Subtitle     string
	Source       string
	Fansub       string
	Resolution   string
}

// Parse decomposes title into an OriginNameMeta following the recognizer
// order of the package's grammar: fansub, movie marker, season, episode,
// resolution, subtitle, source, then the discarded region-limit and
// season-descriptor tags. Whatever remains becomes Name.
func Parse(title string) OriginNameMeta {
	meta := OriginNameMeta{Season: 1, EpisodeIndex: 1}

	// Fansubs type digits and Latin in either width (ＥＰ０３ vs EP03);
	// narrow them up front so every recognizer matches both. Ideographs
	// and the corner brackets 【】 have no narrow form and pass through.
	remaining := width.Fold.String(title)

	if fansub, rest, ok := extractFansub(remaining); ok {
		meta.Fansub = fansub
		remaining = rest
	}

	isMovie, rest := extractMovieMarker(remaining)
	remaining = rest

	season, seasonRaw, rest := extractSeason(remaining)
	remaining = rest
	if seasonRaw != "" {
		meta.Season = season
		meta.SeasonRaw = seasonRaw
	}

	if !isMovie {
		epIndex, isCollection, rest := extractEpisode(remaining)
		remaining = rest
		meta.EpisodeIndex = epIndex
		meta.IsCollection = isCollection
	}

	if res, rest, ok := extractResolution(remaining); ok {
		meta.Resolution = res
		remaining = rest
	}

	if sub, rest, ok := extractSubtitle(remaining); ok {
		meta.Subtitle = sub
		remaining = rest
	}

	if src, rest, ok := extractSource(remaining); ok {
		meta.Source = src
		remaining = rest
	}

	remaining = stripRegionLimit(remaining)
	remaining = stripSeasonDescriptor(remaining)

	meta.Name = compactName(remaining)
	return meta
}

// bracketGroupRe matches one residual "[...]" group (no nesting — fansub
// groups never nest brackets).
var bracketGroupRe = regexp.MustCompile(`\[[^\[\]]*\]`)

// compactName trims the residual substring and compacts redundant brackets:
// the recognizers above cut only their matched tokens, so the residual
// still carries the enclosing bracket groups and any unrecognized
// neighbors ("[ HEVC-10bit AAC]", "[Fin]"). Those interior groups are
// stripped wholesale; the bangumi title itself lives outside them. When
// the whole residual is bracketed, the longest group's interior is kept
// instead, so a fully-bracketed title still yields a name.
func compactName(s string) string {
	s = strings.NewReplacer("【", "[", "】", "]").Replace(s)

	for {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") &&
			strings.Count(trimmed, "[") == 1 && strings.Count(trimmed, "]") == 1 {
			trimmed = trimmed[1 : len(trimmed)-1]
		}
		if trimmed == s {
			s = trimmed
			break
		}
		s = trimmed
	}

	stripped := bracketGroupRe.ReplaceAllString(s, " ")
	if strings.TrimSpace(stripped) != "" {
		s = stripped
	} else {
		longest := ""
		for _, group := range bracketGroupRe.FindAllString(s, -1) {
			inner := strings.TrimSpace(group[1 : len(group)-1])
			if len(inner) > len(longest) {
				longest = inner
			}
		}
		if longest != "" {
			s = longest
		}
	}

	fields := strings.Fields(s)
	return strings.TrimSpace(strings.Join(fields, " "))
}
