// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package rawname

import (
	"strconv"
	"strings"
)

// extractFansub recognizes a leading "[...]" or "【...】" bracket group,
// taken verbatim, per the grammar's highest-priority recognizer.
func extractFansub(s string) (fansub string, rest string, ok bool) {
	m := fansubRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", s, false
	}
	var name string
	if m[2] >= 0 {
		name = s[m[2]:m[3]]
	} else {
		name = s[m[4]:m[5]]
	}
	rest = s[:m[0]] + s[m[1]:]
	return name, rest, true
}

func extractMovieMarker(s string) (isMovie bool, rest string) {
	loc := movieMarkerRe.FindStringIndex(s)
	if loc == nil {
		return false, s
	}
	return true, cut(s, loc)
}

// extractSeason applies the tie-break order Latin-prefix > ordinal > CJK:
// whichever pattern matches is used; if more than one matches, the earlier
// in this list wins regardless of position in the string.
func extractSeason(s string) (season int, seasonRaw string, rest string) {
	if loc := seasonLatinRe.FindStringSubmatchIndex(s); loc != nil {
		digits := submatchGroup(s, loc, 1, 2)
		n, _ := strconv.Atoi(digits)
		return n, s[loc[0]:loc[1]], cutIdx(s, loc[0], loc[1])
	}
	if loc := seasonOrdinal.FindStringSubmatchIndex(s); loc != nil {
		digits := s[loc[2]:loc[3]]
		n, _ := strconv.Atoi(digits)
		return n, s[loc[0]:loc[1]], cutIdx(s, loc[0], loc[1])
	}
	if loc := seasonCJKRe.FindStringSubmatchIndex(s); loc != nil {
		raw := s[loc[2]:loc[3]]
		n, err := strconv.Atoi(raw)
		if err != nil {
			n, _ = parseCJKNumeral(raw)
		}
		return n, s[loc[0]:loc[1]], cutIdx(s, loc[0], loc[1])
	}
	return 0, "", s
}

// extractEpisode tries each episode framing in grammar order and returns on
// the first match. A collection marker (END/完/合集) is detected and cut
// independently of the framings, so "01-13 合集" is both a collection and
// episode 1 (the range's lower bound).
func extractEpisode(s string) (index int, isCollection bool, rest string) {
	if loc := epCollectionRe.FindStringIndex(s); loc != nil {
		isCollection = true
		s = cut(s, loc)
	}

	if loc := epBracketWordRe.FindStringSubmatchIndex(s); loc != nil {
		digits := submatchGroup(s, loc, 1, 2)
		n, _ := strconv.Atoi(digits)
		return n, isCollection, stripVersionSuffix(cutIdx(s, loc[0], loc[1]), loc[0])
	}
	if loc := epCJKRe.FindStringSubmatchIndex(s); loc != nil {
		raw := s[loc[2]:loc[3]]
		n, err := strconv.Atoi(raw)
		if err != nil {
			n, _ = parseCJKNumeral(raw)
		}
		return n, isCollection, cutIdx(s, loc[0], loc[1])
	}
	if loc := epBracketNumRe.FindStringSubmatchIndex(s); loc != nil {
		n, _ := strconv.Atoi(s[loc[2]:loc[3]])
		return n, isCollection, cutIdx(s, loc[0], loc[1])
	}
	if loc := epDashSpaceRe.FindStringSubmatchIndex(s); loc != nil {
		n, _ := strconv.Atoi(s[loc[2]:loc[3]])
		return n, isCollection, cutIdx(s, loc[0], loc[1])
	}
	if loc := epRangeRe.FindStringSubmatchIndex(s); loc != nil {
		// The range's lower bound is used per the tie-break rule.
		n, _ := strconv.Atoi(s[loc[2]:loc[3]])
		return n, isCollection, cutIdx(s, loc[0], loc[1])
	}
	return 1, isCollection, s
}

// stripVersionSuffix removes a "v<digits>" tag immediately following the
// consumed episode match at position from, e.g. "13v2".
func stripVersionSuffix(s string, from int) string {
	if from < 0 || from > len(s) {
		return s
	}
	tail := s[from:]
	if loc := epVersionRe.FindStringIndex(tail); loc != nil {
		return s[:from] + tail[loc[1]:]
	}
	return s
}

func extractResolution(s string) (res string, rest string, ok bool) {
	loc := resolutionRe.FindStringIndex(s)
	if loc == nil {
		return "", s, false
	}
	return normalizeResolution(s[loc[0]:loc[1]]), cut(s, loc), true
}

// normalizeResolution renders numeric tiers with their "p" suffix (1080 and
// 1080P both become 1080p) and K tiers uppercase (4k becomes 4K), so the
// same resolution always dedups to one value.
func normalizeResolution(raw string) string {
	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, "k") {
		return strings.ToUpper(lower)
	}
	return strings.TrimSuffix(lower, "p") + "p"
}

// extractSubtitle recognizes a subtitle-language tag, except that the
// literal "招人"/"招募" (recruiting) disqualifies any match in the same
// string, since those titles are forum recruitment posts, not releases.
func extractSubtitle(s string) (sub string, rest string, ok bool) {
	if recruitingRe.MatchString(s) {
		return "", s, false
	}
	loc := subtitleRe.FindStringIndex(s)
	if loc == nil {
		return "", s, false
	}
	return s[loc[0]:loc[1]], cut(s, loc), true
}

// extractSource checks tier 1 (high-confidence stream origin) first; tier 2
// (ambiguous abbreviations) is only consulted if tier 1 found nothing.
func extractSource(s string) (source string, rest string, ok bool) {
	if loc := sourceTier1Re.FindStringIndex(s); loc != nil {
		return s[loc[0]:loc[1]], cut(s, loc), true
	}
	if loc := sourceTier2Re.FindStringIndex(s); loc != nil {
		return s[loc[0]:loc[1]], cut(s, loc), true
	}
	return "", s, false
}

func stripRegionLimit(s string) string {
	return regionLimitRe.ReplaceAllString(s, "")
}

func stripSeasonDescriptor(s string) string {
	return seasonDescriptorRe.ReplaceAllString(s, "")
}

// cut removes the matched span loc (a 2-element [start,end) index pair)
// from s.
func cut(s string, loc []int) string {
	return cutIdx(s, loc[0], loc[1])
}

func cutIdx(s string, start, end int) string {
	return s[:start] + s[end:]
}

// submatchGroup returns whichever of the two alternate capture groups (by
// index pairs a, b into loc) actually matched; regex alternation like
// "S(\d+)|Season (\d+)" only populates one branch's group per match.
func submatchGroup(s string, loc []int, a, b int) string {
	ai, bi := a*2, b*2
	if loc[ai] >= 0 {
		return s[loc[ai]:loc[ai+1]]
	}
	if loc[bi] >= 0 {
		return s[loc[bi]:loc[bi+1]]
	}
	return ""
}
