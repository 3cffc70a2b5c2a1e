// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releases

import "strings"

// videoCodecAliases maps the spellings rls emits to the canonical form the
// sanity-check logs use, so repeated runs group under one value.
var videoCodecAliases = map[string]string{
	"h.264": "H264",
	"h264":  "H264",
	"x264":  "x264",
	"h.265": "H265",
	"h265":  "H265",
	"x265":  "x265",
	"hevc":  "H265",
	"av1":   "AV1",
}

// NormalizeVideoCodec canonicalizes one codec spelling; unrecognized values
// pass through unchanged.
func NormalizeVideoCodec(codec string) string {
	if normalized, ok := videoCodecAliases[strings.ToLower(strings.TrimSpace(codec))]; ok {
		return normalized
	}
	return codec
}

// JoinNormalizedCodecSlice renders a codec list as one comma-joined,
// normalized, de-duplicated string.
func JoinNormalizedCodecSlice(slice []string) string {
	seen := make(map[string]struct{}, len(slice))
	out := make([]string, 0, len(slice))
	for _, codec := range slice {
		n := NormalizeVideoCodec(codec)
		if _, dup := seen[n]; dup || n == "" {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ",")
}

// sourceAliases folds rls source spellings into the tier names the
// release-name grammar uses, so the two parsers agree in logs.
var sourceAliases = map[string]string{
	"web-dl": "WEB",
	"webdl":  "WEB",
	"webrip": "WebRip",
	"blu-ray": "BD",
	"bluray":  "BD",
	"bdrip":   "BDRip",
}

// NormalizeSource canonicalizes a stream-origin spelling; unrecognized
// values pass through unchanged.
func NormalizeSource(source string) string {
	if normalized, ok := sourceAliases[strings.ToLower(strings.TrimSpace(source))]; ok {
		return normalized
	}
	return source
}
