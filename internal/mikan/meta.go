// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

// EpisodeMeta is the structured result of an episode homepage.
type EpisodeMeta struct {
	BangumiTitle    string
	MikanBangumiID  string
	MikanFansubID   string
	MikanEpisodeID  string
	EpisodeTitle    string
	FansubName      string
	OriginPosterSrc string // empty if no poster was found
}

// BangumiIndexMeta is the result of bangumi_index_meta_from_homepage and of
// each item of a season-flow page.
type BangumiIndexMeta struct {
	BangumiTitle    string
	MikanBangumiID  string
	OriginPosterSrc string
}

// BangumiMeta joins a BangumiIndexMeta with its subscribed fansub, the
// result of bangumi_meta_from_expand_subscribed_fragment.
type BangumiMeta struct {
	BangumiIndexMeta
	MikanFansubID string
	FansubName    string
}
