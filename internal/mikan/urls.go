// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// Canonical Mikan site paths.
const (
	pathBangumiRSS              = "/RSS/Bangumi"
	pathSubscriberAggregateRSS  = "/RSS/MyBangumi"
	pathBangumiHomepagePrefix   = "/Home/Bangumi/"
	pathEpisodeHomepagePrefix   = "/Home/Episode/"
	pathSeasonFlow              = "/Home/BangumiCoverFlow"
	pathExpandBangumi           = "/ExpandBangumi"
	pathAccountSignIn           = "/Account/SignIn"
	pathAccountManage           = "/Account/Manage"
	posterPathPrefix            = "/images/Bangumi/"
)

// SeasonStrings enumerates the four valid seasonStr query values.
var SeasonStrings = []string{"春", "夏", "秋", "冬"}

func validSeasonStr(s string) bool {
	for _, v := range SeasonStrings {
		if v == s {
			return true
		}
	}
	return false
}

func joinURL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// BuildBangumiRSSURL builds /RSS/Bangumi?bangumiId=...[&subgroupid=...].
func BuildBangumiRSSURL(base, bangumiID, fansubID string) string {
	q := url.Values{"bangumiId": {bangumiID}}
	if fansubID != "" {
		q.Set("subgroupid", fansubID)
	}
	return joinURL(base, pathBangumiRSS, q)
}

// BuildSubscriberAggregationRSSURL builds /RSS/MyBangumi?token=....
func BuildSubscriberAggregationRSSURL(base, token string) string {
	return joinURL(base, pathSubscriberAggregateRSS, url.Values{"token": {token}})
}

// BuildBangumiHomepageURL builds /Home/Bangumi/<bid>[#<fid>].
func BuildBangumiHomepageURL(base, bangumiID, fansubID string) string {
	u := strings.TrimRight(base, "/") + pathBangumiHomepagePrefix + bangumiID
	if fansubID != "" {
		u += "#" + fansubID
	}
	return u
}

// BuildEpisodeHomepageURL builds /Home/Episode/<eid>.
func BuildEpisodeHomepageURL(base, episodeID string) string {
	return strings.TrimRight(base, "/") + pathEpisodeHomepagePrefix + episodeID
}

// BuildSeasonFlowURL builds /Home/BangumiCoverFlow?year=...&seasonStr=....
func BuildSeasonFlowURL(base string, year int, seasonStr string) string {
	q := url.Values{"year": {strconv.Itoa(year)}, "seasonStr": {seasonStr}}
	return joinURL(base, pathSeasonFlow, q)
}

// BuildExpandSubscribedURL builds /ExpandBangumi?bangumiId=...&showSubscribed=true.
func BuildExpandSubscribedURL(base, bangumiID string) string {
	q := url.Values{"bangumiId": {bangumiID}, "showSubscribed": {"true"}}
	return joinURL(base, pathExpandBangumi, q)
}

// BuildSignInURL builds /Account/SignIn.
func BuildSignInURL(base string) string {
	return strings.TrimRight(base, "/") + pathAccountSignIn
}

// BuildAccountManageURL builds /Account/Manage.
func BuildAccountManageURL(base string) string {
	return strings.TrimRight(base, "/") + pathAccountManage
}

// BangumiHomepageRef is what ParseBangumiHomepageURL extracts.
type BangumiHomepageRef struct {
	MikanBangumiID string
	MikanFansubID  string // empty if the URL carried no #fragment
}

// ParseBangumiHomepageURL extracts the bangumi (and optional fansub) id from
// a /Home/Bangumi/<bid>[#<fid>] URL.
func ParseBangumiHomepageURL(raw string) (BangumiHomepageRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return BangumiHomepageRef{}, apperror.Wrap(apperror.ProtocolShape, "parse bangumi homepage url", err)
	}
	if !strings.HasPrefix(u.Path, pathBangumiHomepagePrefix) {
		return BangumiHomepageRef{}, apperror.New(apperror.ProtocolShape, "not a bangumi homepage url: "+raw)
	}
	id := strings.TrimPrefix(u.Path, pathBangumiHomepagePrefix)
	if id == "" {
		return BangumiHomepageRef{}, apperror.New(apperror.ProtocolShape, "bangumi homepage url missing id: "+raw)
	}
	return BangumiHomepageRef{MikanBangumiID: id, MikanFansubID: u.Fragment}, nil
}

// EpisodeHomepageRef is what ParseEpisodeHomepageURL extracts.
type EpisodeHomepageRef struct {
	MikanEpisodeID string
}

// ParseEpisodeHomepageURL extracts the episode id from /Home/Episode/<eid>.
func ParseEpisodeHomepageURL(raw string) (EpisodeHomepageRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return EpisodeHomepageRef{}, apperror.Wrap(apperror.ProtocolShape, "parse episode homepage url", err)
	}
	if !strings.HasPrefix(u.Path, pathEpisodeHomepagePrefix) {
		return EpisodeHomepageRef{}, apperror.New(apperror.ProtocolShape, "not an episode homepage url: "+raw)
	}
	id := strings.TrimPrefix(u.Path, pathEpisodeHomepagePrefix)
	if id == "" {
		return EpisodeHomepageRef{}, apperror.New(apperror.ProtocolShape, "episode homepage url missing id: "+raw)
	}
	return EpisodeHomepageRef{MikanEpisodeID: id}, nil
}

// BangumiRSSRef is what ParseBangumiRSSURL extracts.
type BangumiRSSRef struct {
	MikanBangumiID string
	MikanFansubID  string // empty means "aggregation across all fansubs"
}

// ParseBangumiRSSURL extracts bangumiId/subgroupid from a /RSS/Bangumi URL,
// or reports ok=false if raw isn't one.
func ParseBangumiRSSURL(raw string) (ref BangumiRSSRef, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path != pathBangumiRSS {
		return BangumiRSSRef{}, false
	}
	q := u.Query()
	bid := q.Get("bangumiId")
	if bid == "" {
		return BangumiRSSRef{}, false
	}
	return BangumiRSSRef{MikanBangumiID: bid, MikanFansubID: q.Get("subgroupid")}, true
}

// SubscriberAggregationRSSRef is what ParseSubscriberAggregationRSSURL extracts.
type SubscriberAggregationRSSRef struct {
	Token string
}

// ParseSubscriberAggregationRSSURL extracts token from a /RSS/MyBangumi URL,
// or reports ok=false if raw isn't one.
func ParseSubscriberAggregationRSSURL(raw string) (ref SubscriberAggregationRSSRef, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path != pathSubscriberAggregateRSS {
		return SubscriberAggregationRSSRef{}, false
	}
	token := u.Query().Get("token")
	if token == "" {
		return SubscriberAggregationRSSRef{}, false
	}
	return SubscriberAggregationRSSRef{Token: token}, true
}

// resolveAgainst resolves a possibly-relative href/src against base (the
// Mikan root) or the page URL it was scraped from.
func resolveAgainst(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func validateSeasonFlowArgs(year int, seasonStr string) error {
	if !validSeasonStr(seasonStr) {
		return apperror.New(apperror.UserInput, fmt.Sprintf("invalid mikan seasonStr %q", seasonStr))
	}
	return nil
}
