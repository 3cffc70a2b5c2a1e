// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// SubscriptionSource is the tagged-union representation of a Subscription's
// category-specific parameters, parsed at load time from SourceURL.
type SubscriptionSource interface {
	Category() SubscriptionCategory
	// MikanURL builds the Mikan RSS/HTML path this source resolves to.
	MikanURL(base string) string
}

// MikanSubscriberSource is the `mikan_subscriber` category: an opaque
// per-subscriber aggregation token (/RSS/MyBangumi?token=...).
type MikanSubscriberSource struct {
	Token string
}

func (MikanSubscriberSource) Category() SubscriptionCategory { return CategoryMikanSubscriber }

func (s MikanSubscriberSource) MikanURL(base string) string {
	return fmt.Sprintf("%s/RSS/MyBangumi?token=%s", strings.TrimRight(base, "/"), url.QueryEscape(s.Token))
}

// MikanBangumiSource is the `mikan_bangumi` category: a single bangumi,
// optionally scoped to one fansub (/RSS/Bangumi?bangumiId=...&subgroupid=...).
type MikanBangumiSource struct {
	BangumiID string
	FansubID  string // optional
}

func (MikanBangumiSource) Category() SubscriptionCategory { return CategoryMikanBangumi }

func (s MikanBangumiSource) MikanURL(base string) string {
	u := fmt.Sprintf("%s/RSS/Bangumi?bangumiId=%s", strings.TrimRight(base, "/"), url.QueryEscape(s.BangumiID))
	if s.FansubID != "" {
		u += "&subgroupid=" + url.QueryEscape(s.FansubID)
	}
	return u
}

// MikanSeasonSource is the `mikan_season` category: a whole season's worth
// of bangumi (/Home/BangumiCoverFlow?year=...&seasonStr=...). Requires a
// Credential3rd.
type MikanSeasonSource struct {
	Year   int
	Season string // one of 春/夏/秋/冬
}

func (MikanSeasonSource) Category() SubscriptionCategory { return CategoryMikanSeason }

func (s MikanSeasonSource) MikanURL(base string) string {
	return fmt.Sprintf("%s/Home/BangumiCoverFlow?year=%d&seasonStr=%s", strings.TrimRight(base, "/"), s.Year, url.QueryEscape(s.Season))
}

// ManualSource is the `manual` category: an opaque, user-supplied URL with
// no Mikan-specific parsing.
type ManualSource struct {
	URL string
}

func (ManualSource) Category() SubscriptionCategory { return CategoryManual }

func (s ManualSource) MikanURL(string) string { return s.URL }

// ParseSubscriptionSource decodes SourceURL into the variant matching
// category. The URL layout mirrors the Mikan site's canonical paths.
func ParseSubscriptionSource(category SubscriptionCategory, sourceURL string) (SubscriptionSource, error) {
	switch category {
	case CategoryManual:
		return ManualSource{URL: sourceURL}, nil
	case CategoryMikanSubscriber:
		u, err := url.Parse(sourceURL)
		if err != nil {
			return nil, apperror.Wrap(apperror.UserInput, "parse mikan_subscriber source_url", err)
		}
		token := u.Query().Get("token")
		if token == "" {
			return nil, apperror.New(apperror.UserInput, "mikan_subscriber source_url missing token")
		}
		return MikanSubscriberSource{Token: token}, nil
	case CategoryMikanBangumi:
		u, err := url.Parse(sourceURL)
		if err != nil {
			return nil, apperror.Wrap(apperror.UserInput, "parse mikan_bangumi source_url", err)
		}
		q := u.Query()
		bangumiID := q.Get("bangumiId")
		if bangumiID == "" {
			return nil, apperror.New(apperror.UserInput, "mikan_bangumi source_url missing bangumiId")
		}
		return MikanBangumiSource{BangumiID: bangumiID, FansubID: q.Get("subgroupid")}, nil
	case CategoryMikanSeason:
		u, err := url.Parse(sourceURL)
		if err != nil {
			return nil, apperror.Wrap(apperror.UserInput, "parse mikan_season source_url", err)
		}
		q := u.Query()
		yearStr := q.Get("year")
		season := q.Get("seasonStr")
		year, err := strconv.Atoi(yearStr)
		if err != nil || season == "" {
			return nil, apperror.New(apperror.UserInput, "mikan_season source_url requires year and seasonStr")
		}
		return MikanSeasonSource{Year: year, Season: season}, nil
	default:
		return nil, apperror.New(apperror.UserInput, fmt.Sprintf("unknown subscription category %q", category))
	}
}
