// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// MissingField reports the first required field an extractor could not
// locate.
type MissingField struct {
	Field string
}

func (e *MissingField) Error() string { return "mikan: missing field " + e.Field }

func missingField(field string) error {
	return apperror.Wrap(apperror.ProtocolShape, "extract html", &MissingField{Field: field})
}

var backgroundImageURLRe = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)

// posterSrc reads a .bangumi-poster node's origin image src, preferring
// data-src and falling back to a `background-image: url(...)` inline style.
func posterSrc(sel *goquery.Selection) string {
	if src, ok := sel.Attr("data-src"); ok && src != "" {
		return src
	}
	if style, ok := sel.Attr("style"); ok {
		if m := backgroundImageURLRe.FindStringSubmatch(style); len(m) == 2 {
			return m[1]
		}
	}
	return ""
}

// EpisodeMetaFromHomepage implements episode_meta_from_homepage: extracts
// bangumi title/ids, episode title, fansub name and poster from an episode
// homepage document. base resolves relative hrefs.
func EpisodeMetaFromHomepage(doc *goquery.Document, base string) (EpisodeMeta, error) {
	var meta EpisodeMeta

	titleLink := doc.Find(".bangumi-title > a[href^='/Home/Bangumi/']").First()
	if titleLink.Length() == 0 {
		return meta, missingField("bangumi_title")
	}
	meta.BangumiTitle = strings.TrimSpace(titleLink.Text())
	href, _ := titleLink.Attr("href")
	ref, err := ParseBangumiHomepageURL(resolveAgainst(base, href))
	if err != nil {
		return meta, missingField("mikan_bangumi_id")
	}
	meta.MikanBangumiID = ref.MikanBangumiID

	rssLink := doc.Find(".bangumi-title > a.mikan-rss").First()
	if rssLink.Length() == 0 {
		return meta, missingField("mikan_fansub_id")
	}
	rssHref, _ := rssLink.Attr("href")
	if rssRef, ok := ParseBangumiRSSURL(resolveAgainst(base, rssHref)); ok {
		if meta.MikanBangumiID == "" {
			meta.MikanBangumiID = rssRef.MikanBangumiID
		}
		meta.MikanFansubID = rssRef.MikanFansubID
	}
	if meta.MikanFansubID == "" {
		return meta, missingField("mikan_fansub_id")
	}

	episodeTitle := strings.TrimSpace(doc.Find("title").First().Text())
	if episodeTitle == "" {
		return meta, missingField("episode_title")
	}
	meta.EpisodeTitle = episodeTitle

	fansubLink := doc.Find(".bangumi-info a[href^='/Home/PublishGroup/']").First()
	if fansubLink.Length() == 0 {
		return meta, missingField("fansub_name")
	}
	meta.FansubName = strings.TrimSpace(fansubLink.Text())

	meta.OriginPosterSrc = posterSrc(doc.Find(".bangumi-poster").First())

	return meta, nil
}

// BangumiIndexMetaFromHomepage implements bangumi_index_meta_from_homepage:
// same as EpisodeMetaFromHomepage minus the fansub-specific fields.
func BangumiIndexMetaFromHomepage(doc *goquery.Document, base string) (BangumiIndexMeta, error) {
	var meta BangumiIndexMeta

	titleLink := doc.Find(".bangumi-title > a[href^='/Home/Bangumi/']").First()
	if titleLink.Length() == 0 {
		return meta, missingField("bangumi_title")
	}
	meta.BangumiTitle = strings.TrimSpace(titleLink.Text())

	href, _ := titleLink.Attr("href")
	ref, err := ParseBangumiHomepageURL(resolveAgainst(base, href))
	if err != nil {
		return meta, missingField("mikan_bangumi_id")
	}
	meta.MikanBangumiID = ref.MikanBangumiID

	meta.OriginPosterSrc = posterSrc(doc.Find(".bangumi-poster").First())
	return meta, nil
}

// noSubscribeBangumiSentinel marks an unauthenticated or empty season-flow
// response.
const noSubscribeBangumiSentinel = ".no-subscribe-bangumi"

// BangumiIndexMetaListFromSeasonFlowFragment implements
// bangumi_index_meta_list_from_season_flow_fragment: a `.no-subscribe-bangumi`
// marker means "not authenticated" and yields the empty list, never an error.
func BangumiIndexMetaListFromSeasonFlowFragment(doc *goquery.Document, base string) []BangumiIndexMeta {
	if doc.Find(noSubscribeBangumiSentinel).Length() > 0 {
		return nil
	}

	var metas []BangumiIndexMeta
	doc.Find(".mine.an-box ul.an-ul > li").Each(func(_ int, li *goquery.Selection) {
		posterSpan := li.Find("span[data-src][data-bangumiid]").First()
		if posterSpan.Length() == 0 {
			return
		}
		bangumiID, ok := posterSpan.Attr("data-bangumiid")
		if !ok || bangumiID == "" {
			return
		}
		src, _ := posterSpan.Attr("data-src")

		titleLink := li.Find(".an-info-group a.an-text[title]").First()
		title, ok := titleLink.Attr("title")
		if !ok {
			title = strings.TrimSpace(titleLink.Text())
		}

		metas = append(metas, BangumiIndexMeta{
			BangumiTitle:    strings.TrimSpace(title),
			MikanBangumiID:  bangumiID,
			OriginPosterSrc: src,
		})
	})
	return metas
}

// BangumiMetaFromExpandSubscribedFragment implements
// bangumi_meta_from_expand_subscribed_fragment: joins a subscribed fansub
// into index.
func BangumiMetaFromExpandSubscribedFragment(doc *goquery.Document, index BangumiIndexMeta, base string) (BangumiMeta, error) {
	container := doc.Find(".js-expand_bangumi-subgroup.js-subscribed").First()
	if container.Length() == 0 {
		return BangumiMeta{}, missingField("fansub")
	}

	fansubID, ok := container.Find("[data-subtitlegroupid][data-bangumiid].active").First().Attr("data-subtitlegroupid")
	if !ok || fansubID == "" {
		return BangumiMeta{}, missingField("mikan_fansub_id")
	}

	fansubName, ok := container.Find(".tag-res-name[title]").First().Attr("title")
	if !ok || fansubName == "" {
		return BangumiMeta{}, missingField("fansub_name")
	}

	return BangumiMeta{
		BangumiIndexMeta: index,
		MikanFansubID:    fansubID,
		FansubName:       strings.TrimSpace(fansubName),
	}, nil
}
