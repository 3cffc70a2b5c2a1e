// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://mikanani.me"

func mustParseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestEpisodeMetaFromHomepage(t *testing.T) {
	html := `<html><head><title>Mikan Project - 呪術廻戦 第1話</title></head>
<body>
<div class="bangumi-title">
  <a href="/Home/Bangumi/3416">呪術廻戦</a>
  <a class="mikan-rss" href="/RSS/Bangumi?bangumiId=3416&subgroupid=370">RSS</a>
</div>
<div class="bangumi-info">
  <a href="/Home/PublishGroup/370">LoliHouse</a>
</div>
<div class="bangumi-poster" data-src="/images/Bangumi/3416_abcdef.jpg"></div>
</body></html>`

	meta, err := EpisodeMetaFromHomepage(mustParseDoc(t, html), testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "呪術廻戦", meta.BangumiTitle)
	assert.Equal(t, "3416", meta.MikanBangumiID)
	assert.Equal(t, "370", meta.MikanFansubID)
	assert.Equal(t, "Mikan Project - 呪術廻戦 第1話", meta.EpisodeTitle)
	assert.Equal(t, "LoliHouse", meta.FansubName)
	assert.Equal(t, "/images/Bangumi/3416_abcdef.jpg", meta.OriginPosterSrc)
}

func TestEpisodeMetaFromHomepagePosterBackgroundImageFallback(t *testing.T) {
	html := `<html><head><title>ep</title></head><body>
<div class="bangumi-title">
  <a href="/Home/Bangumi/1">x</a>
  <a class="mikan-rss" href="/RSS/Bangumi?bangumiId=1&subgroupid=2">RSS</a>
</div>
<div class="bangumi-info"><a href="/Home/PublishGroup/2">Fansub</a></div>
<div class="bangumi-poster" style="background-image: url('/images/Bangumi/1_poster.jpg');"></div>
</body></html>`

	meta, err := EpisodeMetaFromHomepage(mustParseDoc(t, html), testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "/images/Bangumi/1_poster.jpg", meta.OriginPosterSrc)
}

func TestEpisodeMetaFromHomepageMissingFansub(t *testing.T) {
	html := `<html><head><title>ep</title></head><body>
<div class="bangumi-title"><a href="/Home/Bangumi/1">x</a></div>
</body></html>`

	_, err := EpisodeMetaFromHomepage(mustParseDoc(t, html), testBaseURL)
	assert.Error(t, err)
}

func TestBangumiIndexMetaFromHomepage(t *testing.T) {
	html := `<html><body>
<div class="bangumi-title"><a href="/Home/Bangumi/3416">呪術廻戦</a></div>
<div class="bangumi-poster" data-src="/images/Bangumi/3416_abcdef.jpg"></div>
</body></html>`

	meta, err := BangumiIndexMetaFromHomepage(mustParseDoc(t, html), testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "呪術廻戦", meta.BangumiTitle)
	assert.Equal(t, "3416", meta.MikanBangumiID)
}

func TestBangumiIndexMetaListFromSeasonFlowFragmentUnauthenticated(t *testing.T) {
	html := `<html><body><div class="no-subscribe-bangumi"></div></body></html>`
	metas := BangumiIndexMetaListFromSeasonFlowFragment(mustParseDoc(t, html), testBaseURL)
	assert.Empty(t, metas)
}

func TestBangumiIndexMetaListFromSeasonFlowFragment(t *testing.T) {
	html := `<html><body>
<div class="mine an-box">
<ul class="an-ul">
<li>
  <span data-src="/images/Bangumi/3288_poster.jpg" data-bangumiid="3288"></span>
  <div class="an-info-group"><a class="an-text" title="吉伊卡哇">吉伊卡哇</a></div>
</li>
</ul>
</div>
</body></html>`

	metas := BangumiIndexMetaListFromSeasonFlowFragment(mustParseDoc(t, html), testBaseURL)
	require.Len(t, metas, 1)
	assert.Equal(t, "3288", metas[0].MikanBangumiID)
	assert.Equal(t, "吉伊卡哇", metas[0].BangumiTitle)
	assert.Equal(t, "/images/Bangumi/3288_poster.jpg", metas[0].OriginPosterSrc)
}

func TestBangumiMetaFromExpandSubscribedFragment(t *testing.T) {
	html := `<html><body>
<div class="js-expand_bangumi-subgroup js-subscribed">
  <span class="tag-res-name" title="LoliHouse">LoliHouse</span>
  <a class="active" data-subtitlegroupid="370" data-bangumiid="3288"></a>
</div>
</body></html>`

	index := BangumiIndexMeta{BangumiTitle: "吉伊卡哇", MikanBangumiID: "3288"}
	meta, err := BangumiMetaFromExpandSubscribedFragment(mustParseDoc(t, html), index, testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "370", meta.MikanFansubID)
	assert.Equal(t, "LoliHouse", meta.FansubName)
	assert.Equal(t, "吉伊卡哇", meta.BangumiTitle)
}

func TestBangumiMetaFromExpandSubscribedFragmentNotSubscribed(t *testing.T) {
	html := `<html><body><div class="js-expand_bangumi-subgroup"></div></body></html>`
	_, err := BangumiMetaFromExpandSubscribedFragment(mustParseDoc(t, html), BangumiIndexMeta{}, testBaseURL)
	assert.Error(t, err)
}
