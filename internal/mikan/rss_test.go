// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRSSChannelBangumi(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Mikan Project - 呪術廻戦</title>
<link>https://mikanani.me/RSS/Bangumi?bangumiId=3416&amp;subgroupid=370</link>
<item>
<title>[LoliHouse] 呪術廻戦 - 01 [1080p]</title>
<link>https://mikanani.me/Home/Episode/3141</link>
<enclosure url="https://mikanani.me/Download/abc.torrent" length="123456" type="application/x-bittorrent"/>
<pubDate>Mon, 02 Jan 2024 15:04:05 +0000</pubDate>
</item>
</channel></rss>`

	channel, err := ParseRSSChannel([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, RSSChannelBangumi, channel.Kind)
	assert.Equal(t, "3416", channel.MikanBangumiID)
	assert.Equal(t, "370", channel.MikanFansubID)
	assert.Equal(t, "呪術廻戦", channel.Name)
	require.Len(t, channel.Items, 1)
	assert.Equal(t, "3141", channel.Items[0].MikanEpisodeID)
	assert.EqualValues(t, 123456, channel.Items[0].ContentLength)
	assert.NotZero(t, channel.Items[0].PubDate)
}

func TestParseRSSChannelBangumiAggregation(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Mikan Project - 呪術廻戦</title>
<link>https://mikanani.me/RSS/Bangumi?bangumiId=3416</link>
</channel></rss>`

	channel, err := ParseRSSChannel([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, RSSChannelBangumiAggregation, channel.Kind)
	assert.Empty(t, channel.MikanFansubID)
}

func TestParseRSSChannelSubscriberAggregation(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>My Bangumi</title>
<link>https://mikanani.me/RSS/MyBangumi?token=abc123</link>
</channel></rss>`

	channel, err := ParseRSSChannel([]byte(feed))
	require.NoError(t, err)
	assert.Equal(t, RSSChannelSubscriberAggregation, channel.Kind)
	assert.Equal(t, "abc123", channel.MikanAggregationID)
}

func TestParseRSSChannelSkipsMimeMismatchItems(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Mikan Project - x</title>
<link>https://mikanani.me/RSS/Bangumi?bangumiId=1&amp;subgroupid=2</link>
<item>
<title>not a torrent</title>
<link>https://mikanani.me/Home/Episode/9</link>
<enclosure url="https://mikanani.me/file.zip" length="1" type="application/zip"/>
</item>
</channel></rss>`

	channel, err := ParseRSSChannel([]byte(feed))
	require.NoError(t, err)
	assert.Empty(t, channel.Items)
}

func TestParseRSSChannelUnrecognizedLink(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>x</title>
<link>https://mikanani.me/Home/Bangumi/1</link>
</channel></rss>`

	_, err := ParseRSSChannel([]byte(feed))
	assert.Error(t, err)
}
