// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// bittorrentMIMEType is the only enclosure MIME rss_channel_from_feed
// accepts.
const bittorrentMIMEType = "application/x-bittorrent"

// RSSItem is a single entry of a Mikan RSS channel.
type RSSItem struct {
	Title          string
	Homepage       string
	TorrentURL     string
	ContentLength  int64 // 0 if absent
	PubDate        int64 // unix millis, 0 if absent
	MikanEpisodeID string
}

// RSSChannelKind discriminates the three channel shapes Mikan serves.
type RSSChannelKind int

const (
	RSSChannelBangumi RSSChannelKind = iota
	RSSChannelBangumiAggregation
	RSSChannelSubscriberAggregation
)

// RSSChannel is the result of rss_channel_from_feed.
type RSSChannel struct {
	Kind                 RSSChannelKind
	Name                 string // empty for SubscriberAggregation
	URL                  string
	MikanBangumiID       string // empty for SubscriberAggregation
	MikanFansubID        string // only set for RSSChannelBangumi
	MikanAggregationID   string // only set for RSSChannelSubscriberAggregation
	Items                []RSSItem
}

// ParseRSSChannel implements rss_channel_from_feed: dispatches on the
// channel-level <link> path, converting each item and rejecting any whose
// enclosure isn't a bittorrent MIME type.
func ParseRSSChannel(data []byte) (RSSChannel, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseString(string(data))
	if err != nil {
		return RSSChannel{}, apperror.Wrap(apperror.ProtocolShape, "parse mikan rss feed", err)
	}

	channel := RSSChannel{URL: feed.Link}

	if ref, ok := ParseBangumiRSSURL(feed.Link); ok {
		channel.MikanBangumiID = ref.MikanBangumiID
		channel.Name = strings.TrimPrefix(feed.Title, "Mikan Project - ")
		if ref.MikanFansubID != "" {
			channel.Kind = RSSChannelBangumi
			channel.MikanFansubID = ref.MikanFansubID
		} else {
			channel.Kind = RSSChannelBangumiAggregation
		}
	} else if ref, ok := ParseSubscriberAggregationRSSURL(feed.Link); ok {
		channel.Kind = RSSChannelSubscriberAggregation
		channel.MikanAggregationID = ref.Token
	} else {
		return RSSChannel{}, apperror.New(apperror.ProtocolShape, "unrecognized mikan rss channel link: "+feed.Link)
	}

	for _, item := range feed.Items {
		rssItem, err := rssItemFromFeedItem(item)
		if err != nil {
			continue // malformed items are skipped, not fatal
		}
		channel.Items = append(channel.Items, rssItem)
	}

	return channel, nil
}

func rssItemFromFeedItem(item *gofeed.Item) (RSSItem, error) {
	if len(item.Enclosures) == 0 {
		return RSSItem{}, apperror.New(apperror.ProtocolShape, "mikan rss item missing enclosure")
	}
	enclosure := item.Enclosures[0]
	if enclosure.Type != bittorrentMIMEType {
		return RSSItem{}, apperror.New(apperror.ProtocolShape, "mikan rss item enclosure mime mismatch: "+enclosure.Type)
	}
	if item.Title == "" {
		return RSSItem{}, apperror.New(apperror.ProtocolShape, "mikan rss item missing title")
	}
	if item.Link == "" {
		return RSSItem{}, apperror.New(apperror.ProtocolShape, "mikan rss item missing homepage link")
	}

	ref, err := ParseEpisodeHomepageURL(item.Link)
	if err != nil {
		return RSSItem{}, err
	}

	rssItem := RSSItem{
		Title:          item.Title,
		Homepage:       item.Link,
		TorrentURL:     enclosure.URL,
		MikanEpisodeID: ref.MikanEpisodeID,
	}
	if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
		rssItem.ContentLength = length
	}
	if item.PublishedParsed != nil {
		rssItem.PubDate = item.PublishedParsed.UnixMilli()
	}
	return rssItem, nil
}
