// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"bytes"
	"context"
	"database/sql"
	"path"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/mikan"
	"github.com/aniwatch/aniwatch/internal/rawname"
	"github.com/aniwatch/aniwatch/internal/storage"
	"github.com/aniwatch/aniwatch/internal/torrent"
)

const downloadCategory = "aniwatch"

// pullFeed reconciles one RSS channel: upserts the channel's bangumi (when
// the channel identifies one), then walks its items. Shape-wrong items are
// logged and skipped so one bad item can't starve the rest; other failures are
// remembered and surfaced after the walk so a transient error retries the
// whole (idempotent) firing.
func (o *Orchestrator) pullFeed(ctx context.Context, client *mikan.Client, sub *domain.Subscription, feedURL string) error {
	channel, err := client.FetchRSSChannel(ctx, feedURL)
	if err != nil {
		return err
	}

	var channelBangumiID int64
	if channel.MikanBangumiID != "" {
		channelBangumiID, err = o.upsertChannelBangumi(ctx, sub, channel)
		if err != nil {
			return err
		}
	}

	var firstErr error
	for _, item := range channel.Items {
		if err := o.reconcileItem(ctx, client, sub, channelBangumiID, channel, item); err != nil {
			if apperror.Is(err, apperror.ProtocolShape) {
				o.logger.Warn().Err(err).Str("title", item.Title).Msg("skipping shape-wrong feed item")
				continue
			}
			o.logger.Error().Err(err).Str("title", item.Title).Msg("feed item reconcile failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// upsertChannelBangumi persists the bangumi a bangumi-scoped channel
// advertises, returning its row id.
func (o *Orchestrator) upsertChannelBangumi(ctx context.Context, sub *domain.Subscription, channel mikan.RSSChannel) (int64, error) {
	meta := rawname.Parse(channel.Name)
	b := domain.Bangumi{
		SubscriberID:   sub.SubscriberID,
		MikanBangumiID: channel.MikanBangumiID,
		DisplayName:    meta.Name,
		RawName:        channel.Name,
		Season:         meta.Season,
		RSSLink:        nullString(channel.URL),
	}
	if meta.SeasonRaw != "" {
		b.SeasonRaw = nullString(meta.SeasonRaw)
	}
	if channel.MikanFansubID != "" {
		b.MikanFansubID = nullString(channel.MikanFansubID)
	}
	id, err := o.stores.Bangumi.Upsert(ctx, b)
	if err != nil {
		return 0, err
	}
	if err := o.stores.Joins.LinkBangumi(ctx, sub.SubscriberID, sub.ID, id); err != nil {
		return 0, err
	}
	return id, nil
}

// reconcileItem persists one feed item's episode and, when the episode has
// no download yet, creates one.
func (o *Orchestrator) reconcileItem(ctx context.Context, client *mikan.Client, sub *domain.Subscription, channelBangumiID int64, channel mikan.RSSChannel, item mikan.RSSItem) error {
	meta := rawname.Parse(item.Title)

	bangumiID := channelBangumiID
	posterSrc := ""
	if bangumiID == 0 {
		// Aggregation feeds don't name a bangumi; the episode homepage does.
		epMeta, err := client.EpisodeMetaFromHomepageURL(ctx, item.Homepage)
		if err != nil {
			return err
		}
		b := domain.Bangumi{
			SubscriberID:   sub.SubscriberID,
			MikanBangumiID: epMeta.MikanBangumiID,
			MikanFansubID:  nullString(epMeta.MikanFansubID),
			DisplayName:    epMeta.BangumiTitle,
			RawName:        epMeta.BangumiTitle,
			Season:         meta.Season,
			Fansub:         nullString(epMeta.FansubName),
			Homepage:       nullString(mikan.BuildBangumiHomepageURL(client.BaseURL(), epMeta.MikanBangumiID, epMeta.MikanFansubID)),
		}
		posterSrc = epMeta.OriginPosterSrc
		bangumiID, err = o.stores.Bangumi.Upsert(ctx, b)
		if err != nil {
			return err
		}
		if err := o.stores.Joins.LinkBangumi(ctx, sub.SubscriberID, sub.ID, bangumiID); err != nil {
			return err
		}
	}

	episode := domain.Episode{
		MikanEpisodeID: item.MikanEpisodeID,
		BangumiID:      bangumiID,
		SubscriberID:   sub.SubscriberID,
		RawName:        item.Title,
		DisplayName:    meta.Name,
		Season:         meta.Season,
		EpisodeIndex:   meta.EpisodeIndex,
		Fansub:         nullString(meta.Fansub),
		Resolution:     nullString(meta.Resolution),
		Subtitle:       nullString(meta.Subtitle),
		Source:         nullString(meta.Source),
		Homepage:       nullString(item.Homepage),
	}
	if posterSrc != "" {
		if link, err := client.PosterMeta(ctx, sub.SubscriberID, posterSrc); err == nil {
			episode.PosterLink = nullString(link)
		} else {
			o.logger.Debug().Err(err).Str("src", posterSrc).Msg("poster cache miss not recoverable")
		}
	}

	episodeID, err := o.stores.Episodes.Upsert(ctx, episode)
	if err != nil {
		return err
	}
	if err := o.stores.Joins.LinkEpisode(ctx, sub.SubscriberID, sub.ID, episodeID); err != nil {
		return err
	}

	return o.ensureDownload(ctx, client, sub, episodeID, meta.Name, item)
}

// ensureDownload creates the Download row and hands the torrent to the
// subscriber's driver, once per episode.
func (o *Orchestrator) ensureDownload(ctx context.Context, client *mikan.Client, sub *domain.Subscription, episodeID int64, bangumiTitle string, item mikan.RSSItem) error {
	if _, err := o.stores.Downloads.GetByEpisode(ctx, sub.SubscriberID, episodeID); err == nil {
		return nil // already tracked; retries converge here
	} else if !apperror.Is(err, apperror.DBNotFound) {
		return err
	}

	downloaders, err := o.stores.Downloaders.ListBySubscriber(ctx, sub.SubscriberID)
	if err != nil {
		return err
	}
	if len(downloaders) == 0 {
		o.logger.Warn().Int64("subscriberID", sub.SubscriberID).Msg("no downloader configured, episode recorded without download")
		return nil
	}
	dl := downloaders[0]

	savePath := path.Join(dl.SavePath, storage.SanitizeKey(bangumiTitle))
	download := domain.Download{
		SubscriberID: sub.SubscriberID,
		DownloaderID: dl.ID,
		EpisodeID:    episodeID,
		RawName:      item.Title,
		Status:       domain.DownloadPending,
		AllSize:      item.ContentLength,
		URL:          item.TorrentURL,
		Homepage:     nullString(item.Homepage),
		SavePath:     nullString(savePath),
	}
	downloadID, err := o.stores.Downloads.Create(ctx, download)
	if err != nil {
		return err
	}
	if err := o.stores.Episodes.SetDownloadID(ctx, episodeID, downloadID); err != nil {
		return err
	}

	driver, ok := o.drivers.DriverFor(dl.ID)
	if !ok {
		o.logger.Warn().Int64("downloaderID", dl.ID).Msg("driver not running, download stays pending")
		return nil
	}

	data, err := client.FetchTorrent(ctx, item.TorrentURL)
	if err != nil {
		return err
	}
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return apperror.Wrap(apperror.ProtocolShape, "parse torrent metainfo", err)
	}
	hash := mi.HashInfoBytes().HexString()

	creation := torrent.Creation{
		SavePath:    savePath,
		Tags:        []string{downloadCategory},
		Category:    downloadCategory,
		DisplayName: item.Title,
		Sources: []torrent.HashTorrentSource{{
			Kind:      torrent.SourceFile,
			InfoHash:  hash,
			FileName:  storage.SanitizeKey(item.Title) + ".torrent",
			FileBytes: data,
		}},
	}
	if err := driver.AddDownloads(ctx, creation); err != nil {
		if ferr := o.stores.Downloads.SetStatus(ctx, downloadID, domain.DownloadFailed); ferr != nil {
			o.logger.Error().Err(ferr).Int64("downloadID", downloadID).Msg("mark download failed")
		}
		return err
	}
	return o.stores.Downloads.SetStatus(ctx, downloadID, domain.DownloadRunning)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
