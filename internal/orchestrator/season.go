// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/mikan"
)

// pullSeason drives the season-flow scrape for a mikan_season subscription:
// it consumes the lazy BangumiMeta stream, persists the index and
// subscribable records for each joined meta, then reconciles that
// bangumi's own feed for episodes.
func (o *Orchestrator) pullSeason(ctx context.Context, client *mikan.Client, sub *domain.Subscription, cred *domain.Credential3rd, src domain.MikanSeasonSource) error {
	if cred == nil {
		return apperror.New(apperror.Config, "mikan_season subscription without credential")
	}

	sync := func(ctx context.Context, cookiesJSON string) error {
		return o.stores.Credentials.UpdateCookies(ctx, cred.ID, cookiesJSON)
	}

	var firstErr error
	for result := range client.PullSeasonFlow(ctx, src.Year, src.Season, mikan.Credential{Username: cred.Username, Password: cred.Password}, sync) {
		if result.Err != nil {
			return result.Err
		}
		if err := o.reconcileSeasonMeta(ctx, client, sub, result.Meta); err != nil {
			o.logger.Error().Err(err).Str("bangumi", result.Meta.BangumiTitle).Msg("season meta reconcile failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (o *Orchestrator) reconcileSeasonMeta(ctx context.Context, client *mikan.Client, sub *domain.Subscription, meta mikan.BangumiMeta) error {
	posterLink := ""
	if meta.OriginPosterSrc != "" {
		if link, err := client.PosterMeta(ctx, sub.SubscriberID, meta.OriginPosterSrc); err == nil {
			posterLink = link
		} else {
			o.logger.Debug().Err(err).Str("src", meta.OriginPosterSrc).Msg("poster cache failed")
		}
	}

	// Index record: bangumi without fansub.
	index := domain.Bangumi{
		SubscriberID:   sub.SubscriberID,
		MikanBangumiID: meta.MikanBangumiID,
		DisplayName:    meta.BangumiTitle,
		RawName:        meta.BangumiTitle,
		Season:         1,
		PosterLink:     nullString(posterLink),
		Homepage:       nullString(mikan.BuildBangumiHomepageURL(client.BaseURL(), meta.MikanBangumiID, "")),
	}
	if _, err := o.stores.Bangumi.Upsert(ctx, index); err != nil {
		return err
	}

	// Subscribable record: bangumi plus the subscribed fansub.
	rssLink := mikan.BuildBangumiRSSURL(client.BaseURL(), meta.MikanBangumiID, meta.MikanFansubID)
	subscribable := index
	subscribable.MikanFansubID = nullString(meta.MikanFansubID)
	subscribable.Fansub = nullString(meta.FansubName)
	subscribable.RSSLink = nullString(rssLink)
	subscribable.Homepage = nullString(mikan.BuildBangumiHomepageURL(client.BaseURL(), meta.MikanBangumiID, meta.MikanFansubID))
	id, err := o.stores.Bangumi.Upsert(ctx, subscribable)
	if err != nil {
		return err
	}
	if err := o.stores.Joins.LinkBangumi(ctx, sub.SubscriberID, sub.ID, id); err != nil {
		return err
	}

	return o.pullFeed(ctx, client, sub, rssLink)
}
