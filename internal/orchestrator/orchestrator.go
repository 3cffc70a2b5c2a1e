// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orchestrator binds the cron scheduler to the Mikan extractor,
// the persistence layer, and the torrent driver: when a subscription cron
// fires, it loads the subscription, pulls the matching feed or season
// flow, reconciles the extracted entities against the database, and hands
// any new torrent sources to the subscriber's downloader.
package orchestrator

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/cron"
	"github.com/aniwatch/aniwatch/internal/domain"
	"github.com/aniwatch/aniwatch/internal/fetch"
	"github.com/aniwatch/aniwatch/internal/mikan"
	"github.com/aniwatch/aniwatch/internal/models"
	"github.com/aniwatch/aniwatch/internal/torrent"
)

// TorrentAdder is the slice of internal/torrent.Driver the orchestrator
// drives.
type TorrentAdder interface {
	AddDownloads(ctx context.Context, c torrent.Creation) error
}

// DriverProvider resolves the running driver for a downloader profile.
type DriverProvider interface {
	DriverFor(downloaderID int64) (TorrentAdder, bool)
}

// Stores bundles the repository handles the orchestrator persists through.
type Stores struct {
	Subscriptions *models.SubscriptionStore
	Credentials   *models.CredentialStore
	Bangumi       *models.BangumiStore
	Episodes      *models.EpisodeStore
	Joins         *models.JoinStore
	Downloads     *models.DownloadStore
	Downloaders   *models.DownloaderStore
}

// Orchestrator implements the subscription cron handler.
type Orchestrator struct {
	httpRoot  *fetch.Client
	mikanBase string
	posters   mikan.PosterStore
	stores    Stores
	drivers   DriverProvider
	logger    zerolog.Logger
}

func New(httpRoot *fetch.Client, mikanBase string, posters mikan.PosterStore, stores Stores, drivers DriverProvider) *Orchestrator {
	return &Orchestrator{
		httpRoot:  httpRoot,
		mikanBase: mikanBase,
		posters:   posters,
		stores:    stores,
		drivers:   drivers,
		logger:    log.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Register binds the orchestrator's handlers into the cron registry.
func (o *Orchestrator) Register(reg *cron.Registry) {
	reg.Register("subscription", o.HandleSubscription)
}

// HandleSubscription is the handler for cron rows with source
// "subscription/<id>". It is idempotent: every persistence step is an
// upsert keyed on the entity's dedup identity, so a retried firing
// converges instead of duplicating.
func (o *Orchestrator) HandleSubscription(ctx context.Context, row domain.Cron) error {
	id, err := subscriptionIDFromSource(row)
	if err != nil {
		return err
	}

	sub, err := o.stores.Subscriptions.GetByIDAnyTenant(ctx, id)
	if err != nil {
		return err
	}
	if !sub.Enabled {
		o.logger.Debug().Int64("subscriptionID", sub.ID).Msg("subscription disabled, skipping firing")
		return nil
	}

	source, err := domain.ParseSubscriptionSource(sub.Category, sub.SourceURL)
	if err != nil {
		return err
	}

	client, cred, err := o.clientFor(ctx, sub)
	if err != nil {
		return err
	}

	switch src := source.(type) {
	case domain.MikanSeasonSource:
		return o.pullSeason(ctx, client, sub, cred, src)
	default:
		return o.pullFeed(ctx, client, sub, source.MikanURL(o.mikanBase))
	}
}

// clientFor builds the per-subscription Mikan client: a credential-bound
// fork when the subscription carries one, the root client otherwise.
func (o *Orchestrator) clientFor(ctx context.Context, sub *domain.Subscription) (*mikan.Client, *domain.Credential3rd, error) {
	if !sub.CredentialID.Valid {
		if sub.RequiresCredential() {
			return nil, nil, apperror.New(apperror.Config, "mikan_season subscription without credential")
		}
		return mikan.New(o.httpRoot, o.mikanBase, o.posters), nil, nil
	}

	cred, err := o.stores.Credentials.Get(ctx, sub.SubscriberID, sub.CredentialID.Int64)
	if err != nil {
		return nil, nil, err
	}
	client, err := mikan.ForCredential(o.httpRoot, o.mikanBase, cred.UserAgent.String, cred.Cookies.String, o.posters)
	if err != nil {
		return nil, nil, err
	}
	return client, cred, nil
}

func subscriptionIDFromSource(row domain.Cron) (int64, error) {
	_, rest, ok := strings.Cut(row.Source, "/")
	if ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return id, nil
		}
	}
	if row.SubscriptionID.Valid {
		return row.SubscriptionID.Int64, nil
	}
	return 0, apperror.New(apperror.UserInput, "cron source carries no subscription id: "+row.Source)
}
