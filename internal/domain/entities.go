// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"database/sql"
	"time"
)

// Subscriber is the tenant root. Every mutable row elsewhere carries a
// SubscriberID and is owned exclusively by one Subscriber.
type Subscriber struct {
	ID          int64     `db:"id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// CredentialKind enumerates the supported Credential3rd kinds.
type CredentialKind string

const (
	CredentialKindMikan CredentialKind = "mikan"
)

// Credential3rd is a user-supplied set of credentials for an upstream
// account (currently: Mikan username/password plus its cookie jar).
type Credential3rd struct {
	ID           int64          `db:"id"`
	SubscriberID int64          `db:"subscriber_id"`
	Kind         CredentialKind `db:"kind"`
	Username     string         `db:"username"`
	Password     string         `db:"password"`
	UserAgent    sql.NullString `db:"user_agent"`
	Cookies      sql.NullString `db:"cookies"` // serialized cookie jar JSON
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// SubscriptionCategory is the polymorphic discriminator of Subscription.
type SubscriptionCategory string

const (
	CategoryMikanSubscriber SubscriptionCategory = "mikan_subscriber"
	CategoryMikanBangumi    SubscriptionCategory = "mikan_bangumi"
	CategoryMikanSeason     SubscriptionCategory = "mikan_season"
	CategoryManual          SubscriptionCategory = "manual"
)

// Subscription is a subscriber's standing interest in an upstream feed.
// Category-specific parameters live encoded in SourceURL and are parsed on
// use via ParseSubscriptionSource, never stored decomposed.
type Subscription struct {
	ID           int64                `db:"id"`
	SubscriberID int64                `db:"subscriber_id"`
	DisplayName  string               `db:"display_name"`
	Category     SubscriptionCategory `db:"category"`
	SourceURL    string               `db:"source_url"`
	Enabled      bool                 `db:"enabled"`
	CredentialID sql.NullInt64        `db:"credential_id"`
	CreatedAt    time.Time            `db:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at"`
}

// RequiresCredential reports whether the invariant "credential_id is
// required iff category is mikan_season" applies to this subscription.
func (s Subscription) RequiresCredential() bool {
	return s.Category == CategoryMikanSeason
}

// Bangumi is a series (a season of an anime). A row without FansubID is the
// index record; a row with one is the subscribable record.
type Bangumi struct {
	ID             int64          `db:"id"`
	SubscriberID   int64          `db:"subscriber_id"`
	MikanBangumiID string         `db:"mikan_bangumi_id"`
	MikanFansubID  sql.NullString `db:"mikan_fansub_id"`
	DisplayName    string         `db:"display_name"`
	RawName        string         `db:"raw_name"`
	Season         int            `db:"season"`
	SeasonRaw      sql.NullString `db:"season_raw"`
	Fansub         sql.NullString `db:"fansub"`
	RSSLink        sql.NullString `db:"rss_link"`
	PosterLink     sql.NullString `db:"poster_link"`
	Homepage       sql.NullString `db:"homepage"`
	SavePath       sql.NullString `db:"save_path"`
	Extra          JSONB          `db:"extra"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// IsIndex reports whether this row is the fansub-less index record.
func (b Bangumi) IsIndex() bool { return !b.MikanFansubID.Valid }

// Episode is one downloadable release of a Bangumi by a fansub.
type Episode struct {
	ID             int64          `db:"id"`
	MikanEpisodeID string         `db:"mikan_episode_id"`
	BangumiID      int64          `db:"bangumi_id"`
	SubscriberID   int64          `db:"subscriber_id"`
	RawName        string         `db:"raw_name"`
	DisplayName    string         `db:"display_name"`
	Season         int            `db:"season"`
	EpisodeIndex   int            `db:"episode_index"`
	Fansub         sql.NullString `db:"fansub"`
	Resolution     sql.NullString `db:"resolution"`
	Subtitle       sql.NullString `db:"subtitle"`
	Source         sql.NullString `db:"source"`
	Homepage       sql.NullString `db:"homepage"`
	PosterLink     sql.NullString `db:"poster_link"`
	DownloadID     sql.NullInt64  `db:"download_id"`
	SavePath       sql.NullString `db:"save_path"`
	Extra          JSONB          `db:"extra"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// SubscriptionBangumi is a many-to-many join row, idempotent on conflict.
type SubscriptionBangumi struct {
	ID             int64     `db:"id"`
	SubscriberID   int64     `db:"subscriber_id"`
	SubscriptionID int64     `db:"subscription_id"`
	BangumiID      int64     `db:"bangumi_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// SubscriptionEpisode is a many-to-many join row, idempotent on conflict.
type SubscriptionEpisode struct {
	ID             int64     `db:"id"`
	SubscriberID   int64     `db:"subscriber_id"`
	SubscriptionID int64     `db:"subscription_id"`
	EpisodeID      int64     `db:"episode_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// DownloadStatus is advisory — the authoritative state lives in the torrent driver.
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadRunning   DownloadStatus = "running"
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Download records the orchestrator's intent to fetch an Episode's torrent.
type Download struct {
	ID           int64          `db:"id"`
	SubscriberID int64          `db:"subscriber_id"`
	DownloaderID int64          `db:"downloader_id"`
	EpisodeID    int64          `db:"episode_id"`
	RawName      string         `db:"raw_name"`
	Status       DownloadStatus `db:"status"`
	CurrSize     int64          `db:"curr_size"`
	AllSize      int64          `db:"all_size"`
	MIME         sql.NullString `db:"mime"`
	URL          string         `db:"url"`
	Homepage     sql.NullString `db:"homepage"`
	SavePath     sql.NullString `db:"save_path"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// DownloaderKind enumerates supported remote torrent clients.
type DownloaderKind string

const (
	DownloaderKindQBittorrent DownloaderKind = "qbittorrent"
)

// Downloader is the connection profile for a remote torrent driver.
type Downloader struct {
	ID           int64          `db:"id"`
	SubscriberID int64          `db:"subscriber_id"`
	Kind         DownloaderKind `db:"kind"`
	Endpoint     string         `db:"endpoint"`
	Username     string         `db:"username"`
	Password     string         `db:"password"`
	SavePath     string         `db:"save_path"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// CronStatus is the lifecycle state of a Cron row.
type CronStatus string

const (
	CronPending   CronStatus = "pending"
	CronRunning   CronStatus = "running"
	CronCompleted CronStatus = "completed"
	CronFailed    CronStatus = "failed"
)

// Cron is a recurring job row; see internal/cron for expression parsing and
// the distributed claim mechanism that operates on this table.
type Cron struct {
	ID           int64          `db:"id"`
	CronExpr     string         `db:"cron_expr"`
	Source       string         `db:"source"` // e.g. "subscription/<id>"
	SubscriberID sql.NullInt64  `db:"subscriber_id"`
	SubscriptionID sql.NullInt64 `db:"subscription_id"`
	NextRun      sql.NullTime   `db:"next_run"`
	LastRun      sql.NullTime   `db:"last_run"`
	LastError    sql.NullString `db:"last_error"`
	Enabled      bool           `db:"enabled"`
	LockedBy     sql.NullString `db:"locked_by"`
	LockedAt     sql.NullTime   `db:"locked_at"`
	TimeoutMs    sql.NullInt64  `db:"timeout_ms"`
	Attempts     int            `db:"attempts"`
	MaxAttempts  int            `db:"max_attempts"`
	Priority     int            `db:"priority"`
	Status       CronStatus     `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// IsLockStale reports whether a running lock has outlived its timeout, per
// a stale lock is equivalent to no lock.
func (c Cron) IsLockStale(now time.Time) bool {
	if !c.LockedAt.Valid {
		return true
	}
	timeout := time.Duration(c.TimeoutMs.Int64) * time.Millisecond
	return now.After(c.LockedAt.Time.Add(timeout)) || now.Equal(c.LockedAt.Time.Add(timeout))
}
