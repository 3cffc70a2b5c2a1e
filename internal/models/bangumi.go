// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
)

// BangumiStore manages Bangumi rows. The orchestrator's extractor feed is
// idempotent on (subscriber_id, mikan_bangumi_id, mikan_fansub_id):
// Upsert is its single write path.
type BangumiStore struct {
	db querier
}

func NewBangumiStore(db querier) *BangumiStore {
	return &BangumiStore{db: db}
}

// Upsert inserts a new Bangumi row or refreshes the mutable fields of an
// existing one on (subscriber_id, mikan_bangumi_id, mikan_fansub_id)
// conflict, returning its id either way.
func (s *BangumiStore) Upsert(ctx context.Context, b domain.Bangumi) (int64, error) {
	if !b.MikanFansubID.Valid {
		var id int64
		err := s.db.QueryRowContext(ctx, `
			UPDATE bangumi SET display_name = ?, raw_name = ?, season = ?, season_raw = ?, fansub = ?,
			       rss_link = ?, poster_link = ?, homepage = ?, save_path = ?, extra = ?
			WHERE subscriber_id = ? AND mikan_bangumi_id = ? AND mikan_fansub_id IS NULL RETURNING id
		`, b.DisplayName, b.RawName, b.Season, b.SeasonRaw, b.Fansub, b.RSSLink, b.PosterLink, b.Homepage, b.SavePath, b.Extra,
			b.SubscriberID, b.MikanBangumiID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("models: upsert bangumi: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bangumi (subscriber_id, mikan_bangumi_id, mikan_fansub_id, display_name, raw_name,
		                      season, season_raw, fansub, rss_link, poster_link, homepage, save_path, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscriber_id, mikan_bangumi_id, mikan_fansub_id) DO UPDATE SET
			display_name = excluded.display_name,
			raw_name     = excluded.raw_name,
			season       = excluded.season,
			season_raw   = excluded.season_raw,
			fansub       = excluded.fansub,
			rss_link     = excluded.rss_link,
			poster_link  = excluded.poster_link,
			homepage     = excluded.homepage,
			save_path    = excluded.save_path,
			extra        = excluded.extra
	`, b.SubscriberID, b.MikanBangumiID, b.MikanFansubID, b.DisplayName, b.RawName,
		b.Season, b.SeasonRaw, b.Fansub, b.RSSLink, b.PosterLink, b.Homepage, b.SavePath, b.Extra)
	if err != nil {
		return 0, fmt.Errorf("models: upsert bangumi: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM bangumi WHERE subscriber_id = ? AND mikan_bangumi_id = ? AND mikan_fansub_id IS NOT DISTINCT FROM ?
	`, b.SubscriberID, b.MikanBangumiID, b.MikanFansubID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("models: upsert bangumi: reselect id: %w", err)
	}
	return id, nil
}

func (s *BangumiStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Bangumi, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, mikan_bangumi_id, mikan_fansub_id, display_name, raw_name, season, season_raw,
		       fansub, rss_link, poster_link, homepage, save_path, extra, created_at, updated_at
		FROM bangumi WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	b, err := scanBangumi(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "bangumi not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get bangumi: %w", err)
	}
	return b, nil
}

func (s *BangumiStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Bangumi, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, mikan_bangumi_id, mikan_fansub_id, display_name, raw_name, season, season_raw,
		       fansub, rss_link, poster_link, homepage, save_path, extra, created_at, updated_at
		FROM bangumi WHERE subscriber_id = ? ORDER BY id
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("models: list bangumi: %w", err)
	}
	defer rows.Close()

	var out []domain.Bangumi
	for rows.Next() {
		b, err := scanBangumi(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan bangumi: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBangumi(row scanner) (*domain.Bangumi, error) {
	var b domain.Bangumi
	if err := row.Scan(
		&b.ID, &b.SubscriberID, &b.MikanBangumiID, &b.MikanFansubID, &b.DisplayName, &b.RawName, &b.Season, &b.SeasonRaw,
		&b.Fansub, &b.RSSLink, &b.PosterLink, &b.Homepage, &b.SavePath, &b.Extra, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
