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

// EpisodeStore manages Episode rows, idempotent on (subscriber_id,
// mikan_episode_id).
type EpisodeStore struct {
	db querier
}

func NewEpisodeStore(db querier) *EpisodeStore {
	return &EpisodeStore{db: db}
}

func (s *EpisodeStore) Upsert(ctx context.Context, e domain.Episode) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episode (mikan_episode_id, bangumi_id, subscriber_id, raw_name, display_name, season,
		                      episode_index, fansub, resolution, subtitle, source, homepage, poster_link, save_path, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscriber_id, mikan_episode_id) DO UPDATE SET
			bangumi_id    = excluded.bangumi_id,
			raw_name      = excluded.raw_name,
			display_name  = excluded.display_name,
			season        = excluded.season,
			episode_index = excluded.episode_index,
			fansub        = excluded.fansub,
			resolution    = excluded.resolution,
			subtitle      = excluded.subtitle,
			source        = excluded.source,
			homepage      = excluded.homepage,
			poster_link   = excluded.poster_link,
			save_path     = excluded.save_path,
			extra         = excluded.extra
	`, e.MikanEpisodeID, e.BangumiID, e.SubscriberID, e.RawName, e.DisplayName, e.Season,
		e.EpisodeIndex, e.Fansub, e.Resolution, e.Subtitle, e.Source, e.Homepage, e.PosterLink, e.SavePath, e.Extra)
	if err != nil {
		return 0, fmt.Errorf("models: upsert episode: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT id FROM episode WHERE subscriber_id = ? AND mikan_episode_id = ?`, e.SubscriberID, e.MikanEpisodeID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("models: upsert episode: reselect id: %w", err)
	}
	return id, nil
}

// SetDownloadID records which Download row is fulfilling this episode, set
// once the orchestrator has issued the torrent add command.
func (s *EpisodeStore) SetDownloadID(ctx context.Context, id, downloadID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE episode SET download_id = ? WHERE id = ?`, downloadID, id)
	if err != nil {
		return fmt.Errorf("models: set episode download id: %w", err)
	}
	return nil
}

func (s *EpisodeStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mikan_episode_id, bangumi_id, subscriber_id, raw_name, display_name, season, episode_index,
		       fansub, resolution, subtitle, source, homepage, poster_link, download_id, save_path, extra, created_at, updated_at
		FROM episode WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	e, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "episode not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get episode: %w", err)
	}
	return e, nil
}

func (s *EpisodeStore) ListByBangumi(ctx context.Context, subscriberID, bangumiID int64) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mikan_episode_id, bangumi_id, subscriber_id, raw_name, display_name, season, episode_index,
		       fansub, resolution, subtitle, source, homepage, poster_link, download_id, save_path, extra, created_at, updated_at
		FROM episode WHERE subscriber_id = ? AND bangumi_id = ? ORDER BY episode_index
	`, subscriberID, bangumiID)
	if err != nil {
		return nil, fmt.Errorf("models: list episodes: %w", err)
	}
	defer rows.Close()

	var out []domain.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan episode: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEpisode(row scanner) (*domain.Episode, error) {
	var e domain.Episode
	if err := row.Scan(
		&e.ID, &e.MikanEpisodeID, &e.BangumiID, &e.SubscriberID, &e.RawName, &e.DisplayName, &e.Season, &e.EpisodeIndex,
		&e.Fansub, &e.Resolution, &e.Subtitle, &e.Source, &e.Homepage, &e.PosterLink, &e.DownloadID, &e.SavePath, &e.Extra,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
