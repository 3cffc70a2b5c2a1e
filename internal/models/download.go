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

// DownloadStore manages Download rows. A Download's status column is
// advisory bookkeeping — the authoritative transfer state lives in the
// torrent driver's replica.
type DownloadStore struct {
	db querier
}

func NewDownloadStore(db querier) *DownloadStore {
	return &DownloadStore{db: db}
}

func (s *DownloadStore) Create(ctx context.Context, d domain.Download) (int64, error) {
	if d.Status == "" {
		d.Status = domain.DownloadPending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO download (subscriber_id, downloader_id, episode_id, raw_name, status, curr_size, all_size, mime, url, homepage, save_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.SubscriberID, d.DownloaderID, d.EpisodeID, d.RawName, d.Status, d.CurrSize, d.AllSize, d.MIME, d.URL, d.Homepage, d.SavePath)
	if err != nil {
		return 0, fmt.Errorf("models: create download: %w", err)
	}
	return res.LastInsertId()
}

func (s *DownloadStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, downloader_id, episode_id, raw_name, status, curr_size, all_size, mime, url, homepage, save_path, created_at, updated_at
		FROM download WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "download not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get download: %w", err)
	}
	return d, nil
}

// GetByEpisode reports the existing download for an episode, if any; the
// orchestrator uses it to keep download creation idempotent across cron
// retries.
func (s *DownloadStore) GetByEpisode(ctx context.Context, subscriberID, episodeID int64) (*domain.Download, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, downloader_id, episode_id, raw_name, status, curr_size, all_size, mime, url, homepage, save_path, created_at, updated_at
		FROM download WHERE episode_id = ? AND subscriber_id = ? ORDER BY id LIMIT 1
	`, episodeID, subscriberID)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "download not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get download by episode: %w", err)
	}
	return d, nil
}

func (s *DownloadStore) SetStatus(ctx context.Context, id int64, status domain.DownloadStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE download SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("models: set download status: %w", err)
	}
	return nil
}

func (s *DownloadStore) SetProgress(ctx context.Context, id, currSize, allSize int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE download SET curr_size = ?, all_size = ? WHERE id = ?`, currSize, allSize, id)
	if err != nil {
		return fmt.Errorf("models: set download progress: %w", err)
	}
	return nil
}

func (s *DownloadStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, downloader_id, episode_id, raw_name, status, curr_size, all_size, mime, url, homepage, save_path, created_at, updated_at
		FROM download WHERE subscriber_id = ? ORDER BY id
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("models: list downloads: %w", err)
	}
	defer rows.Close()

	var out []domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan download: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDownload(row scanner) (*domain.Download, error) {
	var d domain.Download
	if err := row.Scan(
		&d.ID, &d.SubscriberID, &d.DownloaderID, &d.EpisodeID, &d.RawName, &d.Status,
		&d.CurrSize, &d.AllSize, &d.MIME, &d.URL, &d.Homepage, &d.SavePath,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
