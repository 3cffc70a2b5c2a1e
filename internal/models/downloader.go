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

// DownloaderStore manages Downloader rows, the connection profiles
// internal/torrent.Driver is constructed from (one Driver instance runs
// per row, started at process boot — see cmd/aniwatchd).
type DownloaderStore struct {
	db querier
}

func NewDownloaderStore(db querier) *DownloaderStore {
	return &DownloaderStore{db: db}
}

func (s *DownloaderStore) Create(ctx context.Context, d domain.Downloader) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloader (subscriber_id, kind, endpoint, username, password, save_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.SubscriberID, d.Kind, d.Endpoint, d.Username, d.Password, d.SavePath)
	if err != nil {
		return 0, fmt.Errorf("models: create downloader: %w", err)
	}
	return res.LastInsertId()
}

func (s *DownloaderStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Downloader, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, kind, endpoint, username, password, save_path, created_at, updated_at
		FROM downloader WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	d, err := scanDownloader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "downloader not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get downloader: %w", err)
	}
	return d, nil
}

// ListAll is used at process boot to start one internal/torrent.Driver per
// row, across every subscriber.
func (s *DownloaderStore) ListAll(ctx context.Context) ([]domain.Downloader, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, kind, endpoint, username, password, save_path, created_at, updated_at
		FROM downloader ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("models: list downloaders: %w", err)
	}
	defer rows.Close()

	var out []domain.Downloader
	for rows.Next() {
		d, err := scanDownloader(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan downloader: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *DownloaderStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Downloader, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, kind, endpoint, username, password, save_path, created_at, updated_at
		FROM downloader WHERE subscriber_id = ? ORDER BY id
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("models: list downloaders: %w", err)
	}
	defer rows.Close()

	var out []domain.Downloader
	for rows.Next() {
		d, err := scanDownloader(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan downloader: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDownloader(row scanner) (*domain.Downloader, error) {
	var d domain.Downloader
	if err := row.Scan(
		&d.ID, &d.SubscriberID, &d.Kind, &d.Endpoint, &d.Username, &d.Password, &d.SavePath, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
