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

// SubscriberStore is the tenant-root table: every other store's rows carry
// a subscriber_id and are reached only through it.
type SubscriberStore struct {
	db querier
}

func NewSubscriberStore(db querier) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// GetOrCreateByDisplayName implements the authn auto-bootstrap path: the
// first time a bearer token's subject is seen, a Subscriber row is
// created for it, keyed on the externally-verified display name (the OIDC
// subject or a claim derived from it).
func (s *SubscriberStore) GetOrCreateByDisplayName(ctx context.Context, displayName string) (*domain.Subscriber, error) {
	if existing, err := s.GetByDisplayName(ctx, displayName); err == nil {
		return existing, nil
	} else if !apperror.Is(err, apperror.DBNotFound) {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO subscriber (display_name) VALUES (?)`, displayName)
	if err != nil {
		return nil, fmt.Errorf("models: create subscriber: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("models: create subscriber: last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SubscriberStore) GetByDisplayName(ctx context.Context, displayName string) (*domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, display_name, created_at, updated_at FROM subscriber WHERE display_name = ?`, displayName)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "subscriber not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get subscriber by display name: %w", err)
	}
	return sub, nil
}

func (s *SubscriberStore) Get(ctx context.Context, id int64) (*domain.Subscriber, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, display_name, created_at, updated_at FROM subscriber WHERE id = ?`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "subscriber not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get subscriber: %w", err)
	}
	return sub, nil
}

func scanSubscriber(row scanner) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	if err := row.Scan(&sub.ID, &sub.DisplayName, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}
