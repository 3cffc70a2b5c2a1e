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

// SubscriptionStore manages Subscription rows, the orchestrator's unit of
// work: one cron row references exactly one subscription_id (source
// "subscription/<id>").
type SubscriptionStore struct {
	db querier
}

func NewSubscriptionStore(db querier) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) Create(ctx context.Context, sub domain.Subscription) (int64, error) {
	if sub.RequiresCredential() && !sub.CredentialID.Valid {
		return 0, apperror.New(apperror.UserInput, "mikan_season subscriptions require a credential_id")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription (subscriber_id, display_name, category, source_url, enabled, credential_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.SubscriberID, sub.DisplayName, sub.Category, sub.SourceURL, sub.Enabled, sub.CredentialID)
	if err != nil {
		return 0, fmt.Errorf("models: create subscription: %w", err)
	}
	return res.LastInsertId()
}

func (s *SubscriptionStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, display_name, category, source_url, enabled, credential_id, created_at, updated_at
		FROM subscription WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "subscription not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get subscription: %w", err)
	}
	return sub, nil
}

// GetByIDAnyTenant is used by the orchestrator, which reaches a
// subscription from a cron row rather than from an authenticated caller
// and so has no subscriber_id to filter by ahead of time.
func (s *SubscriptionStore) GetByIDAnyTenant(ctx context.Context, id int64) (*domain.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, display_name, category, source_url, enabled, credential_id, created_at, updated_at
		FROM subscription WHERE id = ?
	`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "subscription not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, display_name, category, source_url, enabled, credential_id, created_at, updated_at
		FROM subscription WHERE subscriber_id = ? ORDER BY id
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("models: list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *SubscriptionStore) SetEnabled(ctx context.Context, subscriberID, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subscription SET enabled = ? WHERE id = ? AND subscriber_id = ?`, enabled, id, subscriberID)
	if err != nil {
		return fmt.Errorf("models: set subscription enabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.DBNotFound, "subscription not found")
	}
	return nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, subscriberID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscription WHERE id = ? AND subscriber_id = ?`, id, subscriberID)
	if err != nil {
		return fmt.Errorf("models: delete subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.New(apperror.DBNotFound, "subscription not found")
	}
	return nil
}

func scanSubscription(row scanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := row.Scan(
		&sub.ID, &sub.SubscriberID, &sub.DisplayName, &sub.Category, &sub.SourceURL,
		&sub.Enabled, &sub.CredentialID, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}
