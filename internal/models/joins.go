// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
)

// JoinStore manages the two many-to-many tables linking a Subscription to
// the Bangumi/Episode rows it has pulled in. Both links are ON CONFLICT DO
// NOTHING — rediscovering the same link on a later poll is not an error,
// idempotent on conflict.
type JoinStore struct {
	db querier
}

func NewJoinStore(db querier) *JoinStore {
	return &JoinStore{db: db}
}

func (s *JoinStore) LinkBangumi(ctx context.Context, subscriberID, subscriptionID, bangumiID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_bangumi (subscriber_id, subscription_id, bangumi_id)
		VALUES (?, ?, ?)
		ON CONFLICT (subscription_id, bangumi_id) DO NOTHING
	`, subscriberID, subscriptionID, bangumiID)
	if err != nil {
		return fmt.Errorf("models: link subscription bangumi: %w", err)
	}
	return nil
}

func (s *JoinStore) LinkEpisode(ctx context.Context, subscriberID, subscriptionID, episodeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_episode (subscriber_id, subscription_id, episode_id)
		VALUES (?, ?, ?)
		ON CONFLICT (subscription_id, episode_id) DO NOTHING
	`, subscriberID, subscriptionID, episodeID)
	if err != nil {
		return fmt.Errorf("models: link subscription episode: %w", err)
	}
	return nil
}

// ListEpisodeIDsForSubscription returns every episode the subscription has
// ever linked.
func (s *JoinStore) ListEpisodeIDsForSubscription(ctx context.Context, subscriptionID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT episode_id FROM subscription_episode WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("models: list subscription episodes: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("models: scan subscription episode: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
