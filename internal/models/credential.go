// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/crypto"
	"github.com/aniwatch/aniwatch/internal/domain"
)

// CredentialStore manages Credential3rd rows (currently: Mikan account
// username/password plus a serialized cookie jar). With a cipher attached,
// passwords are sealed before they reach the database and opened on read.
type CredentialStore struct {
	db     querier
	cipher *crypto.CredentialCipher
}

func NewCredentialStore(db querier) *CredentialStore {
	return &CredentialStore{db: db}
}

// NewEncryptedCredentialStore stores passwords AES-GCM sealed under cipher.
func NewEncryptedCredentialStore(db querier, cipher *crypto.CredentialCipher) *CredentialStore {
	return &CredentialStore{db: db, cipher: cipher}
}

func (s *CredentialStore) Create(ctx context.Context, c domain.Credential3rd) (int64, error) {
	password := c.Password
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(password)
		if err != nil {
			return 0, fmt.Errorf("models: seal credential password: %w", err)
		}
		password = sealed
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_3rd (subscriber_id, kind, username, password, user_agent, cookies)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.SubscriberID, c.Kind, c.Username, password, c.UserAgent, c.Cookies)
	if err != nil {
		return 0, fmt.Errorf("models: create credential: %w", err)
	}
	return res.LastInsertId()
}

func (s *CredentialStore) Get(ctx context.Context, subscriberID, id int64) (*domain.Credential3rd, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subscriber_id, kind, username, password, user_agent, cookies, created_at, updated_at
		FROM credential_3rd WHERE id = ? AND subscriber_id = ?
	`, id, subscriberID)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Wrap(apperror.DBNotFound, "credential not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("models: get credential: %w", err)
	}
	if err := s.open(c); err != nil {
		return nil, err
	}
	return c, nil
}

// open unseals the password field when the store carries a cipher.
func (s *CredentialStore) open(c *domain.Credential3rd) error {
	if s.cipher == nil {
		return nil
	}
	plain, err := s.cipher.Open(c.Password)
	if err != nil {
		return fmt.Errorf("models: open credential password: %w", err)
	}
	c.Password = plain
	return nil
}

// UpdateCookies persists a refreshed cookie jar, the only field the Mikan
// client mutates after initial creation (see internal/mikan.Client.ExportCookies).
func (s *CredentialStore) UpdateCookies(ctx context.Context, id int64, cookiesJSON string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE credential_3rd SET cookies = ? WHERE id = ?`, cookiesJSON, id)
	if err != nil {
		return fmt.Errorf("models: update credential cookies: %w", err)
	}
	return nil
}

func (s *CredentialStore) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Credential3rd, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subscriber_id, kind, username, password, user_agent, cookies, created_at, updated_at
		FROM credential_3rd WHERE subscriber_id = ? ORDER BY id
	`, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("models: list credentials: %w", err)
	}
	defer rows.Close()

	var out []domain.Credential3rd
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan credential: %w", err)
		}
		if err := s.open(c); err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCredential(row scanner) (*domain.Credential3rd, error) {
	var c domain.Credential3rd
	if err := row.Scan(
		&c.ID, &c.SubscriberID, &c.Kind, &c.Username, &c.Password, &c.UserAgent, &c.Cookies,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
