// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pgsql carries the Postgres-only half of the distributed
// scheduler: the mutation trigger, the lock-cleanup function, and the
// due-scan function, layered on top of the `cron` table created by
// internal/database/postgres_migrations/001_init.sql. These are plain
// idempotent DDL (CREATE OR REPLACE FUNCTION, DROP TRIGGER IF EXISTS then
// CREATE TRIGGER) rather than tracked migrations, since they have no
// schema-version dependency beyond the cron table's existence.
package pgsql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
)

//go:embed *.sql
var migrationsFS embed.FS

// Apply executes the cron-specific trigger/function DDL against db. Safe
// to call on every process start; every statement is idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := migrationsFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("cron/pgsql: read embedded migrations: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, filename := range files {
		content, err := migrationsFS.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("cron/pgsql: read %s: %w", filename, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("cron/pgsql: apply %s: %w", filename, err)
		}
	}
	return nil
}
