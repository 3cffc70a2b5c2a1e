// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsCreateCoreTables(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "aniwatch-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	db, err := New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err, "failed to initialize database")
	defer db.Close()

	tables := []string{
		"subscriber", "credential_3rd", "subscription", "bangumi", "episode",
		"subscription_bangumi", "subscription_episode", "download", "downloader",
		"cron", "migrations",
	}

	for _, table := range tables {
		var count int
		err := db.conn.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?
		`, table).Scan(&count)
		require.NoError(t, err, "check table existence for %s", table)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestBangumiUniqueConstraint(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "aniwatch-test-unique-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	db, err := New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.conn.Exec(`INSERT INTO subscriber (display_name) VALUES ('alice')`)
	require.NoError(t, err)

	_, err = db.conn.Exec(`
		INSERT INTO bangumi (subscriber_id, mikan_bangumi_id, mikan_fansub_id, display_name, raw_name, season)
		VALUES (1, '3288', '370', 'Example', 'Example Raw', 1)
	`)
	require.NoError(t, err)

	_, err = db.conn.Exec(`
		INSERT INTO bangumi (subscriber_id, mikan_bangumi_id, mikan_fansub_id, display_name, raw_name, season)
		VALUES (1, '3288', '370', 'Example Dup', 'Example Raw Dup', 1)
	`)
	assert.Error(t, err, "duplicate (subscriber_id, mikan_bangumi_id, mikan_fansub_id) should violate unique constraint")
}

func TestUpdatedAtTriggerBumpsOnUpdate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "aniwatch-test-trigger-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	db, err := New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.conn.Exec(`INSERT INTO subscriber (display_name) VALUES ('bob')`)
	require.NoError(t, err)

	var before string
	require.NoError(t, db.conn.QueryRow(`SELECT updated_at FROM subscriber WHERE id = 1`).Scan(&before))

	_, err = db.conn.Exec(`UPDATE subscriber SET display_name = 'bobby' WHERE id = 1`)
	require.NoError(t, err)

	var after string
	require.NoError(t, db.conn.QueryRow(`SELECT updated_at FROM subscriber WHERE id = 1`).Scan(&after))

	assert.GreaterOrEqual(t, after, before, "updated_at should not move backwards")
}

func TestMigrationIdempotency(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "aniwatch-test-idempotent-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath)
	require.NoError(t, err, "failed to initialize database first time")

	var count1 int
	err = db1.conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count1)
	require.NoError(t, err, "failed to count migrations")
	db1.Close()

	db2, err := New(dbPath)
	require.NoError(t, err, "failed to initialize database second time")
	defer db2.Close()

	var count2 int
	err = db2.conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count2)
	require.NoError(t, err, "failed to count migrations")

	assert.Equal(t, count1, count2, "migration count should be stable across reinitialization")
}
