// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/aniwatch/aniwatch/internal/appconfig"
	"github.com/aniwatch/aniwatch/internal/cron/pgsql"
	"github.com/aniwatch/aniwatch/internal/database"
)

func runDBCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(runDBMigrateCommand(configPath))
	cmd.AddCommand(runDBResetCommand(configPath))
	return cmd
}

func runDBMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and the cron trigger/function DDL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := appconfig.Load(*configPath)
			if err != nil {
				return err
			}

			// Opening the database applies the embedded migration set.
			db, err := database.OpenFromConfig(cfg, cfg.DatabaseSQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			if pgdb := db.PostgresWriter(); pgdb != nil {
				if err := pgsql.Apply(cmd.Context(), pgdb); err != nil {
					return err
				}
				cmd.Println("Postgres migrations and cron DDL applied.")
				return nil
			}
			cmd.Println("SQLite migrations applied.")
			return nil
		},
	}
}

func runDBResetCommand(configPath *string) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the SQLite database file (sqlite engine only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to reset without --confirm")
			}

			cfg, err := appconfig.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseEngine != "sqlite" && cfg.DatabaseEngine != "" {
				return errors.New("db reset only supports the sqlite engine; drop the Postgres database directly")
			}

			for _, suffix := range []string{"", "-wal", "-shm"} {
				path := cfg.DatabaseSQLitePath + suffix
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
			cmd.Printf("Removed %s\n", cfg.DatabaseSQLitePath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Actually delete the database file")
	return cmd
}
