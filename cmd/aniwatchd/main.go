// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aniwatch/aniwatch/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "aniwatchd",
		Short:   "Anime subscription and torrent orchestration service",
		Version: fmt.Sprintf("%s (%s) %s", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config file")

	rootCmd.AddCommand(runServeCommand(&configPath))
	rootCmd.AddCommand(runDBCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
