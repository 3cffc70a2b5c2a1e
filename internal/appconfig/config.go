// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package appconfig loads the process-wide configuration (host/port,
// database connection, OIDC verifier settings, logging) via viper, the way
// ANIWATCH_*-prefixed env overrides and fsnotify hot-reload.
package appconfig

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the top-level process configuration.
type Config struct {
	Host    string `mapstructure:"host" toml:"host"`
	Port    int    `mapstructure:"port" toml:"port"`
	BaseURL string `mapstructure:"baseUrl" toml:"baseUrl"`

	LogLevel string `mapstructure:"logLevel" toml:"logLevel"`
	LogPath  string `mapstructure:"logPath" toml:"logPath"`

	// SessionSecret seals Credential3rd passwords at rest; leaving it
	// empty stores them in plaintext.
	SessionSecret string `mapstructure:"sessionSecret" toml:"sessionSecret"`

	StorageRoot string `mapstructure:"storageRoot" toml:"storageRoot"`

	DatabaseEngine          string `mapstructure:"databaseEngine" toml:"databaseEngine"`
	DatabaseSQLitePath      string `mapstructure:"databaseSqlitePath" toml:"databaseSqlitePath"`
	DatabaseDSN             string `mapstructure:"databaseDsn" toml:"databaseDsn"`
	DatabaseHost            string `mapstructure:"databaseHost" toml:"databaseHost"`
	DatabasePort            int    `mapstructure:"databasePort" toml:"databasePort"`
	DatabaseUser            string `mapstructure:"databaseUser" toml:"databaseUser"`
	DatabasePassword        string `mapstructure:"databasePassword" toml:"databasePassword"`
	DatabaseName            string `mapstructure:"databaseName" toml:"databaseName"`
	DatabaseSSLMode         string `mapstructure:"databaseSslMode" toml:"databaseSslMode"`
	DatabaseConnectTimeout  int    `mapstructure:"databaseConnectTimeout" toml:"databaseConnectTimeout"`
	DatabaseMaxOpenConns    int    `mapstructure:"databaseMaxOpenConns" toml:"databaseMaxOpenConns"`
	DatabaseMaxIdleConns    int    `mapstructure:"databaseMaxIdleConns" toml:"databaseMaxIdleConns"`
	DatabaseConnMaxLifetime int    `mapstructure:"databaseConnMaxLifetime" toml:"databaseConnMaxLifetime"`

	MikanBaseURL string `mapstructure:"mikanBaseUrl" toml:"mikanBaseUrl"`

	OIDCIssuer          string   `mapstructure:"oidcIssuer" toml:"oidcIssuer"`
	OIDCAudience        string   `mapstructure:"oidcAudience" toml:"oidcAudience"`
	OIDCRequiredScopes  []string `mapstructure:"oidcRequiredScopes" toml:"oidcRequiredScopes"`
	OIDCEnabled         bool     `mapstructure:"oidcEnabled" toml:"oidcEnabled"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled" toml:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost" toml:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort" toml:"metricsPort"`
}

// defaults seeds viper before bind/read.
func defaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 7474)
	v.SetDefault("logLevel", "info")
	v.SetDefault("databaseEngine", "sqlite")
	v.SetDefault("databaseSqlitePath", "aniwatch.db")
	v.SetDefault("databaseMaxOpenConns", 25)
	v.SetDefault("databaseMaxIdleConns", 5)
	v.SetDefault("databaseConnMaxLifetime", 300)
	v.SetDefault("mikanBaseUrl", "https://mikanani.me")
	v.SetDefault("storageRoot", "data/storage")
	v.SetDefault("metricsEnabled", false)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 7475)
}

// Load reads configPath (a TOML file) with ANIWATCH_-prefixed environment
// overrides, e.g. ANIWATCH_DATABASEENGINE=postgres.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("ANIWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("appconfig: read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("appconfig: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Watcher re-runs Load when the config file changes (via fsnotify) and
// keeps the most recent successfully loaded Config, available through
// Current. It does not apply reloaded values to components that were
// built from the initial Config.
type Watcher struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewWatcher starts watching path for changes, applying Load on each event.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	w := &Watcher{cfg: initial, path: path}
	if path == "" {
		return w, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("appconfig: new watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("appconfig: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					log.Warn().Err(err).Msg("config reload failed, keeping previous values")
					continue
				}
				w.mu.Lock()
				w.cfg = reloaded
				w.mu.Unlock()
				log.Info().Str("path", path).Msg("config reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}
