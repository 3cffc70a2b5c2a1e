// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aniwatch/aniwatch/internal/api"
	"github.com/aniwatch/aniwatch/internal/appconfig"
	"github.com/aniwatch/aniwatch/internal/cron"
	"github.com/aniwatch/aniwatch/internal/cron/pgsql"
	"github.com/aniwatch/aniwatch/internal/crypto"
	"github.com/aniwatch/aniwatch/internal/database"
	"github.com/aniwatch/aniwatch/internal/fetch"
	"github.com/aniwatch/aniwatch/internal/graphql"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
	"github.com/aniwatch/aniwatch/internal/graphql/tenancy"
	"github.com/aniwatch/aniwatch/internal/metrics"
	"github.com/aniwatch/aniwatch/internal/models"
	"github.com/aniwatch/aniwatch/internal/orchestrator"
	"github.com/aniwatch/aniwatch/internal/storage"
	"github.com/aniwatch/aniwatch/internal/storage/backend"
	"github.com/aniwatch/aniwatch/internal/torrent"
)

func runServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the aniwatch daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := appconfig.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, *configPath)
		},
	}
}

func setupLogging(cfg *appconfig.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPath != "" {
		log.Logger = log.Output(&lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
}

// poolDrivers adapts *torrent.Pool to the orchestrator's DriverProvider.
type poolDrivers struct {
	pool *torrent.Pool
}

func (p poolDrivers) DriverFor(downloaderID int64) (orchestrator.TorrentAdder, bool) {
	d, ok := p.pool.Driver(downloaderID)
	if !ok {
		return nil, false
	}
	return d, true
}

func serve(ctx context.Context, cfg *appconfig.Config, configPath string) error {
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := appconfig.NewWatcher(configPath, cfg); err != nil {
		log.Warn().Err(err).Msg("config hot-reload unavailable")
	}

	db, err := database.OpenFromConfig(cfg, cfg.DatabaseSQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if pgdb := db.PostgresWriter(); pgdb != nil {
		if err := pgsql.Apply(ctx, pgdb); err != nil {
			return err
		}
	}

	// Stores.
	subscribers := models.NewSubscriberStore(db)
	credentials := models.NewCredentialStore(db)
	if cfg.SessionSecret != "" {
		cipher, err := crypto.NewCredentialCipher(cfg.SessionSecret)
		if err != nil {
			return err
		}
		credentials = models.NewEncryptedCredentialStore(db, cipher)
	} else {
		log.Warn().Msg("sessionSecret not set; credential passwords stored in plaintext")
	}
	stores := orchestrator.Stores{
		Subscriptions: models.NewSubscriptionStore(db),
		Credentials:   credentials,
		Bangumi:       models.NewBangumiStore(db),
		Episodes:      models.NewEpisodeStore(db),
		Joins:         models.NewJoinStore(db),
		Downloads:     models.NewDownloadStore(db),
		Downloaders:   models.NewDownloaderStore(db),
	}

	// Outbound HTTP stack.
	httpRoot, err := fetch.New(&fetch.Config{
		Timeout: 30 * time.Second,
		Retry:   &fetch.RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second},
		RateLimit: &fetch.RateLimitConfig{
			MaxTokens: 4, InitialTokens: 4, RefillTokens: 1, RefillInterval: time.Second,
		},
		Cache: &fetch.CacheConfig{MaxEntries: 512},
	})
	if err != nil {
		return err
	}

	// Storage façade + torrent drivers.
	facade := storage.NewFacade(backend.NewFilesystem(cfg.StorageRoot))
	pool := torrent.NewPool()
	defer pool.Stop()
	downloaders, err := stores.Downloaders.ListAll(ctx)
	if err != nil {
		return err
	}
	pool.StartAll(ctx, downloaders, 0)

	// Cron scheduling + orchestration.
	registry := cron.NewRegistry()
	orch := orchestrator.New(httpRoot, cfg.MikanBaseURL, facade, stores, poolDrivers{pool: pool})
	orch.Register(registry)
	cronStore := cron.NewStore(db)
	workerID := "aniwatchd-" + uuid.NewString()[:8]

	group, ctx := errgroup.WithContext(ctx)

	if dsn := database.PostgresDSNFromConfig(cfg); dsn != "" && db.PostgresWriter() != nil {
		listenConn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("cron listen connection: %w", err)
		}
		worker := cron.NewWorker(workerID, listenConn, cronStore, registry)
		group.Go(func() error { return worker.Run(ctx) })
	} else {
		poller := cron.NewPoller(workerID, cronStore, registry, 0)
		group.Go(func() error { return poller.Run(ctx) })
	}

	// GraphQL layer.
	guard, err := tenancy.NewGuard()
	if err != nil {
		return err
	}
	schema, err := graphql.LoadSchema()
	if err != nil {
		return err
	}
	executor := graphql.NewExecutor(schema, graphql.NewResolver(db, guard))

	var authMiddleware func(http.Handler) http.Handler
	if cfg.OIDCEnabled {
		verifier, err := authn.NewOIDCVerifier(ctx, authn.Config{
			Issuer:         cfg.OIDCIssuer,
			Audience:       cfg.OIDCAudience,
			RequiredScopes: cfg.OIDCRequiredScopes,
		})
		if err != nil {
			return err
		}
		authMiddleware = authn.Middleware(verifier, subscribers)
	} else {
		// Single-tenant mode: every request runs as the seed subscriber.
		seed, err := subscribers.GetOrCreateByDisplayName(ctx, "admin")
		if err != nil {
			return err
		}
		log.Info().Int64("subscriberID", seed.ID).Msg("oidc disabled, running single-tenant as seed subscriber")
		authMiddleware = seedIdentityMiddleware(seed.ID, seed.DisplayName)
	}

	router := api.NewRouter(&api.Dependencies{
		GraphQL:        graphql.NewServer(executor),
		AuthMiddleware: authMiddleware,
		Storage:        facade,
		AllowedOrigins: allowedOrigins(cfg),
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	group.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// Metrics endpoint, off the main listener.
	if cfg.MetricsEnabled {
		manager := metrics.NewManager(pool)
		metricsServer := metrics.NewMetricsServer(manager, cfg.MetricsHost, cfg.MetricsPort, "")
		group.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			return metricsServer.Stop()
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func seedIdentityMiddleware(subscriberID int64, displayName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authn.WithIdentity(r.Context(), &authn.Identity{
				SubscriberID: subscriberID,
				Subject:      "seed",
				DisplayName:  displayName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func allowedOrigins(cfg *appconfig.Config) []string {
	if cfg.BaseURL == "" {
		return nil
	}
	return []string{cfg.BaseURL}
}
