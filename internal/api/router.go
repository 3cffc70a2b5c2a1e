// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api mounts the thin inbound HTTP surface: the GraphQL endpoint,
// the subscriber-scoped poster routes, and a health probe. Everything
// substantive lives behind GraphQL; these routes exist because <img> tags
// and load balancers can't speak it.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	apimiddleware "github.com/aniwatch/aniwatch/internal/api/middleware"
	"github.com/aniwatch/aniwatch/internal/graphql"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
	"github.com/aniwatch/aniwatch/internal/storage"
)

// Dependencies holds everything the router mounts.
type Dependencies struct {
	GraphQL        *graphql.Server
	AuthMiddleware func(http.Handler) http.Handler
	Storage        *storage.Facade
	AllowedOrigins []string
}

// NewRouter assembles the chi router.
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(apimiddleware.RequestID)
	r.Use(apimiddleware.Logger(log.Logger))
	r.Use(apimiddleware.Recoverer)
	r.Use(apimiddleware.RealIP)
	r.Use(apimiddleware.SelectiveCompress(1024, 4, true))

	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}

	if deps.GraphQL != nil {
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware)
			r.Handle("/api/graphql", deps.GraphQL)
		})
	}

	// Poster binaries; tokens may arrive as ?access_token= since these are
	// loaded from <img> tags.
	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.BearerFromQuery("access_token"))
		r.Use(deps.AuthMiddleware)
		r.Get("/api/posters/*", posterHandler(deps.Storage))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}

// posterHandler serves cached Mikan posters out of the storage façade with
// range and Accept-negotiated image support, scoped to the authenticated
// subscriber's bucket.
func posterHandler(facade *storage.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := authn.FromContext(r.Context())
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		tail := chi.URLParam(r, "*")
		key := storage.SanitizeKey(tail)
		if key == "" {
			http.NotFound(w, r)
			return
		}

		objectPath := storage.BuildSubscriberObjectPath(id.SubscriberID, storage.CategoryImage, "mikan-poster", key)
		if err := facade.ServeOptimizedImage(r.Context(), w, r, objectPath); err != nil {
			log.Debug().Err(err).Str("path", objectPath).Msg("poster serve failed")
		}
	}
}
