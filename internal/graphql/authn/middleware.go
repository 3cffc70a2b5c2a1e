// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/domain"
)

// SubscriberBootstrapper creates-or-loads the Subscriber row for a verified
// subject. Implemented by models.SubscriberStore.
type SubscriberBootstrapper interface {
	GetOrCreateByDisplayName(ctx context.Context, displayName string) (*domain.Subscriber, error)
}

// Middleware attaches a verified Identity to the request context. A request
// without a bearer token, or with one that fails verification, continues
// without an identity — the GraphQL guards reject it field by field, so
// the error surfaces as a GraphQL error tagged auth rather than a bare 401.
func Middleware(verifier Verifier, subscribers SubscriberBootstrapper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("bearer token rejected")
				next.ServeHTTP(w, r)
				return
			}

			// Auto-create a subscriber on first sight of a subject claim.
			name := claims.Name
			if name == "" {
				name = claims.Subject
			}
			sub, err := subscribers.GetOrCreateByDisplayName(r.Context(), name)
			if err != nil {
				log.Error().Err(err).Str("subject", claims.Subject).Msg("subscriber bootstrap failed")
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), &Identity{
				SubscriberID: sub.ID,
				Subject:      claims.Subject,
				DisplayName:  sub.DisplayName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
