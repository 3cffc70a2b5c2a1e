// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package authn resolves a bearer token to a subscriber identity. Tokens
// are verified against the configured OIDC issuer; the first time a subject
// claim is seen, a Subscriber row is bootstrapped for it.
package authn

import (
	"context"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// Identity is the authenticated principal attached to a request context.
type Identity struct {
	SubscriberID int64
	Subject      string
	DisplayName  string
}

type ctxKey struct{}

// WithIdentity returns a child context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request identity, or an AuthZ error when the
// request was never authenticated. Resolvers call this unconditionally —
// there is no anonymous read path.
func FromContext(ctx context.Context) (*Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	if !ok || id == nil {
		return nil, apperror.New(apperror.AuthZ, "missing subscriber identity")
	}
	return id, nil
}
