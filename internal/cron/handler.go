// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cron

import (
	"context"
	"strings"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/domain"
)

// Handler runs one cron firing. Handlers must be idempotent on retry, per
// the worker may re-dispatch the same row after a
// crash or a reclaimed lock.
type Handler func(ctx context.Context, row domain.Cron) error

// Registry dispatches to a Handler by the discriminator prefix of
// cron.source (e.g. "subscription/42" dispatches to the "subscription"
// handler).
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a discriminator prefix to a Handler.
func (r *Registry) Register(discriminator string, h Handler) {
	r.handlers[discriminator] = h
}

// Dispatch resolves and invokes the handler for row.Source.
func (r *Registry) Dispatch(ctx context.Context, row domain.Cron) error {
	discriminator, _, _ := strings.Cut(row.Source, "/")
	h, ok := r.handlers[discriminator]
	if !ok {
		return apperror.New(apperror.Config, "no cron handler registered for source "+row.Source)
	}
	return h(ctx, row)
}
