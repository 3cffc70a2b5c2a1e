// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tenancy enforces per-subscriber row-level isolation for the
// GraphQL layer: an entity-level guard requiring an authenticated identity,
// a field-level guard on supplied subscriber ids, a filter-condition
// injector for where clauses, and a default-value injector for creates.
// The ownership decision itself runs through a casbin ABAC policy
// (sub owns obj iff the subscriber ids match) so the rule lives in one
// auditable place rather than scattered through resolvers.
package tenancy

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// resource is the object side of an ownership check.
type resource struct {
	SubscriberID int64
}

// Guard is the tenant-isolation enforcement point shared by every
// subscriber-scoped resolver.
type Guard struct {
	enforcer *casbin.SyncedEnforcer
}

// NewGuard builds the guard from the embedded ownership model and policy.
func NewGuard() (*Guard, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, apperror.Wrap(apperror.Config, "tenancy: casbin model", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, apperror.Wrap(apperror.Config, "tenancy: casbin enforcer", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, apperror.Wrap(apperror.Config, "tenancy: casbin policy", err)
	}
	return &Guard{enforcer: enforcer}, nil
}

func loadEmbeddedPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, ok := strings.CutPrefix(line, "p,")
		if !ok {
			return fmt.Errorf("unsupported policy line %q", line)
		}
		if _, err := e.AddPolicy(strings.TrimSpace(rule)); err != nil {
			return err
		}
	}
	return nil
}

// RequireIdentity is the entity-level guard: every field resolver on a
// subscriber-scoped entity calls it first.
func (g *Guard) RequireIdentity(ctx context.Context) (*authn.Identity, error) {
	return authn.FromContext(ctx)
}

// CheckOwner rejects unless the authenticated subscriber owns a row whose
// subscriber_id is ownerID.
func (g *Guard) CheckOwner(id *authn.Identity, ownerID int64) error {
	ok, err := g.enforcer.Enforce(id, resource{SubscriberID: ownerID})
	if err != nil {
		return apperror.Wrap(apperror.AuthZ, "tenancy: enforce", err)
	}
	if !ok {
		return apperror.New(apperror.AuthZ, "forbidden")
	}
	return nil
}

// ValidateSuppliedSubscriberID is both the field-level guard and the
// default-value injector for create/update mutations: a nil supplied value
// is filled in from auth; a non-nil value must equal the authenticated
// subscriber's id.
func (g *Guard) ValidateSuppliedSubscriberID(id *authn.Identity, supplied *int64) (int64, error) {
	if supplied == nil {
		return id.SubscriberID, nil
	}
	if err := g.CheckOwner(id, *supplied); err != nil {
		return 0, err
	}
	return *supplied, nil
}

// ScopeWhere is the filter-condition injector: whatever where clause a
// query compiled, the result is always ANDed with subscriber_id = auth.
// A caller-supplied subscriber_id reference has already been validated by
// ValidateSuppliedSubscriberID, so appending the conjunct is safe (and a
// matching value makes it a no-op).
func (g *Guard) ScopeWhere(id *authn.Identity, where squirrel.Sqlizer) squirrel.Sqlizer {
	scope := squirrel.Eq{"subscriber_id": id.SubscriberID}
	if where == nil {
		return scope
	}
	return squirrel.And{where, scope}
}
