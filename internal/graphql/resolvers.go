// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package graphql exposes every persisted entity as a queryable/mutable
// GraphQL object. The schema is assembled by hand from schema.graphql and
// executed by a generic, descriptor-driven executor (exec.go); resolvers
// compile where documents to SQL through squirrel plus the jsonb filter
// sub-language, with tenant isolation injected unconditionally.
package graphql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/internal/database"
	"github.com/aniwatch/aniwatch/internal/graphql/authn"
	"github.com/aniwatch/aniwatch/internal/graphql/jsonbfilter"
	"github.com/aniwatch/aniwatch/internal/graphql/tenancy"
)

const defaultListLimit = 500

// Resolver executes entity queries and mutations against the database.
type Resolver struct {
	db    *database.DB
	guard *tenancy.Guard
}

func NewResolver(db *database.DB, guard *tenancy.Guard) *Resolver {
	return &Resolver{db: db, guard: guard}
}

// me resolves the authenticated subscriber's own row.
func (r *Resolver) me(ctx context.Context) (map[string]any, error) {
	id, err := r.guard.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	def := entities["subscriber"]
	rows, err := r.selectRowsOrdered(ctx, def, squirrel.Eq{"id": id.SubscriberID}, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.New(apperror.DBNotFound, "subscriber row missing")
	}
	return rows[0], nil
}

// list resolves a top-level entity list field with where/orderBy/pagination.
func (r *Resolver) list(ctx context.Context, def entityDef, args map[string]any) ([]map[string]any, error) {
	id, err := r.guard.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	where, err := r.compileWhere(id, def, args["where"])
	if err != nil {
		return nil, err
	}
	if def.scoped {
		where = r.guard.ScopeWhere(id, where)
	}

	orderBy, err := compileOrderBy(def, args["orderBy"])
	if err != nil {
		return nil, err
	}

	limit := intArg(args, "limit", defaultListLimit)
	offset := intArg(args, "offset", 0)

	return r.selectRowsOrdered(ctx, def, where, orderBy, limit, offset)
}

func (r *Resolver) selectRowsOrdered(ctx context.Context, def entityDef, where squirrel.Sqlizer, orderBy []string, limit, offset int64) ([]map[string]any, error) {
	q := squirrel.Select(def.columns()...).From(def.table)
	if where != nil {
		q = q.Where(where)
	}
	if len(orderBy) > 0 {
		q = q.OrderBy(orderBy...)
	} else {
		q = q.OrderBy("id ASC")
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sqlStr, sqlArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("graphql: build select: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, sqlArgs...)
	if err != nil {
		return nil, fmt.Errorf("graphql: select %s: %w", def.table, err)
	}
	return scanEntityRows(def, rows)
}

// create inserts one row and returns it.
func (r *Resolver) create(ctx context.Context, def entityDef, data map[string]any) (map[string]any, error) {
	rows, err := r.createBatch(ctx, def, []map[string]any{data})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// createBatch inserts rows one statement at a time inside a single
// transaction, returning the created rows in input order.
func (r *Resolver) createBatch(ctx context.Context, def entityDef, batch []map[string]any) ([]map[string]any, error) {
	id, err := r.guard.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("graphql: begin: %w", err)
	}
	defer tx.Rollback()

	out := make([]map[string]any, 0, len(batch))
	for _, data := range batch {
		row, err := r.insertOne(ctx, tx, def, id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graphql: commit: %w", err)
	}
	return out, nil
}

func (r *Resolver) insertOne(ctx context.Context, tx *database.Tx, def entityDef, id *authn.Identity, data map[string]any) (map[string]any, error) {
	cols := []string{}
	vals := []any{}

	if def.scoped {
		sid, err := r.guard.ValidateSuppliedSubscriberID(id, suppliedSubscriberID(data))
		if err != nil {
			return nil, err
		}
		cols = append(cols, "subscriber_id")
		vals = append(vals, sid)
	}

	for _, name := range sortedKeys(data) {
		if name == "subscriberId" {
			continue
		}
		f, ok := def.field(name)
		if !ok {
			return nil, apperror.New(apperror.UserInput, "unknown field "+name)
		}
		v, err := sqlValue(f, data[name])
		if err != nil {
			return nil, err
		}
		cols = append(cols, f.column)
		vals = append(vals, v)
	}

	q := squirrel.Insert(def.table).Columns(cols...).Values(vals...).Suffix("RETURNING id")
	sqlStr, sqlArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("graphql: build insert: %w", err)
	}

	var rowID int64
	if err := tx.QueryRowContext(ctx, sqlStr, sqlArgs...).Scan(&rowID); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Wrap(apperror.DBConstraint, "duplicate "+def.name, err)
		}
		return nil, fmt.Errorf("graphql: insert %s: %w", def.table, err)
	}

	return r.selectOneTx(ctx, tx, def, rowID)
}

func (r *Resolver) selectOneTx(ctx context.Context, tx *database.Tx, def entityDef, rowID int64) (map[string]any, error) {
	sqlStr, sqlArgs, err := squirrel.Select(def.columns()...).From(def.table).Where(squirrel.Eq{"id": rowID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("graphql: build select: %w", err)
	}
	rows, err := tx.QueryContext(ctx, sqlStr, sqlArgs...)
	if err != nil {
		return nil, fmt.Errorf("graphql: reselect %s: %w", def.table, err)
	}
	scanned, err := scanEntityRows(def, rows)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, apperror.New(apperror.DBNotFound, def.name+" row vanished after insert")
	}
	return scanned[0], nil
}

// update applies data to every row matching where (always tenant-scoped)
// and returns the updated rows.
func (r *Resolver) update(ctx context.Context, def entityDef, data map[string]any, whereDoc any) ([]map[string]any, error) {
	id, err := r.guard.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	where, err := r.compileWhere(id, def, whereDoc)
	if err != nil {
		return nil, err
	}
	if def.scoped {
		where = r.guard.ScopeWhere(id, where)
	}

	setMap := map[string]any{}
	for _, name := range sortedKeys(data) {
		if name == "subscriberId" {
			// Field-level guard: subscriber_id is never reassignable.
			return nil, apperror.New(apperror.AuthZ, "forbidden")
		}
		f, ok := def.field(name)
		if !ok {
			return nil, apperror.New(apperror.UserInput, "unknown field "+name)
		}
		v, err := sqlValue(f, data[name])
		if err != nil {
			return nil, err
		}
		setMap[f.column] = v
	}
	if len(setMap) == 0 {
		return nil, apperror.New(apperror.UserInput, "empty update")
	}

	// Pin the matching rows by id: the update may change columns that where
	// filters on, and the updated rows are re-read by id afterwards.
	matched, err := r.selectRowsOrdered(ctx, def, where, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return matched, nil
	}
	ids := make([]any, len(matched))
	for i, row := range matched {
		ids[i] = row["id"]
	}
	byID := squirrel.Eq{"id": ids}

	sqlStr, sqlArgs, err := squirrel.Update(def.table).SetMap(setMap).Where(byID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("graphql: build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, sqlStr, sqlArgs...); err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Wrap(apperror.DBConstraint, "duplicate "+def.name, err)
		}
		return nil, fmt.Errorf("graphql: update %s: %w", def.table, err)
	}

	return r.selectRowsOrdered(ctx, def, byID, nil, 0, 0)
}

// delete removes every row matching where (always tenant-scoped) and
// returns the affected count.
func (r *Resolver) delete(ctx context.Context, def entityDef, whereDoc any) (int64, error) {
	id, err := r.guard.RequireIdentity(ctx)
	if err != nil {
		return 0, err
	}

	where, err := r.compileWhere(id, def, whereDoc)
	if err != nil {
		return 0, err
	}
	if def.scoped {
		where = r.guard.ScopeWhere(id, where)
	}

	sqlStr, sqlArgs, err := squirrel.Delete(def.table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("graphql: build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, sqlStr, sqlArgs...)
	if err != nil {
		return 0, fmt.Errorf("graphql: delete %s: %w", def.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("graphql: delete %s: rows affected: %w", def.table, err)
	}
	return n, nil
}

// compileWhere turns a where document into a SQL predicate. Keys are
// entity field names; scalar and list values compile to equality and
// membership; a document on a jsonb column is handed to the jsonb filter
// compiler. A subscriberId key must match the authenticated subscriber.
func (r *Resolver) compileWhere(id *authn.Identity, def entityDef, doc any) (squirrel.Sqlizer, error) {
	if doc == nil {
		return nil, nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, apperror.New(apperror.UserInput, "where must be an object")
	}

	var conds squirrel.And
	for _, name := range sortedKeys(m) {
		val := m[name]
		f, ok := def.field(name)
		if !ok {
			return nil, apperror.New(apperror.UserInput, "unknown filter field "+name)
		}

		if name == "subscriberId" && def.scoped {
			want, ok := asInt64(val)
			if !ok || want != id.SubscriberID {
				return nil, apperror.New(apperror.AuthZ, "forbidden")
			}
			continue // ScopeWhere appends the conjunct
		}

		if f.kind == kindJSONB {
			sub, ok := val.(map[string]any)
			if !ok {
				return nil, apperror.New(apperror.UserInput, name+" filter must be an object")
			}
			raw, err := json.Marshal(sub)
			if err != nil {
				return nil, apperror.Wrap(apperror.UserInput, "encode "+name+" filter", err)
			}
			cond, _, err := jsonbfilter.Compile(f.column, raw)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
			continue
		}

		// squirrel.Eq compiles a list value to IN and a scalar to =.
		conds = append(conds, squirrel.Eq{f.column: val})
	}
	if len(conds) == 0 {
		return nil, nil
	}
	return conds, nil
}

func compileOrderBy(def entityDef, arg any) ([]string, error) {
	if arg == nil {
		return nil, nil
	}
	items, ok := arg.([]any)
	if !ok {
		return nil, apperror.New(apperror.UserInput, "orderBy must be a list")
	}
	var out []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, apperror.New(apperror.UserInput, "orderBy entries must be objects")
		}
		name, _ := m["field"].(string)
		f, ok := def.field(name)
		if !ok {
			return nil, apperror.New(apperror.UserInput, "unknown orderBy field "+name)
		}
		dir := "ASC"
		if desc, _ := m["desc"].(bool); desc {
			dir = "DESC"
		}
		out = append(out, f.column+" "+dir)
	}
	return out, nil
}

// sqlValue converts a GraphQL input value into a driver argument.
func sqlValue(f fieldDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.kind == kindJSONB {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, apperror.Wrap(apperror.UserInput, "encode "+f.column, err)
		}
		return string(raw), nil
	}
	return v, nil
}

func suppliedSubscriberID(data map[string]any) *int64 {
	v, ok := data["subscriberId"]
	if !ok || v == nil {
		return nil
	}
	if n, ok := asInt64(v); ok {
		return &n
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func intArg(args map[string]any, name string, fallback int64) int64 {
	if v, ok := args[name]; ok && v != nil {
		if n, ok := asInt64(v); ok {
			return n
		}
	}
	return fallback
}

// isUniqueViolation recognizes dedup-key conflicts from both engines.
func isUniqueViolation(err error) bool {
	if err == nil || err == sql.ErrNoRows {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
