// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonbfilter

import "github.com/Masterminds/squirrel"

// raw is the leaf squirrel.Sqlizer every condition this package builds
// bottoms out in: a literal SQL fragment using "?" placeholders (rebound
// to "$n" for Postgres by internal/database.DB, same as every other store
// in this tree), paired with its positional args.
type raw struct {
	sql  string
	args []any
}

func (r raw) ToSql() (string, []any, error) { return r.sql, r.args, nil }

func expr(sql string, args ...any) squirrel.Sqlizer { return raw{sql: sql, args: args} }

// conj joins parts with sep, parenthesizing each non-trivial part; an
// empty conj renders as empty, which is never by itself since andOf/orOf
// below special-case the empty case to the TRUE/FALSE identity, matching
// the usual SQL-builder convention for empty conjunctions
// (an empty AND is vacuously true; an empty OR is vacuously false).
type conj struct {
	parts []squirrel.Sqlizer
	sep   string
}

func (c conj) ToSql() (string, []any, error) {
	sql := ""
	var args []any
	for i, p := range c.parts {
		s, a, err := p.ToSql()
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			sql += c.sep
		}
		sql += "(" + s + ")"
		args = append(args, a...)
	}
	return sql, args, nil
}

// andOf combines parts with AND; an empty slice is the identity TRUE.
func andOf(parts []squirrel.Sqlizer) squirrel.Sqlizer {
	if len(parts) == 0 {
		return expr("TRUE")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return conj{parts: parts, sep: " AND "}
}

// orOf combines parts with OR; an empty slice is the identity FALSE.
func orOf(parts []squirrel.Sqlizer) squirrel.Sqlizer {
	if len(parts) == 0 {
		return expr("FALSE")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return conj{parts: parts, sep: " OR "}
}

// negate wraps s in a SQL NOT(...).
func negate(s squirrel.Sqlizer) squirrel.Sqlizer {
	return notWrap{inner: s}
}

type notWrap struct{ inner squirrel.Sqlizer }

func (n notWrap) ToSql() (string, []any, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}
