// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package graphql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iancoleman/strcase"
)

// scanEntityRows drains rows into GraphQL response maps keyed by field
// name, applying per-kind conversions so both SQLite and Postgres driver
// values serialize identically.
func scanEntityRows(def entityDef, rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()

	out := []map[string]any{}
	for rows.Next() {
		dest := make([]any, len(def.fields))
		for i := range dest {
			var v any
			dest[i] = &v
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("graphql: scan %s: %w", def.table, err)
		}

		row := make(map[string]any, len(def.fields))
		for i, f := range def.fields {
			raw := *(dest[i].(*any))
			v, err := convertValue(f, raw, def.camelExtra)
			if err != nil {
				return nil, fmt.Errorf("graphql: convert %s.%s: %w", def.table, f.column, err)
			}
			row[f.name()] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func convertValue(f fieldDef, raw any, camelExtra bool) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.kind {
	case kindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
		return nil, fmt.Errorf("unexpected boolean representation %T", raw)
	case kindTime:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
		return nil, fmt.Errorf("unexpected timestamp representation %T", raw)
	case kindJSONB:
		var data []byte
		switch v := raw.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		default:
			return nil, fmt.Errorf("unexpected jsonb representation %T", raw)
		}
		if len(data) == 0 {
			return nil, nil
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if camelExtra {
			doc = camelizeKeys(doc)
		}
		return doc, nil
	default:
		switch v := raw.(type) {
		case []byte:
			return string(v), nil
		default:
			return v, nil
		}
	}
}

// camelizeKeys rewrites every object key in doc to camelCase, recursively.
func camelizeKeys(doc any) any {
	switch v := doc.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[strcase.ToLowerCamel(k)] = camelizeKeys(val)
		}
		return out
	case []any:
		for i := range v {
			v[i] = camelizeKeys(v[i])
		}
		return v
	default:
		return doc
	}
}
