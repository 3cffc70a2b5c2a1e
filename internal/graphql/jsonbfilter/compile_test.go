// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonbfilter

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompile_SimpleEq(t *testing.T) {
	doc := json.RawMessage(`{"a":{"b":{"$eq":1}}}`)
	cond, paths, err := Compile("extra", doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, args, err := cond.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(sql, "jsonb_path_query_first(extra, ?)") {
		t.Errorf("sql missing query_first call: %s", sql)
	}
	if len(paths) != 1 || paths[0] != "$.a.b" {
		t.Errorf("paths = %v, want [$.a.b]", paths)
	}
	if len(args) != 2 || args[0] != "$.a.b" || args[1] != "1" {
		t.Errorf("args = %v", args)
	}
}

// TestCompile_AndNotQueryIsIn: a top-level $and of a plain-path $eq leaf
// and a $not over a $query:-escaped $is_in leaf compiles to exactly two
// jsonb_path_query_first calls, one of them wrapped in "= ANY(...)", with
// the two JSONPath params recorded in traversal order.
func TestCompile_AndNotQueryIsIn(t *testing.T) {
	doc := json.RawMessage(`{
		"$and": [
			{"a": {"b": {"$eq": 1}}},
			{"$not": {"$query:.c.d.e": {"$is_in": [1, "haha", true]}}}
		]
	}`)
	cond, paths, err := Compile("job", doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, args, err := cond.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if got := strings.Count(sql, "jsonb_path_query_first(job, ?)"); got != 2 {
		t.Errorf("expected 2 jsonb_path_query_first calls, got %d: %s", got, sql)
	}
	if !strings.Contains(sql, "= ANY(SELECT jsonb_array_elements(?::jsonb))") {
		t.Errorf("expected an ANY(jsonb_array_elements(...)) subexpression: %s", sql)
	}
	if !strings.Contains(sql, "NOT (") {
		t.Errorf("expected a NOT(...) wrapper: %s", sql)
	}

	wantPaths := []string{"$.a.b", "$.c.d.e"}
	if len(paths) != len(wantPaths) {
		t.Fatalf("paths = %v, want %v", paths, wantPaths)
	}
	for i := range wantPaths {
		if paths[i] != wantPaths[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], wantPaths[i])
		}
	}

	if len(args) != 4 {
		t.Fatalf("args = %v, want 4 positional args", args)
	}
	if args[0] != "$.a.b" || args[1] != "1" {
		t.Errorf("first leaf args = %v, %v", args[0], args[1])
	}
	if args[2] != "$.c.d.e" {
		t.Errorf("second leaf path arg = %v", args[2])
	}
	wantArray := `[1,"haha",true]`
	if args[3] != wantArray {
		t.Errorf("is_in array arg = %v, want %v", args[3], wantArray)
	}
}

// TestCompile_AnyNoOp covers the $match:"$any" no-op placeholder and the
// empty-AND-is-TRUE identity it bottoms out in when it's the sole member
// of a conjunction.
func TestCompile_AnyNoOp(t *testing.T) {
	doc := json.RawMessage(`{"d":[{"$match":"$any"},{"$eq":[1,2,3]}]}`)
	cond, paths, err := Compile("job", doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, args, err := cond.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(sql, "TRUE") {
		t.Errorf("expected the no-op branch to render as TRUE: %s", sql)
	}
	if len(paths) != 1 || paths[0] != "$.d[1]" {
		t.Errorf("paths = %v, want [$.d[1]]", paths)
	}
	if len(args) != 2 || args[0] != "$.d[1]" {
		t.Errorf("args = %v", args)
	}
}

func TestCompile_MatchRejectsNonAny(t *testing.T) {
	doc := json.RawMessage(`{"a":{"$match":"foo.*"}}`)
	if _, _, err := Compile("job", doc); err == nil {
		t.Fatal("expected an error for a non-$any $match value")
	}
}

func TestCompile_ReservedOperatorRejected(t *testing.T) {
	doc := json.RawMessage(`{"a":{"$bogus":1}}`)
	if _, _, err := Compile("job", doc); err == nil {
		t.Fatal("expected an error for a reserved/unimplemented operator")
	}
}

func TestCompile_BetweenRequiresSameType(t *testing.T) {
	doc := json.RawMessage(`{"a":{"$between":[1,"x"]}}`)
	if _, _, err := Compile("job", doc); err == nil {
		t.Fatal("expected an error when $between operands differ in type")
	}
}

func TestCompile_StartsWithEscapesAndTypeGuards(t *testing.T) {
	doc := json.RawMessage(`{"name":{"$starts_with":"100%_done"}}`)
	cond, _, err := Compile("extra", doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, args, err := cond.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(sql, `@.type() == "string"`) {
		t.Errorf("expected a string type guard: %s", sql)
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
	if args[2] != `100\%\_done%` {
		t.Errorf("pattern arg = %q, want escaped LIKE pattern", args[2])
	}
}

func TestCompile_RejectsUnsafeColumn(t *testing.T) {
	doc := json.RawMessage(`{"a":{"$eq":1}}`)
	if _, _, err := Compile("extra; DROP TABLE x", doc); err == nil {
		t.Fatal("expected an error for a non-identifier column")
	}
}

func TestCompile_IsNullBoolGated(t *testing.T) {
	doc := json.RawMessage(`{"a":{"$is_null":false}}`)
	cond, _, err := Compile("extra", doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sql, _, err := cond.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.HasPrefix(sql, "NOT (") {
		t.Errorf("is_null:false should invert the null check: %s", sql)
	}
}
