// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonbfilter

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Masterminds/squirrel"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Compile compiles a JsonbFilterInput document into a squirrel.Sqlizer
// predicate against column. It returns, in the order they were
// consulted, every JSONPath string the document's leaves compiled against
// — callers that need to EXPLAIN or log a filter can report them without
// re-walking the document.
func Compile(column string, doc json.RawMessage) (squirrel.Sqlizer, []string, error) {
	if !identifierPattern.MatchString(column) {
		return nil, nil, apperror.New(apperror.UserInput, "jsonbfilter: invalid column identifier: "+column)
	}
	root, err := parseDocument(doc)
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.UserInput, "jsonbfilter: parse filter document", err)
	}

	c := &compiler{column: column}
	cond, err := c.compileNode(root, newPath())
	if err != nil {
		return nil, nil, err
	}
	return cond, c.paths, nil
}

type compiler struct {
	column string
	paths  []string
}

// compileNode implements recursive_prepare_json_node_condition: node must
// be an object or array (a bare leaf at this level has no operator to
// apply and is rejected), and every entry either dispatches an operator or
// pushes a path segment and recurses.
func (c *compiler) compileNode(node Node, p path) (squirrel.Sqlizer, error) {
	var parts []squirrel.Sqlizer

	switch {
	case node.IsObject():
		for _, entry := range node.Object {
			part, err := c.compileEntry(entry.Key, entry.Value, p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
	case node.IsArray():
		for i, item := range node.Array {
			part, err := c.compileEntry("", item, p.pushNum(i))
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
	default:
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: filter node must be an object or array")
	}

	return andOf(parts), nil
}

// compileEntry handles one (key, value) pair from an object, or one
// (already-path-pushed) array element when key == "". p is the path as of
// entering this entry — for an object entry that is not an operator key,
// compileEntry pushes key itself before recursing.
func (c *compiler) compileEntry(key string, value Node, p path) (squirrel.Sqlizer, error) {
	if key == "" {
		return c.compileNode(value, p)
	}

	op, queryTail, isOperator, err := parseOperatorKey(key)
	if err != nil {
		return nil, apperror.Wrap(apperror.UserInput, "jsonbfilter", err)
	}
	if !isOperator {
		return c.compileNode(value, p.pushStr(key))
	}

	switch op {
	case opAnd:
		if !value.IsArray() {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $and requires an array of sub-filters")
		}
		var parts []squirrel.Sqlizer
		for _, item := range value.Array {
			part, err := c.compileNode(item, p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return andOf(parts), nil

	case opOr:
		if !value.IsArray() || len(value.Array) == 0 {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $or requires a non-empty array of sub-filters")
		}
		var parts []squirrel.Sqlizer
		for _, item := range value.Array {
			part, err := c.compileNode(item, p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return orOf(parts), nil

	case opNot:
		inner, err := c.compileNode(value, p)
		if err != nil {
			return nil, err
		}
		return negate(inner), nil

	case opQuery:
		if p.hasQuery() {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $query: a path may carry only one $query escape")
		}
		return c.compileNode(value, p.pushQuery(queryTail))

	case opMatch:
		// "$match: \"$any\"" is an accepted no-op
		// placeholder; any other value is rejected rather than treated
		// as a regex, per the same open question's unresolved stance on
		// whether $match should support one.
		if s, ok := value.AsString(); ok && s == "$any" {
			return andOf(nil), nil // TRUE identity, contributes nothing
		}
		return nil, apperror.New(apperror.UserInput, `jsonbfilter: $match only accepts the literal "$any"`)

	default:
		return c.leaf(op, value, p)
	}
}

func (c *compiler) recordPath(p path) string {
	s := p.String()
	c.paths = append(c.paths, s)
	return s
}

func (c *compiler) queryFirst(p path) (string, string) {
	pathStr := c.recordPath(p)
	return fmt.Sprintf("jsonb_path_query_first(%s, ?)", c.column), pathStr
}

func (c *compiler) exists(p path) (string, string) {
	pathStr := c.recordPath(p)
	return fmt.Sprintf("jsonb_path_exists(%s, ?)", c.column), pathStr
}

// typeAssert builds the `jsonb_path_exists(col, path || ' ? (@.type() ==
// "<t>")')` guard placed ahead of every string/number/boolean-typed
// comparison, so a type-mismatched leaf compares as false rather than
// erroring at query time.
func (c *compiler) typeAssert(p path, typeName string) squirrel.Sqlizer {
	pathStr := c.recordPath(p)
	sql := fmt.Sprintf(`jsonb_path_exists(%s, ? || ' ? (@.type() == "%s")')`, c.column, typeName)
	return expr(sql, pathStr)
}

func marshalLeaf(n Node) (string, error) {
	b, err := n.Marshal()
	if err != nil {
		return "", apperror.Wrap(apperror.UserInput, "jsonbfilter: marshal leaf value", err)
	}
	return string(b), nil
}

func (c *compiler) leaf(op operator, value Node, p path) (squirrel.Sqlizer, error) {
	switch op {
	case opEq, opNe:
		raw, err := marshalLeaf(value)
		if err != nil {
			return nil, err
		}
		call, pathStr := c.queryFirst(p)
		operatorSQL := "="
		if op == opNe {
			operatorSQL = "<>"
		}
		return expr(fmt.Sprintf("(%s) %s ?", call, operatorSQL), pathStr, raw), nil

	case opGt, opGte, opLt, opLte:
		return c.compareLeaf(op, value, p)

	case opIsIn, opIsNotIn:
		if !value.IsArray() {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $is_in/$is_not_in requires an array value")
		}
		arr, err := marshalLeaf(value)
		if err != nil {
			return nil, err
		}
		call, pathStr := c.queryFirst(p)
		e := expr(fmt.Sprintf("(%s) = ANY(SELECT jsonb_array_elements(?::jsonb))", call), pathStr, arr)
		if op == opIsNotIn {
			return negate(e), nil
		}
		return e, nil

	case opIsNull, opIsNotNull:
		want, ok := value.AsBool()
		if !ok {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $is_null/$is_not_null requires a boolean value")
		}
		pathStr := c.recordPath(p)
		nullCheck := fmt.Sprintf(`jsonb_path_exists(%s, ? || ' ? (@ == null)')`, c.column)
		e := expr(nullCheck, pathStr)
		positive := (op == opIsNull) == want
		if !positive {
			return negate(e), nil
		}
		return e, nil

	case opExists, opNotExists:
		want, ok := value.AsBool()
		if !ok {
			return nil, apperror.New(apperror.UserInput, "jsonbfilter: $exists/$not_exists requires a boolean value")
		}
		call, pathStr := c.exists(p)
		e := expr(call, pathStr)
		positive := (op == opExists) == want
		if !positive {
			return negate(e), nil
		}
		return e, nil

	case opContains:
		return c.containsLeaf(value, p)

	case opStartsWith, opEndsWith, opLike, opNotLike:
		return c.stringMatchLeaf(op, value, p)

	case opBetween, opNotBetween:
		return c.betweenLeaf(op, value, p)

	default:
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: operator not valid at a leaf position")
	}
}

func (c *compiler) compareLeaf(op operator, value Node, p path) (squirrel.Sqlizer, error) {
	var castTo string
	var arg any
	switch {
	case value.IsLeaf():
		if s, ok := value.AsString(); ok {
			castTo, arg = "text", s
		} else if b, ok := value.AsBool(); ok {
			castTo, arg = "boolean", b
		} else if f, ok := value.AsNumber(); ok {
			castTo, arg = "numeric", f
		}
	}
	if castTo == "" {
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: comparison operators require a string, number, or boolean value")
	}

	call, pathStr := c.queryFirst(p)
	lhs := fmt.Sprintf("CAST((%s) AS %s)", call, castTo)
	var operatorSQL string
	switch op {
	case opGt:
		operatorSQL = ">"
	case opGte:
		operatorSQL = ">="
	case opLt:
		operatorSQL = "<"
	case opLte:
		operatorSQL = "<="
	}
	return expr(fmt.Sprintf("%s %s ?", lhs, operatorSQL), pathStr, arg), nil
}

func (c *compiler) containsLeaf(value Node, p path) (squirrel.Sqlizer, error) {
	if s, ok := value.AsString(); ok {
		typeGuard := c.typeAssert(p, "string")
		call, pathStr := c.queryFirst(p)
		strExpr := expr(fmt.Sprintf("CAST((%s) AS text) LIKE ?", call), pathStr, "%"+escapeLike(s)+"%")
		return andOf([]squirrel.Sqlizer{typeGuard, strExpr}), nil
	}

	wrapped, err := marshalLeaf(value)
	if err != nil {
		return nil, err
	}
	typeGuard := c.typeAssert(p, "array")
	call, pathStr := c.queryFirst(p)
	arrExpr := expr(fmt.Sprintf("(%s) @> ?::jsonb", call), pathStr, "["+wrapped+"]")
	return andOf([]squirrel.Sqlizer{typeGuard, arrExpr}), nil
}

func (c *compiler) stringMatchLeaf(op operator, value Node, p path) (squirrel.Sqlizer, error) {
	s, ok := value.AsString()
	if !ok {
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: string operator requires a string value")
	}

	var pattern string
	switch op {
	case opStartsWith:
		pattern = escapeLike(s) + "%"
	case opEndsWith:
		pattern = "%" + escapeLike(s)
	case opLike:
		pattern = s // caller-supplied LIKE pattern, not escaped
	case opNotLike:
		pattern = s
	}

	typeGuard := c.typeAssert(p, "string")
	call, pathStr := c.queryFirst(p)
	operatorSQL := "LIKE"
	if op == opNotLike {
		operatorSQL = "NOT LIKE"
	}
	strExpr := expr(fmt.Sprintf("CAST((%s) AS text) %s ?", call, operatorSQL), pathStr, pattern)
	return andOf([]squirrel.Sqlizer{typeGuard, strExpr}), nil
}

func (c *compiler) betweenLeaf(op operator, value Node, p path) (squirrel.Sqlizer, error) {
	if !value.IsArray() || len(value.Array) != 2 {
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: $between/$not_between requires a two-element array")
	}
	lo, hi := value.Array[0], value.Array[1]

	var castTo string
	var loArg, hiArg any
	switch {
	case sameLeafKind(lo, hi, "string"):
		loStr, _ := lo.AsString()
		hiStr, _ := hi.AsString()
		castTo, loArg, hiArg = "string", loStr, hiStr
	case sameLeafKind(lo, hi, "number"):
		loNum, _ := lo.AsNumber()
		hiNum, _ := hi.AsNumber()
		castTo, loArg, hiArg = "number", loNum, hiNum
	case sameLeafKind(lo, hi, "boolean"):
		loBool, _ := lo.AsBool()
		hiBool, _ := hi.AsBool()
		castTo, loArg, hiArg = "boolean", loBool, hiBool
	default:
		return nil, apperror.New(apperror.UserInput, "jsonbfilter: $between/$not_between requires two values of the same type (number, string, or boolean)")
	}

	typeGuard := c.typeAssert(p, castTo)
	call, pathStr := c.queryFirst(p)
	operatorSQL := "BETWEEN"
	if op == opNotBetween {
		operatorSQL = "NOT BETWEEN"
	}
	rangeExpr := expr(fmt.Sprintf("CAST((%s) AS %s) %s ? AND ?", call, sqlCastName(castTo), operatorSQL), pathStr, loArg, hiArg)
	return andOf([]squirrel.Sqlizer{typeGuard, rangeExpr}), nil
}

func sameLeafKind(a, b Node, kind string) bool {
	switch kind {
	case "string":
		_, aok := a.AsString()
		_, bok := b.AsString()
		return aok && bok
	case "number":
		_, aok := a.AsNumber()
		_, bok := b.AsNumber()
		return aok && bok
	case "boolean":
		_, aok := a.AsBool()
		_, bok := b.AsBool()
		return aok && bok
	}
	return false
}

// sqlCastName maps typeAssert's jsonpath type-name vocabulary ("string",
// "number") onto the SQL CAST target ("text", "numeric") where they differ.
func sqlCastName(typeAssertName string) string {
	switch typeAssertName {
	case "string":
		return "text"
	case "number":
		return "numeric"
	}
	return typeAssertName
}

func escapeLike(s string) string {
	r := []rune{}
	for _, c := range s {
		switch c {
		case '\\', '%', '_':
			r = append(r, '\\', c)
		default:
			r = append(r, c)
		}
	}
	return string(r)
}
