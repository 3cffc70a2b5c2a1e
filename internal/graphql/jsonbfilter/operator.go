// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonbfilter

import "strings"

// operator enumerates the filter operator table.
type operator int

const (
	opEq operator = iota
	opNe
	opGt
	opGte
	opLt
	opLte
	opIsIn
	opIsNotIn
	opIsNull
	opIsNotNull
	opExists
	opNotExists
	opContains
	opStartsWith
	opEndsWith
	opLike
	opNotLike
	opBetween
	opNotBetween
	opAnd
	opOr
	opNot
	opMatch
	opQuery // $query:<path>; the trailing path is carried separately
)

const queryPrefix = "$query:"

// parseOperatorKey classifies an object key. ok=false means key is not a
// "$"-prefixed operator at all (i.e. it's a plain path segment). An error
// return means key looked like an operator but isn't one in the table;
// such reserved keys are rejected when the filter document is compiled.
func parseOperatorKey(key string) (op operator, queryTail string, ok bool, err error) {
	if !strings.HasPrefix(key, "$") {
		return 0, "", false, nil
	}
	if strings.HasPrefix(key, queryPrefix) && len(key) > len(queryPrefix) {
		return opQuery, key[len(queryPrefix):], true, nil
	}
	switch key {
	case "$eq":
		return opEq, "", true, nil
	case "$ne":
		return opNe, "", true, nil
	case "$gt":
		return opGt, "", true, nil
	case "$gte":
		return opGte, "", true, nil
	case "$lt":
		return opLt, "", true, nil
	case "$lte":
		return opLte, "", true, nil
	case "$is_in":
		return opIsIn, "", true, nil
	case "$is_not_in":
		return opIsNotIn, "", true, nil
	case "$is_null":
		return opIsNull, "", true, nil
	case "$is_not_null":
		return opIsNotNull, "", true, nil
	case "$exists":
		return opExists, "", true, nil
	case "$not_exists":
		return opNotExists, "", true, nil
	case "$contains":
		return opContains, "", true, nil
	case "$starts_with":
		return opStartsWith, "", true, nil
	case "$ends_with":
		return opEndsWith, "", true, nil
	case "$like":
		return opLike, "", true, nil
	case "$not_like":
		return opNotLike, "", true, nil
	case "$between":
		return opBetween, "", true, nil
	case "$not_between":
		return opNotBetween, "", true, nil
	case "$and":
		return opAnd, "", true, nil
	case "$or":
		return opOr, "", true, nil
	case "$not":
		return opNot, "", true, nil
	case "$match":
		return opMatch, "", true, nil
	default:
		return 0, "", true, &reservedOperatorError{key: key}
	}
}

type reservedOperatorError struct{ key string }

func (e *reservedOperatorError) Error() string {
	return "jsonbfilter: reserved but unimplemented filter operator: " + e.key
}
