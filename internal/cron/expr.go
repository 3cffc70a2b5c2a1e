// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cron stores recurring jobs in the relational database and
// computes their next firing time from a standard 5-field expression, per
// rows. The distributed claim mechanism built on top of the table this
// package describes lives in internal/cron/pgsql.
package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Expr is a parsed 5-field cron expression (minute hour dom month dow),
// always evaluated in UTC.
type Expr struct {
	raw         string
	minutes     []int
	hours       []int
	daysOfMonth []int
	months      []int
	daysOfWeek  []int
	domWildcard bool
	dowWildcard bool
}

// String returns the original expression text.
func (e *Expr) String() string { return e.raw }

// ParseExpr parses a standard 5-field cron expression, grounded on
// tomtom215-cartographus/internal/newsletter/scheduler/cron.go's field
// grammar (*, n, n-m, n,m,o, */n, n-m/s), generalized to always run in UTC.
func ParseExpr(expr string) (*Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expression must have 5 fields, got %d", len(fields))
	}

	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid minute field: %w", err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid hour field: %w", err)
	}
	dom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid month field: %w", err)
	}
	dow, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("cron: invalid day-of-week field: %w", err)
	}

	normalizedDOW := make([]int, 0, len(dow))
	for _, d := range dow {
		if d == 7 {
			d = 0
		}
		normalizedDOW = append(normalizedDOW, d)
	}
	dow = uniqueSortedInts(normalizedDOW)

	return &Expr{
		raw:         expr,
		minutes:     minutes,
		hours:       hours,
		daysOfMonth: dom,
		months:      months,
		daysOfWeek:  dow,
		domWildcard: fields[2] == "*",
		dowWildcard: fields[4] == "*",
	}, nil
}

// maxSearchMinutes bounds NextRun's forward scan to avoid an infinite loop
// on an expression that can never match (e.g. Feb 30th).
const maxSearchMinutes = 4 * 365 * 24 * 60

// NextRun returns the first UTC instant strictly after `after` that
// matches the expression.
func (e *Expr) NextRun(after time.Time) time.Time {
	t := after.UTC().Add(time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)

	for i := 0; i < maxSearchMinutes; i++ {
		if e.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (e *Expr) matches(t time.Time) bool {
	if !containsInt(e.minutes, t.Minute()) {
		return false
	}
	if !containsInt(e.hours, t.Hour()) {
		return false
	}
	if !containsInt(e.months, int(t.Month())) {
		return false
	}

	domMatch := containsInt(e.daysOfMonth, t.Day())
	dowMatch := containsInt(e.daysOfWeek, int(t.Weekday()))

	switch {
	case e.domWildcard && e.dowWildcard:
		return true
	case e.domWildcard:
		return dowMatch
	case e.dowWildcard:
		return domMatch
	default:
		// Standard cron semantics: when both fields are restricted, a match
		// on either is sufficient (they're OR'd, not AND'd).
		return domMatch || dowMatch
	}
}

func parseField(field string, minVal, maxVal int) ([]int, error) {
	if field == "*" {
		return rangeInts(minVal, maxVal), nil
	}

	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseFieldPart(part, minVal, maxVal)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		return uniqueSortedInts(result), nil
	}

	return parseFieldPart(field, minVal, maxVal)
}

func parseFieldPart(part string, minVal, maxVal int) ([]int, error) {
	if strings.Contains(part, "/") {
		pieces := strings.SplitN(part, "/", 2)
		step, err := strconv.Atoi(pieces[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", pieces[1])
		}

		var start, end int
		switch {
		case pieces[0] == "*":
			start, end = minVal, maxVal
		case strings.Contains(pieces[0], "-"):
			bounds := strings.SplitN(pieces[0], "-", 2)
			start, err = strconv.Atoi(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range start: %s", bounds[0])
			}
			end, err = strconv.Atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range end: %s", bounds[1])
			}
		default:
			start, err = strconv.Atoi(pieces[0])
			if err != nil {
				return nil, fmt.Errorf("invalid value: %s", pieces[0])
			}
			end = maxVal
		}

		var result []int
		for v := start; v <= end; v += step {
			if v >= minVal && v <= maxVal {
				result = append(result, v)
			}
		}
		return result, nil
	}

	if strings.Contains(part, "-") {
		bounds := strings.SplitN(part, "-", 2)
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", bounds[0])
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", bounds[1])
		}
		if start > end || start < minVal || end > maxVal {
			return nil, fmt.Errorf("invalid range: %d-%d", start, end)
		}
		return rangeInts(start, end), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return nil, fmt.Errorf("value out of range: %d", val)
	}
	return []int{val}, nil
}

func rangeInts(start, end int) []int {
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func containsInt(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func uniqueSortedInts(slice []int) []int {
	seen := make(map[int]struct{}, len(slice))
	result := make([]int, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	sort.Ints(result)
	return result
}
