// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonbfilter

import (
	"strconv"
	"strings"
)

// segmentKind discriminates the three ways a path element can be appended,
// as follows: paths are built segment by segment; string segments with
// non-alphanumeric characters are bracket-escaped and single-quoted with
// standard backslash escaping; numeric segments use [n]; the root is $."
type segmentKind int

const (
	segStr segmentKind = iota
	segNum
	segQuery // a raw JSONPath escape from a $query:<path> key
)

type segment struct {
	kind segmentKind
	str  string
	num  int
}

// path is an immutable (copy-on-push) JSONPath builder. A path carries at
// most one "$query:<path>" escape: Compile rejects a second one. Ordinary
// segments before or after the escape are not rejected; String renders
// them in push order around the escape's raw text.
type path struct {
	segments []segment
}

func newPath() path {
	return path{}
}

func (p path) push(s segment) path {
	out := make([]segment, len(p.segments), len(p.segments)+1)
	copy(out, p.segments)
	out = append(out, s)
	return path{segments: out}
}

func (p path) pushStr(s string) path  { return p.push(segment{kind: segStr, str: s}) }
func (p path) pushNum(n int) path     { return p.push(segment{kind: segNum, num: n}) }
func (p path) pushQuery(raw string) path {
	return p.push(segment{kind: segQuery, str: raw})
}

// hasQuery reports whether a $query escape has already been pushed onto
// this path; a path may carry only one.
func (p path) hasQuery() bool {
	for _, s := range p.segments {
		if s.kind == segQuery {
			return true
		}
	}
	return false
}

// String renders the JSONPath expression Postgres' jsonb_path_* family
// expects: "$" for the root, ".key" for a bare-word segment, "['key']" for
// one needing escaping, "[n]" for an array index, and the raw text of a
// $query: escape appended verbatim.
func (p path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.segments {
		switch s.kind {
		case segStr:
			if isBareWord(s.str) {
				b.WriteByte('.')
				b.WriteString(s.str)
			} else {
				b.WriteString("['")
				b.WriteString(escapeBracketSegment(s.str))
				b.WriteString("']")
			}
		case segNum:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.num))
			b.WriteByte(']')
		case segQuery:
			b.WriteString(s.str)
		}
	}
	return b.String()
}

func isBareWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}

func escapeBracketSegment(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`)
	return r.Replace(s)
}
