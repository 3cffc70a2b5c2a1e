// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is one satisfiable, absolute [start, end] (inclusive) slice of
// an object of the given total size.
type byteRange struct {
	start, end int64 // inclusive
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRangeHeader parses an RFC 7233 "Range: bytes=a-b,c-d,..." header
// against an object of the given size, returning the satisfiable ranges in
// request order. An empty header (no Range requested) yields (nil, nil).
// A header present but with zero satisfiable ranges yields (nil, errUnsatisfiable).
func parseRangeHeader(header string, size int64) ([]byteRange, error) {
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, errUnsatisfiable
	}

	specs := strings.Split(strings.TrimPrefix(header, prefix), ",")
	ranges := make([]byteRange, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		r, ok := parseOneRange(spec, size)
		if ok {
			ranges = append(ranges, r)
		}
	}

	if len(ranges) == 0 {
		return nil, errUnsatisfiable
	}
	return ranges, nil
}

// errUnsatisfiable signals "no range in this header can be satisfied",
// which the caller renders as 416.
var errUnsatisfiable = fmt.Errorf("storage: no satisfiable range")

func parseOneRange(spec string, size int64) (byteRange, bool) {
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return byteRange{}, false
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	switch {
	case startStr == "" && endStr == "":
		return byteRange{}, false
	case startStr == "":
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, false
		}
		if n > size {
			n = size
		}
		if size == 0 {
			return byteRange{}, false
		}
		return byteRange{start: size - n, end: size - 1}, true
	case endStr == "":
		start, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 || start >= size {
			return byteRange{}, false
		}
		return byteRange{start: start, end: size - 1}, true
	default:
		start, err1 := strconv.ParseInt(startStr, 10, 64)
		end, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || start < 0 || start > end || start >= size {
			return byteRange{}, false
		}
		if end >= size {
			end = size - 1
		}
		return byteRange{start: start, end: end}, true
	}
}

func contentRangeHeader(r byteRange, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}
