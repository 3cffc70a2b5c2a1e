// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips credential material out of errors before they are
// logged. Mikan aggregation feeds carry the subscriber's token as a query
// parameter, so a raw *url.Error in a log line would leak it.
package redact

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values never reach logs.
var sensitiveParams = []string{"token", "apikey", "api_key", "access_token", "password", "passkey"}

// URL rewrites raw with every sensitive query parameter value replaced by
// REDACTED. Unparseable input is returned unchanged.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for _, param := range sensitiveParams {
		if q.Has(param) {
			q.Set(param, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// URLError returns err with any *url.Error in its chain rendered with a
// redacted URL. Non-URL errors pass through unchanged; nil stays nil.
func URLError(err error) error {
	if err == nil {
		return nil
	}
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	redacted := URL(uerr.URL)
	if redacted == uerr.URL {
		return err
	}
	return fmt.Errorf("%s %q: %w", uerr.Op, redacted, uerr.Err)
}

// String redacts sensitive parameter values appearing anywhere in free-form
// text, for messages that embed URLs rather than wrap a *url.Error.
func String(s string) string {
	for _, param := range sensitiveParams {
		marker := param + "="
		from := 0
		for {
			idx := strings.Index(s[from:], marker)
			if idx < 0 {
				break
			}
			start := from + idx + len(marker)
			end := start
			for end < len(s) && s[end] != '&' && s[end] != ' ' && s[end] != '"' {
				end++
			}
			s = s[:start] + "REDACTED" + s[end:]
			from = start + len("REDACTED")
		}
	}
	return s
}
