// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the persisted entities: Subscriber,
// Credential3rd, Subscription, Bangumi, Episode, the join rows, Download,
// Downloader and Cron, plus the JSONB wrapper and the subscription-category
// tagged union.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is a database/sql-scannable wrapper around an arbitrary JSON
// document, used for the `extra` columns on Bangumi and Episode.
type JSONB struct {
	Raw json.RawMessage
}

// Scan implements sql.Scanner.
func (j *JSONB) Scan(src any) error {
	if src == nil {
		j.Raw = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		j.Raw = append(json.RawMessage(nil), v...)
		return nil
	case string:
		j.Raw = json.RawMessage(v)
		return nil
	default:
		return fmt.Errorf("domain: cannot scan %T into JSONB", src)
	}
}

// Value implements driver.Valuer.
func (j JSONB) Value() (driver.Value, error) {
	if len(j.Raw) == 0 {
		return "{}", nil
	}
	return string(j.Raw), nil
}

// MarshalJSON passes the raw document through unchanged.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j.Raw) == 0 {
		return []byte("{}"), nil
	}
	return j.Raw, nil
}

// UnmarshalJSON stores the raw document unchanged.
func (j *JSONB) UnmarshalJSON(data []byte) error {
	j.Raw = append(json.RawMessage(nil), data...)
	return nil
}
