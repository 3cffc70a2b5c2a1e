// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package graphql

import (
	"github.com/iancoleman/strcase"
)

// fieldKind drives scan conversion: how a raw driver value becomes a
// GraphQL response value.
type fieldKind int

const (
	kindScalar fieldKind = iota
	kindBool             // sqlite stores booleans as 0/1 integers
	kindTime             // rendered as RFC 3339
	kindJSONB            // unmarshaled, keys optionally camelCased
)

type fieldDef struct {
	column string
	kind   fieldKind
}

// name is the GraphQL-facing field name for this column.
func (f fieldDef) name() string { return strcase.ToLowerCamel(f.column) }

// entityDef describes one persisted entity to the generic executor: its
// table, scannable columns, and whether rows are subscriber-scoped.
type entityDef struct {
	name   string // mutation prefix, e.g. "subscription" -> subscriptionCreate
	table  string
	scoped bool
	fields []fieldDef

	// camelExtra converts jsonb output keys to camelCase for
	// GraphQL-facing responses.
	camelExtra bool
}

func (e entityDef) field(name string) (fieldDef, bool) {
	for _, f := range e.fields {
		if f.name() == name {
			return f, true
		}
	}
	return fieldDef{}, false
}

func (e entityDef) columns() []string {
	cols := make([]string, len(e.fields))
	for i, f := range e.fields {
		cols[i] = f.column
	}
	return cols
}

var timestamps = []fieldDef{
	{column: "created_at", kind: kindTime},
	{column: "updated_at", kind: kindTime},
}

var entities = map[string]entityDef{
	"subscriber": {
		name:  "subscriber",
		table: "subscriber",
		fields: append([]fieldDef{
			{column: "id"},
			{column: "display_name"},
		}, timestamps...),
	},
	"credential3rd": {
		name:   "credential3rd",
		table:  "credential_3rd",
		scoped: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "kind"},
			{column: "username"},
			{column: "password"},
			{column: "user_agent"},
			{column: "cookies"},
		}, timestamps...),
	},
	"subscription": {
		name:   "subscription",
		table:  "subscription",
		scoped: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "display_name"},
			{column: "category"},
			{column: "source_url"},
			{column: "enabled", kind: kindBool},
			{column: "credential_id"},
		}, timestamps...),
	},
	"bangumi": {
		name:       "bangumi",
		table:      "bangumi",
		scoped:     true,
		camelExtra: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "mikan_bangumi_id"},
			{column: "mikan_fansub_id"},
			{column: "display_name"},
			{column: "raw_name"},
			{column: "season"},
			{column: "season_raw"},
			{column: "fansub"},
			{column: "rss_link"},
			{column: "poster_link"},
			{column: "homepage"},
			{column: "save_path"},
			{column: "extra", kind: kindJSONB},
		}, timestamps...),
	},
	"episode": {
		name:       "episode",
		table:      "episode",
		scoped:     true,
		camelExtra: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "mikan_episode_id"},
			{column: "bangumi_id"},
			{column: "subscriber_id"},
			{column: "raw_name"},
			{column: "display_name"},
			{column: "season"},
			{column: "episode_index"},
			{column: "fansub"},
			{column: "resolution"},
			{column: "subtitle"},
			{column: "source"},
			{column: "homepage"},
			{column: "poster_link"},
			{column: "download_id"},
			{column: "save_path"},
			{column: "extra", kind: kindJSONB},
		}, timestamps...),
	},
	"subscriptionBangumi": {
		name:   "subscriptionBangumi",
		table:  "subscription_bangumi",
		scoped: true,
		fields: []fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "subscription_id"},
			{column: "bangumi_id"},
			{column: "created_at", kind: kindTime},
		},
	},
	"subscriptionEpisode": {
		name:   "subscriptionEpisode",
		table:  "subscription_episode",
		scoped: true,
		fields: []fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "subscription_id"},
			{column: "episode_id"},
			{column: "created_at", kind: kindTime},
		},
	},
	"download": {
		name:   "download",
		table:  "download",
		scoped: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "downloader_id"},
			{column: "episode_id"},
			{column: "raw_name"},
			{column: "status"},
			{column: "curr_size"},
			{column: "all_size"},
			{column: "mime"},
			{column: "url"},
			{column: "homepage"},
			{column: "save_path"},
		}, timestamps...),
	},
	"downloader": {
		name:   "downloader",
		table:  "downloader",
		scoped: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "subscriber_id"},
			{column: "kind"},
			{column: "endpoint"},
			{column: "username"},
			{column: "password"},
			{column: "save_path"},
		}, timestamps...),
	},
	"cron": {
		name:   "cron",
		table:  "cron",
		scoped: true,
		fields: append([]fieldDef{
			{column: "id"},
			{column: "cron_expr"},
			{column: "source"},
			{column: "subscriber_id"},
			{column: "subscription_id"},
			{column: "next_run", kind: kindTime},
			{column: "last_run", kind: kindTime},
			{column: "last_error"},
			{column: "enabled", kind: kindBool},
			{column: "locked_by"},
			{column: "locked_at", kind: kindTime},
			{column: "timeout_ms"},
			{column: "attempts"},
			{column: "max_attempts"},
			{column: "priority"},
			{column: "status"},
		}, timestamps...),
	},
}

// queryFields maps top-level Query list fields to their entity.
var queryFields = map[string]string{
	"credential3rds":       "credential3rd",
	"subscriptions":        "subscription",
	"bangumis":             "bangumi",
	"episodes":             "episode",
	"subscriptionBangumis": "subscriptionBangumi",
	"subscriptionEpisodes": "subscriptionEpisode",
	"downloads":            "download",
	"downloaders":          "downloader",
	"crons":                "cron",
}
