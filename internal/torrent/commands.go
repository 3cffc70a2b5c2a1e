// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"

	"github.com/aniwatch/aniwatch/internal/apperror"
)

// AddDownloads issues the add command for creation and waits until every
// resulting hash is present in the replica.
func (d *Driver) AddDownloads(ctx context.Context, creation Creation) error {
	hashes, err := d.addTorrents(ctx, creation)
	if err != nil {
		return err
	}
	return d.waitSyncUntil(ctx, "add_downloads", func(s Snapshot) bool {
		for _, h := range hashes {
			if _, ok := s.Torrents[h]; !ok {
				return false
			}
		}
		return true
	})
}

// RemoveTorrents deletes hashes and waits until none remain in the replica.
func (d *Driver) RemoveTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	if err := d.client.DeleteTorrentsCtx(ctx, hashes, deleteFiles); err != nil {
		return apperror.Wrap(apperror.Transport, "remove torrents", err)
	}
	return d.waitSyncUntil(ctx, "remove_torrents", func(s Snapshot) bool {
		for _, h := range hashes {
			if _, ok := s.Torrents[h]; ok {
				return false
			}
		}
		return true
	})
}

// AddCategory creates name and waits until it is present in the replica.
func (d *Driver) AddCategory(ctx context.Context, name, savePath string) error {
	if err := d.client.CreateCategoryCtx(ctx, name, savePath); err != nil {
		return apperror.Wrap(apperror.Transport, "add category", err)
	}
	return d.waitSyncUntil(ctx, "add_category", func(s Snapshot) bool {
		_, ok := s.Categories[name]
		return ok
	})
}

// SetCategory assigns category c to hashes and waits until every affected
// torrent reflects it.
func (d *Driver) SetCategory(ctx context.Context, hashes []string, category string) error {
	if err := d.client.SetCategoryCtx(ctx, hashes, category); err != nil {
		return apperror.Wrap(apperror.Transport, "set category", err)
	}
	return d.waitSyncUntil(ctx, "set_category", func(s Snapshot) bool {
		for _, h := range hashes {
			t, ok := s.Torrents[h]
			if !ok || t.Category != category {
				return false
			}
		}
		return true
	})
}

// AddTags tags hashes and waits until every torrent's tag set is a superset
// of tags.
func (d *Driver) AddTags(ctx context.Context, hashes []string, tags []string) error {
	if err := d.client.AddTagsCtx(ctx, hashes, joinComma(tags)); err != nil {
		return apperror.Wrap(apperror.Transport, "add tags", err)
	}
	return d.waitSyncUntil(ctx, "add_tags", func(s Snapshot) bool {
		for _, h := range hashes {
			t, ok := s.Torrents[h]
			if !ok {
				return false
			}
			have := splitComma(t.Tags)
			for _, want := range tags {
				if !contains(have, want) {
					return false
				}
			}
		}
		return true
	})
}

// MoveTorrents relocates hashes to path and waits until every affected
// torrent's save path canonically equals it.
func (d *Driver) MoveTorrents(ctx context.Context, hashes []string, path string) error {
	if err := d.client.SetLocationCtx(ctx, hashes, path); err != nil {
		return apperror.Wrap(apperror.Transport, "move torrents", err)
	}
	return d.waitSyncUntil(ctx, "move_torrents", func(s Snapshot) bool {
		for _, h := range hashes {
			t, ok := s.Torrents[h]
			if !ok || !pathsEqual(t.SavePath, path) {
				return false
			}
		}
		return true
	})
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func splitComma(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
