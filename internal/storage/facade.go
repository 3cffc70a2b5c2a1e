// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage is a thin façade over an object backend (internal/storage/backend),
// subscriber/public object addressing plus range- and
// Accept-aware HTTP serving. Content-category + tenant + bucket + key
// addressing mirrors the multi-tenant path conventions the rest of this
// system applies to database rows (subscriber_id scoping), carried here
// into object-storage paths.
package storage

import (
	"bytes"
	"context"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aniwatch/aniwatch/internal/storage/backend"
)

// Category discriminates the kind of content an object holds, e.g.
// "image" for cached Mikan posters.
type Category string

const (
	CategoryImage Category = "image"
)

// Facade addresses and serves objects against one backend.Backend.
type Facade struct {
	backend backend.Backend
}

func NewFacade(b backend.Backend) *Facade {
	return &Facade{backend: b}
}

// BuildSubscriberObjectPath builds /subscribers/<sid>/<category>/<bucket>/<key>.
func BuildSubscriberObjectPath(subscriberID int64, category Category, bucket, key string) string {
	return path.Join("/subscribers", strconv.FormatInt(subscriberID, 10), string(category), bucket, key)
}

// BuildPublicObjectPath builds /public/<category>/<bucket>/<key>.
func BuildPublicObjectPath(category Category, bucket, key string) string {
	return path.Join("/public", string(category), bucket, key)
}

// Exists implements mikan.PosterStore: reports whether a subscriber-scoped
// object is already cached.
func (f *Facade) Exists(ctx context.Context, subscriberID int64, category, bucket, key string) (bool, error) {
	_, err := f.backend.Stat(ctx, BuildSubscriberObjectPath(subscriberID, Category(category), bucket, SanitizeKey(key)))
	if err == backend.ErrNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put implements mikan.PosterStore: writes a subscriber-scoped object.
// contentType isn't stored by the backend contract; it is re-derived on
// serve from the object's extension or by sniffing, per serve.go.
func (f *Facade) Put(ctx context.Context, subscriberID int64, category, bucket, key string, data []byte, contentType string) error {
	_ = contentType
	return f.backend.Write(ctx, BuildSubscriberObjectPath(subscriberID, Category(category), bucket, SanitizeKey(key)), bytes.NewReader(data))
}

// ObjectPath implements mikan.PosterStore.
func (f *Facade) ObjectPath(subscriberID int64, category, bucket, key string) string {
	return BuildSubscriberObjectPath(subscriberID, Category(category), bucket, SanitizeKey(key))
}

// SanitizeKey strips directory components and rejects the traversal
// segments "." and ".." from a bucket/key element supplied by an
// extractor or a user-facing query parameter, before it reaches
// BuildSubscriberObjectPath or BuildPublicObjectPath. Mikan episode
// titles and poster filenames pass through this on the way into a
// storage path.
func SanitizeKey(raw string) string {
	clean := filepath.Base(path.Clean("/" + raw))
	if clean == "" || clean == "." || clean == ".." || clean == string(filepath.Separator) {
		return "_"
	}
	return strings.TrimPrefix(clean, "/")
}
