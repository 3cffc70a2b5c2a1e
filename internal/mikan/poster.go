// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"context"
	"net/url"
	"strings"
)

// PosterStore is the slice of the storage façade (internal/storage) the
// extractor needs to cache poster images, addressed by
// (subscriber_id, category, bucket, key). internal/storage.Facade
// implements this interface.
type PosterStore interface {
	Exists(ctx context.Context, subscriberID int64, category, bucket, key string) (bool, error)
	Put(ctx context.Context, subscriberID int64, category, bucket, key string, data []byte, contentType string) error
	ObjectPath(subscriberID int64, category, bucket, key string) string
}

const (
	posterCategory = "image"
	posterBucket   = "mikan-poster"
)

// PosterMeta implements poster_meta: consults the PosterStore under category
// "image", bucket "mikan-poster" and the poster path tail as key
// (internal/storage.Facade stores that at
// /subscribers/<sid>/image/mikan-poster/<poster-path-tail>); on miss, downloads
// origSrc and writes it. Returns the resolved storage object path; with no
// PosterStore attached it downloads nothing and returns the resolved origin
// URL instead.
func (c *Client) PosterMeta(ctx context.Context, subscriberID int64, origSrc string) (string, error) {
	resolved := resolveAgainst(c.baseURL, origSrc)

	key := posterKey(resolved)

	if c.posters == nil {
		return resolved, nil
	}

	exists, err := c.posters.Exists(ctx, subscriberID, posterCategory, posterBucket, key)
	if err != nil {
		return "", err
	}
	if exists {
		return c.posters.ObjectPath(subscriberID, posterCategory, posterBucket, key), nil
	}

	img, err := c.http.GetImage(ctx, resolved)
	if err != nil {
		return "", err
	}
	if err := c.posters.Put(ctx, subscriberID, posterCategory, posterBucket, key, img.Bytes, img.ContentType); err != nil {
		return "", err
	}
	return c.posters.ObjectPath(subscriberID, posterCategory, posterBucket, key), nil
}

// posterKey derives the cache key tail from a resolved poster URL, stripping
// the /images/Bangumi/ prefix.
func posterKey(resolved string) string {
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	return strings.TrimPrefix(u.Path, posterPathPrefix)
}
