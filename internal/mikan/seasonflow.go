// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package mikan

import (
	"context"
)

// Credential is the username/password pair PullSeasonFlow uses to log back
// in if the season-flow page comes back unauthenticated.
type Credential struct {
	Username string
	Password string
}

// CookieSyncFunc persists the session's current cookie jar (e.g. back into
// Credential3rd.Cookies). PullSeasonFlow calls it whether or not the
// cookies changed.
type CookieSyncFunc func(ctx context.Context, cookiesJSON string) error

// SeasonFlowResult is one element of the stream PullSeasonFlow produces:
// either a successfully joined BangumiMeta, or the error that ended the
// stream.
type SeasonFlowResult struct {
	Meta BangumiMeta
	Err  error
}

// PullSeasonFlow is the season-flow three-stage streaming pipeline:
//  1. Fetch the season flow page; if the index list is empty and the
//     session isn't logged in, log in and refetch.
//  2. For each index, fetch the expand-subscribed fragment and join fansub
//     info.
//  3. Push the session's cookies back via sync, once after step 1 and
//     again after the walk.
//
// The result is a buffered (cap=1) channel-backed iterator:
// a producer goroutine that exits on ctx.Done(), making the
// stream cancellation-safe for a consumer that stops draining early. The
// channel is closed after the final item (or the first error) is sent.
func (c *Client) PullSeasonFlow(ctx context.Context, year int, seasonStr string, cred Credential, sync CookieSyncFunc) <-chan SeasonFlowResult {
	out := make(chan SeasonFlowResult, 1)

	go func() {
		defer close(out)

		if err := validateSeasonFlowArgs(year, seasonStr); err != nil {
			trySend(ctx, out, SeasonFlowResult{Err: err})
			return
		}

		seasonFlowURL := BuildSeasonFlowURL(c.baseURL, year, seasonStr)

		doc, err := c.fetchDocument(ctx, seasonFlowURL)
		if err != nil {
			trySend(ctx, out, SeasonFlowResult{Err: err})
			return
		}
		indices := BangumiIndexMetaListFromSeasonFlowFragment(doc, c.baseURL)

		if len(indices) == 0 {
			loggedIn, err := c.HasLogin(ctx)
			if err != nil {
				trySend(ctx, out, SeasonFlowResult{Err: err})
				return
			}
			if !loggedIn {
				if err := c.Login(ctx, cred.Username, cred.Password); err != nil {
					trySend(ctx, out, SeasonFlowResult{Err: err})
					return
				}
				doc, err = c.fetchDocument(ctx, seasonFlowURL)
				if err != nil {
					trySend(ctx, out, SeasonFlowResult{Err: err})
					return
				}
				indices = BangumiIndexMetaListFromSeasonFlowFragment(doc, c.baseURL)
			}
		}

		if err := c.syncCookies(ctx, sync); err != nil {
			trySend(ctx, out, SeasonFlowResult{Err: err})
			return
		}

		for _, index := range indices {
			expandURL := BuildExpandSubscribedURL(c.baseURL, index.MikanBangumiID)
			fragDoc, err := c.fetchDocument(ctx, expandURL)
			if err != nil {
				trySend(ctx, out, SeasonFlowResult{Err: err})
				return
			}
			meta, err := BangumiMetaFromExpandSubscribedFragment(fragDoc, index, c.baseURL)
			if err != nil {
				trySend(ctx, out, SeasonFlowResult{Err: err})
				return
			}
			if !trySend(ctx, out, SeasonFlowResult{Meta: meta}) {
				return
			}
		}

		if err := c.syncCookies(ctx, sync); err != nil {
			trySend(ctx, out, SeasonFlowResult{Err: err})
		}
	}()

	return out
}

func (c *Client) syncCookies(ctx context.Context, sync CookieSyncFunc) error {
	if sync == nil {
		return nil
	}
	cookies, err := c.ExportCookies()
	if err != nil {
		return err
	}
	return sync(ctx, cookies)
}

// trySend delivers v unless ctx is done first (the consumer dropped the
// stream), returning false in that case so the producer can exit.
func trySend(ctx context.Context, out chan<- SeasonFlowResult, v SeasonFlowResult) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
