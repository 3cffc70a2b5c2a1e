// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"sync"
	"time"
)

// watch is a broadcast-on-merge signal: every successful sync merge closes
// the current channel and opens a fresh one, so any number of waiters can
// subscribe to "the next merge" without missing a notification between
// their check and their subscribe.
type watch struct {
	mu   sync.Mutex
	ch   chan struct{}
	last time.Time
}

func newWatch() *watch {
	return &watch{ch: make(chan struct{})}
}

// subscribe returns the channel that closes on the next merge.
func (w *watch) subscribe() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

// notify broadcasts a merge completion carrying ts as the merge timestamp.
func (w *watch) notify(ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = ts
	close(w.ch)
	w.ch = make(chan struct{})
}
