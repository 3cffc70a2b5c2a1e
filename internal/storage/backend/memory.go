// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// Memory is an in-process Backend used in tests, as the
// "in-memory backend used in tests" note.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	modTime map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		modTime: make(map[string]time.Time),
	}
}

type memObject struct {
	*bytes.Reader
}

func (memObject) Close() error { return nil }

func (m *Memory) Open(_ context.Context, path string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrNotExist
	}
	return memObject{bytes.NewReader(data)}, nil
}

func (m *Memory) Stat(_ context.Context, path string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return Info{}, ErrNotExist
	}
	return Info{Size: int64(len(data)), ModTime: m.modTime[path]}, nil
}

func (m *Memory) Write(_ context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	m.modTime[path] = time.Now()
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	delete(m.modTime, path)
	return nil
}
