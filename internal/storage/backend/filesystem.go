// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Filesystem is the production Backend: a rooted directory tree, mirroring
// the plain os.File serving pattern used for
// serving static content, generalized here to a full Open/Stat/Write/Delete
// contract.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (f *Filesystem) resolve(path string) string {
	return filepath.Join(f.root, filepath.Clean("/"+path))
}

func (f *Filesystem) Open(_ context.Context, path string) (Object, error) {
	file, err := os.Open(f.resolve(path))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	return file, err
}

func (f *Filesystem) Stat(_ context.Context, path string) (Info, error) {
	stat, err := os.Stat(f.resolve(path))
	if os.IsNotExist(err) {
		return Info{}, ErrNotExist
	}
	if err != nil {
		return Info{}, err
	}
	return Info{Size: stat.Size(), ModTime: stat.ModTime()}, nil
}

func (f *Filesystem) Write(_ context.Context, path string, r io.Reader) error {
	full := f.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	file, err := os.Create(full)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(file, r)
	return err
}

func (f *Filesystem) Delete(_ context.Context, path string) error {
	err := os.Remove(f.resolve(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
