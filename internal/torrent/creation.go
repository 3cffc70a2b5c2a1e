// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/aniwatch/aniwatch/internal/apperror"
	"github.com/aniwatch/aniwatch/pkg/releases"
)

// sanityParser caches rls parses across creations; feed re-walks hand the
// same titles back repeatedly.
var sanityParser = releases.NewDefaultParser()

// SourceKind discriminates the two ways a torrent can be added.
type SourceKind int

const (
	SourceMagnet SourceKind = iota
	SourceFile
)

// HashTorrentSource is one torrent to add, carrying its own canonical
// (lowercase hex) info-hash regardless of variant.
type HashTorrentSource struct {
	Kind      SourceKind
	InfoHash  string
	MagnetURL string // set when Kind == SourceMagnet
	FileName  string // set when Kind == SourceFile
	FileBytes []byte // set when Kind == SourceFile
}

// Creation is the input to AddDownloads: a save path, metadata to apply,
// and one or more sources partitioned by variant before the HTTP calls are
// issued.
type Creation struct {
	SavePath string
	Tags     []string
	Category string
	Sources  []HashTorrentSource

	// DisplayName, when set, is parsed with rls and the inferred content
	// type, source and codec are logged at debug level; nothing is compared
	// against an expected shape and the add is never blocked. See
	// creationSanityCheck.
	DisplayName string
}

// addTorrents issues one /add for all magnet sources (URLs joined by
// newlines) and one multipart /add per file source, so several file sources
// mean several calls. It pre-creates the category if it is unknown and
// returns every resulting info-hash.
func (d *Driver) addTorrents(ctx context.Context, c Creation) ([]string, error) {
	if c.DisplayName != "" {
		creationSanityCheck(c.DisplayName)
	}

	if c.Category != "" {
		if _, ok := d.replica.snapshot().Categories[c.Category]; !ok {
			if err := d.client.CreateCategoryCtx(ctx, c.Category, c.SavePath); err != nil {
				return nil, apperror.Wrap(apperror.Transport, "pre-create category", err)
			}
		}
	}

	var magnets []string
	var files []HashTorrentSource
	var hashes []string

	for _, s := range c.Sources {
		hashes = append(hashes, strings.ToLower(s.InfoHash))
		switch s.Kind {
		case SourceMagnet:
			magnets = append(magnets, s.MagnetURL)
		case SourceFile:
			files = append(files, s)
		}
	}

	opts := map[string]string{
		"savepath": c.SavePath,
		"category": c.Category,
	}
	if len(c.Tags) > 0 {
		opts["tags"] = joinComma(c.Tags)
	}

	if len(magnets) > 0 {
		if err := d.client.AddTorrentFromUrlCtx(ctx, strings.Join(magnets, "\n"), opts); err != nil {
			return nil, apperror.Wrap(apperror.Transport, "add magnet sources", err)
		}
	}

	for _, f := range files {
		if err := d.client.AddTorrentFromMemoryCtx(ctx, f.FileBytes, opts); err != nil {
			return nil, apperror.Wrap(apperror.Transport, "add file source: "+f.FileName, err)
		}
	}

	return hashes, nil
}

// creationSanityCheck runs moistari/rls over the display name purely as a
// diagnostic: a movie-shaped title arriving with no episode component, or
// vice versa, gets logged so a mismatch between an upstream bangumi record
// and the actual release is visible without blocking the add.
func creationSanityCheck(displayName string) {
	release := sanityParser.Parse(displayName)
	info := releases.DetermineContentType(release)
	log.Debug().
		Str("name", displayName).
		Str("contentType", info.ContentType).
		Str("source", releases.NormalizeSource(release.Source)).
		Str("codec", releases.JoinNormalizedCodecSlice(release.Codec)).
		Msg("creation sanity check")
}
