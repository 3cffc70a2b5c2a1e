// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/aniwatch/aniwatch/internal/storage/backend"
)

// ServeFile is the range-aware serving path: no Range header
// serves the whole object (200), a single satisfiable range serves 206 with
// Content-Range, multiple satisfiable ranges serve 206 multipart/byteranges,
// and an unsatisfiable Range serves 416.
func (f *Facade) ServeFile(ctx context.Context, w http.ResponseWriter, r *http.Request, objectPath string) error {
	info, err := f.backend.Stat(ctx, objectPath)
	if err != nil {
		if err == backend.ErrNotExist {
			http.NotFound(w, r)
			return nil
		}
		http.Error(w, "storage backend error", http.StatusInternalServerError)
		return err
	}

	contentType := contentTypeForPath(ctx, f.backend, objectPath)
	etag := etagFor(info)
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	w.Header().Set("Accept-Ranges", "bytes")

	ranges, err := parseRangeHeader(r.Header.Get("Range"), info.Size)
	if err == errUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	obj, err := f.backend.Open(ctx, objectPath)
	if err != nil {
		http.Error(w, "storage backend error", http.StatusInternalServerError)
		return err
	}
	defer obj.Close()

	switch {
	case len(ranges) == 0:
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		w.WriteHeader(http.StatusOK)
		_, err = io.Copy(w, obj)
		return err

	case len(ranges) == 1:
		rg := ranges[0]
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Range", contentRangeHeader(rg, info.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(rg.length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		_, err = io.Copy(w, io.NewSectionReader(sectionerFor(obj), rg.start, rg.length()))
		return err

	default:
		return serveMultipartRanges(w, obj, ranges, info.Size, contentType)
	}
}

// sectionerFor adapts a backend.Object (an io.ReadSeekCloser) to the
// io.ReaderAt io.NewSectionReader needs, via Seek+Read — acceptable here
// since each range copy is sequential and the object is reopened per call.
func sectionerFor(obj backend.Object) io.ReaderAt {
	return readerAtFromReadSeeker{obj}
}

type readerAtFromReadSeeker struct {
	rs io.ReadSeeker
}

func (r readerAtFromReadSeeker) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(r.rs, p)
}

func serveMultipartRanges(w http.ResponseWriter, obj backend.Object, ranges []byteRange, size int64, contentType string) error {
	boundary := uuid.NewString()
	w.Header().Set("Content-Type", "multipart/byteranges; boundary="+boundary)
	w.WriteHeader(http.StatusPartialContent)

	sr := sectionerFor(obj)
	for _, rg := range ranges {
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Range: %s\r\n\r\n", boundary, contentType, contentRangeHeader(rg, size)); err != nil {
			return err
		}
		if _, err := io.Copy(w, io.NewSectionReader(sr, rg.start, rg.length())); err != nil {
			return err
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "--%s--\r\n", boundary)
	return err
}

func etagFor(info backend.Info) string {
	if info.ETag != "" {
		return info.ETag
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%x-%x", info.ModTime.Unix(), info.Size))
}

func contentTypeForPath(ctx context.Context, b backend.Backend, objectPath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(objectPath)); ct != "" {
		return ct
	}
	obj, err := b.Open(ctx, objectPath)
	if err != nil {
		return "application/octet-stream"
	}
	defer obj.Close()

	mt, err := mimetype.DetectReader(obj)
	if err != nil || mt == nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// imageNegotiationExtensions is the sibling-extension probe order for
// content-negotiated image serving. Order within one Accept entry doesn't
// matter since only "the first existing wins" per media
// type checked in Accept order.
var imageNegotiationExtensions = map[string]string{
	"image/webp": ".webp",
	"image/avif": ".avif",
	"image/jxl":  ".jxl",
}

// ServeOptimizedImage is the content-negotiated image serving path:
// for each media type in Accept (in order), check for a sibling file with
// the corresponding optimized extension; the first existing wins, else the
// original path is served.
func (f *Facade) ServeOptimizedImage(ctx context.Context, w http.ResponseWriter, r *http.Request, objectPath string) error {
	for _, mediaType := range parseAcceptOrder(r.Header.Get("Accept")) {
		ext, ok := imageNegotiationExtensions[mediaType]
		if !ok {
			continue
		}
		candidate := swapExt(objectPath, ext)
		if _, err := f.backend.Stat(ctx, candidate); err == nil {
			return f.ServeFile(ctx, w, r, candidate)
		}
	}
	return f.ServeFile(ctx, w, r, objectPath)
}

func swapExt(p, newExt string) string {
	ext := filepath.Ext(p)
	return p[:len(p)-len(ext)] + newExt
}

// parseAcceptOrder returns the media types named in an Accept header in
// the order they were listed (ignoring q-values — the negotiation only needs
// presence-ordering, not full RFC 7231 weighting).
func parseAcceptOrder(header string) []string {
	if header == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt != "" {
			out = append(out, mt)
		}
	}
	return out
}
