// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package tails implements the opaque, content-addressed blob stream a
// revocation registry's tails table is written to and read from (spec
// §6 "Tails blob format"): a writer that appends bytes and finalizes to
// a content hash, and a reader that serves range reads by offset.
package tails

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/certen/indysdk/internal/ierr"
)

// Writer streams tails bytes to local disk under baseDir, hashing as it
// goes so Finalize can report the content address without a second pass
// over the file.
type Writer struct {
	file *os.File
	hash hash.Hash
	path string
}

// NewWriter creates a fresh tails file under baseDir. The file is named
// by a temporary placeholder; callers address it by the hash Finalize
// returns.
func NewWriter(baseDir string) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, ierr.Wrap(ierr.CodeStorageError, err, "create tails directory")
	}
	f, err := os.CreateTemp(baseDir, "tails-*.tmp")
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeStorageError, err, "create tails file")
	}
	return &Writer{file: f, hash: sha256.New(), path: f.Name()}, nil
}

// Append writes bytes to the tails stream and folds them into the
// running content hash.
func (w *Writer) Append(data []byte) error {
	if _, err := w.file.Write(data); err != nil {
		return ierr.Wrap(ierr.CodeStorageError, err, "append tails data")
	}
	if _, err := w.hash.Write(data); err != nil {
		return ierr.Wrap(ierr.CodeStorageError, err, "hash tails data")
	}
	return nil
}

// Finalize closes the stream, renames it to its content address, and
// returns (location, hash) per spec §6.
func (w *Writer) Finalize() (location string, hash string, err error) {
	if cerr := w.file.Close(); cerr != nil {
		return "", "", ierr.Wrap(ierr.CodeStorageError, cerr, "close tails file")
	}
	hexHash := fmt.Sprintf("%x", w.hash.Sum(nil))
	finalPath := filepath.Join(filepath.Dir(w.path), hexHash)
	if err := os.Rename(w.path, finalPath); err != nil {
		return "", "", ierr.Wrap(ierr.CodeStorageError, err, "finalize tails file")
	}
	return finalPath, hexHash, nil
}

// Reader serves range reads against a finalized tails blob.
type Reader struct {
	file *os.File
}

// OpenReader opens a finalized tails blob by its on-disk location.
func OpenReader(location string) (*Reader, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeStorageError, err, "open tails blob")
	}
	return &Reader{file: f}, nil
}

// Read returns length bytes starting at offset (spec §6 "read(offset,
// len) -> bytes").
func (r *Reader) Read(offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, ierr.Wrap(ierr.CodeStorageError, err, "read tails range")
	}
	return buf[:n], nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.file.Close() }
