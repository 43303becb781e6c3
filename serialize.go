// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package hashtable

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guycipher/hashtable/internal/snapfile"
)

// Serialize writes every live entry to w in the legacy snapshot
// encoding, byte-compatible with dumps produced by the C library.
// The whole table is locked for the duration, so the
// snapshot is a consistent point-in-time view.
func (t *Table) Serialize(w io.Writer) error {
	sw := snapfile.NewLegacyWriter(w)

	t.mu.Lock()
	err := t.writeEntries(sw)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if err := sw.Finish(); err != nil {
		return fmt.Errorf("snapfile.Finish: %w", err)
	}
	return nil
}

// Deserialize reads records from r until end of stream and merges them
// into the table through the standard insert path, so keys already
// present are updated rather than duplicated.  Both snapshot encodings
// are accepted.
func (t *Table) Deserialize(r io.Reader) error {
	sr, err := snapfile.NewReader(r)
	if err != nil {
		return fmt.Errorf("snapfile.NewReader: %w", err)
	}
	return t.mergeRecords(sr)
}

// WriteFile saves a v1 snapshot (header plus per-record checksums) to
// path.  The snapshot is staged in a temp file and renamed into place,
// so a crash mid-write never leaves a truncated file at path.
func (t *Table) WriteFile(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "hashtable.*.snap")
	if err != nil {
		return fmt.Errorf("os.CreateTemp: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	sw, err := snapfile.NewWriter(f)
	if err != nil {
		return fmt.Errorf("snapfile.NewWriter: %w", err)
	}

	t.mu.Lock()
	err = t.writeEntries(sw)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	if err := sw.Finish(); err != nil {
		return fmt.Errorf("snapfile.Finish: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	t.logger.Debug("wrote snapshot", "path", path, "entries", sw.Count())
	f = nil
	return nil
}

// ReadFile memory-maps the snapshot at path and merges its records into
// the table.  Either encoding is accepted.
func (t *Table) ReadFile(path string) error {
	m, err := snapfile.Open(path)
	if err != nil {
		return fmt.Errorf("snapfile.Open(%s): %w", path, err)
	}
	defer func() {
		_ = m.Close()
	}()

	return t.mergeRecords(m)
}

type recordSource interface {
	Next() (key string, value []byte, err error)
}

func (t *Table) mergeRecords(src recordSource) error {
	for {
		key, value, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		t.Insert(key, value)
	}
}

// writeEntries walks slots in ascending order and chains head to tail.
// Needs t.mu held for writing: per-bucket locks alone would let the
// snapshot observe one bucket before and another after a concurrent
// update.
func (t *Table) writeEntries(w *snapfile.Writer) error {
	for i := range t.buckets {
		for e := t.buckets[i].head; e != nil; e = e.next {
			if err := w.Write(e.key, e.value); err != nil {
				return fmt.Errorf("snapfile.Write: %w", err)
			}
		}
	}
	return nil
}
