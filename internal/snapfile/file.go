// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package snapfile

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// File is a snapshot memory-mapped for reading.  Record values returned
// from Next are fresh allocations, so they stay valid after Close.
type File struct {
	f    *os.File
	data []byte
	r    *Reader
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}

	stats, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat: %w", err)
	}

	size := stats.Size()
	if size == 0 {
		// empty snapshot; mmap of a zero-length file fails
		r, err := NewReader(bytes.NewReader(nil))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return &File{f: f, r: r}, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap(%s): %w", path, err)
	}
	if err := unix.Madvise(data, syscall.MADV_SEQUENTIAL); err != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("madvise: %w", err)
	}

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, err
	}

	return &File{f: f, data: data, r: r}, nil
}

func (m *File) Next() (key string, value []byte, err error) {
	return m.r.Next()
}

func (m *File) Close() error {
	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		m.data = nil
	}
	return m.f.Close()
}
