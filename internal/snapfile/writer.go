// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package snapfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"

	"github.com/dgryski/go-farm"
)

const (
	defaultBufferSize = 4 * 1024 * 1024
	recordHeaderSize  = 4 + 4 + 4 // 32-bit checksum of the value + 32-bit key length + 32-bit value length

	legacyCounterSize = 8
	maxKeyLen         = math.MaxUint32
	maxValueLen       = math.MaxUint32
)

var (
	// ErrKeyContainsNUL is reported when a key holds a 0x00 byte, which the
	// legacy encoding cannot represent (its keys are NUL-terminated C strings).
	ErrKeyContainsNUL = errors.New("key contains a NUL byte")

	errKeyTooBig   = errors.New("key too long for snapshot record")
	errValueTooBig = errors.New("value too long for snapshot record")
)

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// Writer emits a snapshot record stream.  NewWriter produces the v1
// encoding; NewLegacyWriter produces the headerless C-compatible encoding.
type Writer struct {
	f        FileWriter // nil for legacy streams
	h        *fileHeader
	w        *bufio.Writer
	count    uint64
	finished atomic.Bool
}

func NewWriter(f FileWriter) (*Writer, error) {
	w := &Writer{
		f: f,
		h: newFileHeader(),
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}

	if _, err := w.h.WriteTo(w.w); err != nil {
		return nil, fmt.Errorf("fileHeader.WriteTo: %w", err)
	}

	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	return w, nil
}

func NewLegacyWriter(w io.Writer) *Writer {
	return &Writer{
		w: bufio.NewWriterSize(w, defaultBufferSize),
	}
}

func (w *Writer) Write(key string, value []byte) error {
	if uint64(len(key)) >= maxKeyLen {
		return errKeyTooBig
	}
	if uint64(len(value)) > maxValueLen {
		return errValueTooBig
	}

	if w.h == nil {
		return w.writeLegacyRecord(key, value)
	}

	var header [recordHeaderSize]byte
	checksum := uint32(farm.Hash64(value))
	binary.LittleEndian.PutUint32(header[:4], checksum)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(key)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(value)))

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	if _, err := w.w.WriteString(key); err != nil {
		return fmt.Errorf("bufio.WriteString: %w", err)
	}
	if _, err := w.w.Write(value); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}

	w.count++
	return nil
}

func (w *Writer) writeLegacyRecord(key string, value []byte) error {
	if strings.IndexByte(key, 0) >= 0 {
		return ErrKeyContainsNUL
	}

	// key length counts the trailing NUL, exactly as the C strlen(key)+1 did
	var lenBuf [legacyCounterSize]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(key))+1)
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	if _, err := w.w.WriteString(key); err != nil {
		return fmt.Errorf("bufio.WriteString: %w", err)
	}
	if err := w.w.WriteByte(0); err != nil {
		return fmt.Errorf("bufio.WriteByte: %w", err)
	}
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(value)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}
	if _, err := w.w.Write(value); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}

	w.count++
	return nil
}

// Count reports the number of records written so far.
func (w *Writer) Count() uint64 {
	return w.count
}

// Finish flushes buffered records and, for v1 snapshots, backpatches the
// record count into the file header.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}

	defer func() {
		w.w.Reset(nopWriter{})
		w.w = nil
	}()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}

	if w.h == nil {
		return nil
	}
	return w.h.UpdateRecordCount(w.count, w.f)
}
