// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package snapfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dgryski/go-farm"
)

// Reader decodes a snapshot record stream, sniffing which encoding it
// was written with.  Next returns io.EOF once the stream is exhausted.
type Reader struct {
	r         *bufio.Reader
	legacy    bool
	remaining uint64 // v1 only
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, defaultBufferSize)

	head, err := br.Peek(fileHeaderSize)
	if len(head) < 8 {
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("bufio.Peek: %w", err)
		}
		// too short to carry a v1 header; a legacy stream (maybe empty)
		return &Reader{r: br, legacy: true}, nil
	}

	if binary.LittleEndian.Uint32(head[:4]) != magicSnapshot {
		return &Reader{r: br, legacy: true}, nil
	}

	if len(head) < fileHeaderSize {
		return nil, fmt.Errorf("snapshot header truncated: %d < %d bytes", len(head), fileHeaderSize)
	}
	var h fileHeader
	if err := h.UnmarshalBytes(head); err != nil {
		return nil, fmt.Errorf("fileHeader.UnmarshalBytes: %w", err)
	}
	if _, err := br.Discard(fileHeaderSize); err != nil {
		return nil, fmt.Errorf("bufio.Discard: %w", err)
	}

	return &Reader{r: br, remaining: h.recordCount}, nil
}

func (r *Reader) Next() (key string, value []byte, err error) {
	if r.legacy {
		return r.nextLegacy()
	}
	return r.nextV1()
}

func (r *Reader) nextV1() (key string, value []byte, err error) {
	if r.remaining == 0 {
		return "", nil, io.EOF
	}

	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		return "", nil, fmt.Errorf("read record header: %w", err)
	}
	expectedChecksum := binary.LittleEndian.Uint32(header[:4])
	keyLen := binary.LittleEndian.Uint32(header[4:8])
	valueLen := binary.LittleEndian.Uint32(header[8:12])

	keyBuf := make([]byte, keyLen)
	if _, err := io.ReadFull(r.r, keyBuf); err != nil {
		return "", nil, fmt.Errorf("read key (%d bytes): %w", keyLen, err)
	}
	value = make([]byte, valueLen)
	if _, err := io.ReadFull(r.r, value); err != nil {
		return "", nil, fmt.Errorf("read value (%d bytes): %w", valueLen, err)
	}

	checksum := uint32(farm.Hash64(value))
	if expectedChecksum != checksum {
		return "", nil, fmt.Errorf("checksum failed (%d != %d): snapshot corrupted", expectedChecksum, checksum)
	}

	r.remaining--
	return string(keyBuf), value, nil
}

func (r *Reader) nextLegacy() (key string, value []byte, err error) {
	var lenBuf [legacyCounterSize]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			// clean end of stream
			return "", nil, io.EOF
		}
		return "", nil, fmt.Errorf("read key length: %w", err)
	}
	keyLen := binary.LittleEndian.Uint64(lenBuf[:])
	if keyLen == 0 || keyLen > maxKeyLen {
		return "", nil, fmt.Errorf("key length %d out of range: snapshot corrupted", keyLen)
	}

	keyBuf := make([]byte, keyLen)
	if _, err := io.ReadFull(r.r, keyBuf); err != nil {
		return "", nil, fmt.Errorf("read key (%d bytes): %w", keyLen, err)
	}
	if keyBuf[keyLen-1] != 0 {
		return "", nil, fmt.Errorf("key is not NUL-terminated: snapshot corrupted")
	}

	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return "", nil, fmt.Errorf("read value length: %w", err)
	}
	valueLen := binary.LittleEndian.Uint64(lenBuf[:])
	if valueLen > maxValueLen {
		return "", nil, fmt.Errorf("value length %d out of range: snapshot corrupted", valueLen)
	}

	value = make([]byte, valueLen)
	if _, err := io.ReadFull(r.r, value); err != nil {
		return "", nil, fmt.Errorf("read value (%d bytes): %w", valueLen, err)
	}

	return string(keyBuf[:keyLen-1]), value, nil
}
