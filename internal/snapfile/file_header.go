// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package snapfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicSnapshot         = uint32(0xDBA5C0DE)
	snapshotFormatVersion = uint32(1)

	// header is padded out so records start at a cache-line boundary
	fileHeaderSize = 64
)

type fileHeader struct {
	magic         uint32
	formatVersion uint32
	recordCount   uint64
}

func newFileHeader() *fileHeader {
	return &fileHeader{
		magic:         magicSnapshot,
		formatVersion: snapshotFormatVersion,
	}
}

func (h *fileHeader) WriteTo(w io.Writer) (n int64, err error) {
	var headerBuf [fileHeaderSize]byte
	binary.LittleEndian.PutUint32(headerBuf[:4], h.magic)
	binary.LittleEndian.PutUint32(headerBuf[4:8], h.formatVersion)
	binary.LittleEndian.PutUint64(headerBuf[8:16], h.recordCount)

	if _, err = w.Write(headerBuf[:]); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return int64(fileHeaderSize), nil
}

// UpdateRecordCount backpatches the record count once writing is done;
// the count isn't known until the last record is out.
func (h *fileHeader) UpdateRecordCount(n uint64, w io.WriterAt) error {
	h.recordCount = n

	var recordCountBuf [8]byte
	binary.LittleEndian.PutUint64(recordCountBuf[:], h.recordCount)
	if _, err := w.WriteAt(recordCountBuf[:], 8); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	}

	return nil
}

func (h *fileHeader) UnmarshalBytes(headerBytes []byte) error {
	if len(headerBytes) < fileHeaderSize {
		return fmt.Errorf("headerBytes too short: %d < %d", len(headerBytes), fileHeaderSize)
	}

	headerBytes = headerBytes[:fileHeaderSize]

	h.magic = binary.LittleEndian.Uint32(headerBytes[:4])
	if h.magic != magicSnapshot {
		return fmt.Errorf("bad magic number on snapshot (%x) -- not a hashtable snapshot or corrupted", h.magic)
	}

	h.formatVersion = binary.LittleEndian.Uint32(headerBytes[4:8])
	if h.formatVersion != snapshotFormatVersion {
		return fmt.Errorf("this version of the hashtable library can only read v%d snapshots; found v%d", snapshotFormatVersion, h.formatVersion)
	}

	h.recordCount = binary.LittleEndian.Uint64(headerBytes[8:16])

	return nil
}
