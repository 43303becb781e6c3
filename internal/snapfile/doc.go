// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

// Package snapfile reads and writes hashtable snapshots: flat streams
// of key/value records in the order the table's buckets are walked.
//
// Two encodings are supported.  The legacy encoding is the headerless
// stream produced by the original C implementation, kept byte-for-byte
// compatible so existing dumps stay loadable.  Length counters are
// 64-bit little-endian, and the key length includes the C string's
// trailing NUL:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| key length (includes trailing NUL)    |
//	+----+----+----+----+----+----+----+----+
//	| key bytes ... 0x00                    |
//	+----+----+----+----+----+----+----+----+
//	| value length                          |
//	+----+----+----+----+----+----+----+----+
//	| value bytes ...                       |
//	+----+----+----+----+----+----+----+----+
//
// The v1 encoding starts with a 64-byte header (magic, format version,
// record count) followed by records with a fixed 12-byte header:
//
//	 0    1    2    3    4    5    6    7    8    9   10   11
//	+----+----+----+----+----+----+----+----+----+----+----+----+
//	| value checksum    | key length        | value length      |
//	+----+----+----+----+----+----+----+----+----+----+----+----+
//	| key bytes ... | value bytes ...
//	+----+----+----+----+----+----+
//
// The checksum is calculated from the bytes of the value, and is used to
// ensure we don't have un-detected on-disk corruption (with high
// probability).  Readers distinguish the two encodings by the magic
// number: a legacy stream beginning with those bytes would imply a
// multi-gigabyte first key, which no real dump contains.
package snapfile
