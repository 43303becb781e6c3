// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

// Package hashtable implements a concurrent in-memory key/value store:
// a chained hash table with a lock per bucket, transparent growth, and
// save/restore to a flat binary snapshot.
package hashtable

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	// DefaultCapacity matches the C library's initial table size.
	DefaultCapacity = 128

	defaultMaxLoadFactor = 0.75
)

type entry struct {
	key   string
	value []byte
	next  *entry
}

type bucket struct {
	mu   sync.Mutex
	head *entry
}

// Table maps string keys to opaque byte payloads.  Operations on
// different buckets proceed in parallel; values passed in and handed
// out are always independent copies, never aliases into the table.
type Table struct {
	// mu guards the identity of the bucket array: growth, snapshots, and
	// Close hold it for writing, every bucket-level operation for reading.
	mu      sync.RWMutex
	buckets []bucket
	count   atomic.Int64
	maxLoad float64
	logger  *slog.Logger
}

// Open allocates an empty table with the given number of buckets.  The
// table grows on demand; initialCapacity only sets the starting point.
func Open(initialCapacity int, opts ...Option) (*Table, error) {
	if initialCapacity <= 0 {
		return nil, fmt.Errorf("initial capacity must be positive (got %d)", initialCapacity)
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxLoadFactor <= 0 {
		return nil, fmt.Errorf("max load factor must be positive (got %f)", options.maxLoadFactor)
	}

	return &Table{
		buckets: make([]bucket, initialCapacity),
		maxLoad: options.maxLoadFactor,
		logger:  options.logger,
	}, nil
}

// hashKey is the djb2 hash the C library indexes with; bucket selection depends on it, so
// snapshots stay loadable across implementations but indices must be
// recomputed whenever the table grows.
func hashKey(key string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(key); i++ {
		h = h*33 + uint32(key[i])
	}
	return h
}

// Insert stores a copy of value under key, replacing any previous value.
func (t *Table) Insert(key string, value []byte) {
	t.maybeGrow()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.buckets) == 0 {
		return
	}

	b := &t.buckets[hashKey(key)%uint32(len(t.buckets))]
	b.mu.Lock()
	defer b.mu.Unlock()

	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			e.value = copyBytes(value)
			return
		}
	}
	b.head = &entry{key: key, value: copyBytes(value), next: b.head}
	t.count.Add(1)
}

// Lookup returns a copy of the value stored under key.  The second
// return value reports whether the key was present; a present key with
// an empty value yields a zero-length (non-nil) slice.
func (t *Table) Lookup(key string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.buckets) == 0 {
		return nil, false
	}

	b := &t.buckets[hashKey(key)%uint32(len(t.buckets))]
	b.mu.Lock()
	defer b.mu.Unlock()

	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			return copyBytes(e.value), true
		}
	}
	return nil, false
}

// Delete removes key from the table, reporting whether it was present.
// Deleting an absent key leaves the table untouched.
func (t *Table) Delete(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.buckets) == 0 {
		return false
	}

	b := &t.buckets[hashKey(key)%uint32(len(t.buckets))]
	b.mu.Lock()
	defer b.mu.Unlock()

	var prev *entry
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			if prev != nil {
				prev.next = e.next
			} else {
				b.head = e.next
			}
			t.count.Add(-1)
			return true
		}
		prev = e
	}
	return false
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	return int(t.count.Load())
}

// Cap reports the current bucket count.
func (t *Table) Cap() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buckets)
}

// Close releases the table's entries and bucket array.  The table must
// not be used afterwards; operations on a closed table are no-ops that
// report not-found.
func (t *Table) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets = nil
	t.count.Store(0)
}

// maybeGrow doubles the bucket array once the fill ratio crosses the
// threshold.  The cheap pre-check reads racily; the decision itself is
// re-taken under the write lock, so concurrent inserts produce exactly
// one resize and none of them can be mid-flight against the old array
// when it is swapped out.
func (t *Table) maybeGrow() {
	t.mu.RLock()
	over := t.overThreshold()
	t.mu.RUnlock()
	if !over {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.overThreshold() {
		t.grow()
	}
}

// overThreshold needs t.mu held (either mode).
func (t *Table) overThreshold() bool {
	n := len(t.buckets)
	return n > 0 && float64(t.count.Load())/float64(n) > t.maxLoad
}

// grow needs t.mu held for writing.  Entry nodes are relinked into the
// doubled array, not reallocated.
func (t *Table) grow() {
	old := t.buckets
	next := make([]bucket, 2*len(old))
	for i := range old {
		e := old[i].head
		for e != nil {
			rest := e.next
			b := &next[hashKey(e.key)%uint32(len(next))]
			e.next = b.head
			b.head = e
			e = rest
		}
	}
	t.buckets = next
	t.logger.Debug("grew table", "capacity", len(next), "entries", t.count.Load())
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
