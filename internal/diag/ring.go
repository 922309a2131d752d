// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package diag keeps a bounded in-memory tail of recent log output so the
// diagnostics endpoint can report what the daemon and the player helper were
// doing when something went wrong.
package diag

import (
	"bytes"
	"sync"
)

const (
	// DefaultCapacity is the number of retained lines when none is given.
	DefaultCapacity = 256

	maxLineBytes    = 8 << 10  // single lines above this are dropped, not truncated
	maxPartialBytes = 16 << 10 // partial buffer reset threshold for writers that never newline
)

// Stats counts lines the ring refused to retain.
type Stats struct {
	DroppedTooLargeLines   uint64
	DroppedPartialOverflow uint64
}

// Ring is a thread-safe ring buffer over whole log lines. It implements
// io.Writer so it can sit behind a zerolog.MultiLevelWriter or a process
// stderr pipe; partial writes are buffered until a newline completes them.
type Ring struct {
	mu      sync.RWMutex
	lines   []string
	head    int
	size    int
	partial bytes.Buffer
	stats   Stats
}

// NewRing creates a Ring with the specified line capacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{
		lines: make([]string, capacity),
		size:  capacity,
	}
}

// Write implements io.Writer. Input is reassembled into complete lines; a
// chunk without a trailing newline stays buffered until the next write
// completes it.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial.Write(p)

	for {
		data := r.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(data[:idx], "\r"))
		r.partial.Next(idx + 1)
		if line == "" {
			continue
		}
		if len(line) > maxLineBytes {
			r.stats.DroppedTooLargeLines++
			continue
		}
		r.lines[r.head] = line
		r.head = (r.head + 1) % r.size
	}

	// A writer that never sends a newline must not grow the buffer forever.
	if r.partial.Len() > maxPartialBytes {
		r.partial.Reset()
		r.stats.DroppedPartialOverflow++
	}

	return len(p), nil
}

// LastN returns the last N retained lines in chronological order.
func (r *Ring) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.size {
		n = r.size
	}

	// r.head is the next write position, so the oldest retained line sits at
	// r.head when the ring has wrapped.
	ordered := make([]string, 0, r.size)
	for i := 0; i < r.size; i++ {
		idx := (r.head + i) % r.size
		if r.lines[idx] != "" {
			ordered = append(ordered, r.lines[idx])
		}
	}

	if len(ordered) <= n {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// Snapshot returns every retained line in chronological order.
func (r *Ring) Snapshot() []string {
	return r.LastN(r.size)
}

// Stats returns drop counters for observability.
func (r *Ring) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
