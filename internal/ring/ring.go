// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ring implements the bounded byte queues that decouple link I/O
// from protocol processing. Capacity is fixed at construction and is never
// exceeded: writers either block until space frees (Write) or fail fast
// (TryWrite), so an overflow is always a visible flow-control fault rather
// than silent byte loss.
package ring

import (
	"errors"
	"io"
	"sync"

	"github.com/ZaparooProject/go-serprog/internal/syncutil"
)

var (
	// ErrOverrun is returned by TryWrite when the data does not fit.
	ErrOverrun = errors.New("ring buffer overrun")
	// ErrClosed is returned for writes to a closed buffer.
	ErrClosed = errors.New("ring buffer closed")
)

// Buffer is a bounded circular byte queue safe for one reader and one
// writer goroutine (and incidental Close from a third).
type Buffer struct {
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []byte
	mu       syncutil.Mutex
	r        int // read index
	w        int // write index
	count    int
	closed   bool
}

// New creates a buffer holding at most capacity bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	b := &Buffer{buf: make([]byte, capacity)}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Read blocks until at least one byte is available, then copies up to
// len(p) bytes out. After Close it drains remaining data and then returns
// io.EOF, satisfying the usual io.Reader contract.
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 {
		if b.closed {
			return 0, io.EOF
		}
		b.notEmpty.Wait()
	}

	n := b.popLocked(p)
	b.notFull.Broadcast()
	return n, nil
}

// Write copies all of p into the buffer, blocking while space is
// insufficient. This is the outbound discipline: the encoder suspends
// rather than dropping response bytes.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for written < len(p) {
		for b.count == len(b.buf) {
			if b.closed {
				return written, ErrClosed
			}
			b.notFull.Wait()
		}
		if b.closed {
			return written, ErrClosed
		}
		written += b.pushLocked(p[written:])
		b.notEmpty.Broadcast()
	}
	return written, nil
}

// TryWrite copies all of p or none of it. This is the inbound discipline:
// the link I/O task must never stall on the protocol task, so a full ring
// is reported as ErrOverrun instead of waited out.
func (b *Buffer) TryWrite(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if len(p) > len(b.buf)-b.count {
		return ErrOverrun
	}
	for len(p) > 0 {
		n := b.pushLocked(p)
		p = p[n:]
	}
	b.notEmpty.Broadcast()
	return nil
}

// Close wakes all blocked readers and writers. Buffered data remains
// readable; writes fail with ErrClosed.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}

// pushLocked copies as much of p as fits contiguously and returns the
// amount copied. Caller holds mu and has ensured some space exists.
func (b *Buffer) pushLocked(p []byte) int {
	space := len(b.buf) - b.count
	if space == 0 {
		return 0
	}
	n := len(p)
	if n > space {
		n = space
	}
	// At most two copies around the wrap point.
	first := len(b.buf) - b.w
	if first > n {
		first = n
	}
	copy(b.buf[b.w:], p[:first])
	copy(b.buf, p[first:n])
	b.w = (b.w + n) % len(b.buf)
	b.count += n
	return n
}

// popLocked copies up to len(p) buffered bytes out. Caller holds mu and
// has ensured data exists.
func (b *Buffer) popLocked(p []byte) int {
	n := len(p)
	if n > b.count {
		n = b.count
	}
	first := len(b.buf) - b.r
	if first > n {
		first = n
	}
	copy(p[:first], b.buf[b.r:b.r+first])
	copy(p[first:n], b.buf)
	b.r = (b.r + n) % len(b.buf)
	b.count -= n
	return n
}
