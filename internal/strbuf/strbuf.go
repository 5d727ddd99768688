// Package strbuf owns the length-tracked byte buffer used for every stored
// text field.
//
// Ownership boundary:
// - a Buffer has exactly one owner at a time
// - the owner releases it exactly once
// - Outstanding reports buffers allocated but not yet released
package strbuf

import (
	"bytes"
	"errors"
	"sync/atomic"
)

var ErrCapacity = errors.New("strbuf: write exceeds capacity")

var outstanding atomic.Int64

// Buffer is an owned byte sequence with an explicit logical length.
type Buffer struct {
	data     []byte
	n        int
	released bool
}

// Allocate returns a buffer with room for capacity bytes and length 0.
func Allocate(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	outstanding.Add(1)
	return &Buffer{data: make([]byte, capacity)}
}

// FromBytes returns an owned copy of p.
func FromBytes(p []byte) *Buffer {
	b := Allocate(len(p))
	b.n = copy(b.data, p)
	return b
}

// FromString returns an owned copy of s.
func FromString(s string) *Buffer {
	b := Allocate(len(s))
	b.n = copy(b.data, s)
	return b
}

// Write appends p, failing without a partial write when capacity would be exceeded.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mustLive()
	if b.n+len(p) > len(b.data) {
		return 0, ErrCapacity
	}
	b.n += copy(b.data[b.n:], p)
	return len(p), nil
}

// WriteString appends s under the same rules as Write.
func (b *Buffer) WriteString(s string) (int, error) {
	b.mustLive()
	if b.n+len(s) > len(b.data) {
		return 0, ErrCapacity
	}
	b.n += copy(b.data[b.n:], s)
	return len(s), nil
}

// Release drops the content. Releasing nil is a no-op; releasing twice panics.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	if b.released {
		panic("strbuf: double release")
	}
	b.released = true
	b.data = nil
	b.n = 0
	outstanding.Add(-1)
}

// Len returns the content length.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.n
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes returns the content without copying. The slice is valid until Release.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data[:b.n]
}

func (b *Buffer) String() string {
	if b == nil {
		return ""
	}
	return string(b.data[:b.n])
}

// Released reports whether the buffer has been released.
func (b *Buffer) Released() bool {
	return b != nil && b.released
}

// Equal reports whether both buffers hold the same bytes.
func (b *Buffer) Equal(other *Buffer) bool {
	return bytes.Equal(b.Bytes(), other.Bytes())
}

// Compare orders buffers byte-wise; a proper prefix sorts first.
func Compare(a, b *Buffer) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// Outstanding returns the number of buffers allocated and not yet released.
func Outstanding() int64 {
	return outstanding.Load()
}

func (b *Buffer) mustLive() {
	if b.released {
		panic("strbuf: use after release")
	}
}
