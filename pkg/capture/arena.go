// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// ErrArenaExhausted is returned when an allocation does not fit in what is
// left of an Arena.
var ErrArenaExhausted = errors.New("capture arena exhausted")

// DefaultArenaSize is used when Options.Arena is nil.
const DefaultArenaSize = 64 << 20

// Arena hands out the buffers that hold copies of source memory during one
// capture pass. Its total size is fixed at creation. Release drops every
// buffer at once; nothing allocated from the arena may be used afterwards.
type Arena struct {
	limit    uint64
	used     uint64
	chunks   [][]byte
	released bool
}

// NewArena returns an Arena that hands out at most limit bytes.
func NewArena(limit uint64) *Arena {
	return &Arena{limit: limit}
}

// Alloc returns a zeroed buffer of n bytes.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if a.released {
		return nil, errors.New("capture arena already released")
	}
	if n < 0 {
		return nil, fmt.Errorf("negative allocation %d", n)
	}
	if uint64(n) > a.limit-a.used {
		return nil, fmt.Errorf("%w: %s requested, %s of %s left", ErrArenaExhausted,
			humanize.IBytes(uint64(n)), humanize.IBytes(a.limit-a.used), humanize.IBytes(a.limit))
	}
	b := make([]byte, n)
	a.used += uint64(n)
	a.chunks = append(a.chunks, b)
	return b, nil
}

// Used returns the number of bytes handed out.
func (a *Arena) Used() uint64 {
	return a.used
}

// Limit returns the arena size.
func (a *Arena) Limit() uint64 {
	return a.limit
}

// Release clears and drops every buffer.
func (a *Arena) Release() {
	for _, c := range a.chunks {
		for i := range c {
			c[i] = 0
		}
	}
	a.chunks = nil
	a.used = 0
	a.released = true
}
