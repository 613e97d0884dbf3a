// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Allocator hands out owned buffers for copies of source memory.
type Allocator interface {
	Alloc(n int) ([]byte, error)
}

type heap struct{}

func (heap) Alloc(n int) ([]byte, error) { return make([]byte, n), nil }

// ReadList copies the HOB list starting at physical address base out of mem.
// The list must start with the PHIT HOB, whose EfiEndOfHobList bounds the
// copy. The copy never exceeds budget bytes; a list that does not end
// within the budget fails later in the Walker with ErrUnterminated.
func ReadList(mem io.ReaderAt, base uint64, budget uint64, alloc Allocator) ([]byte, error) {
	if alloc == nil {
		alloc = heap{}
	}
	if budget < HandoffSize {
		return nil, fmt.Errorf("byte budget %d is smaller than the PHIT HOB", budget)
	}

	phitBuf := make([]byte, HandoffSize)
	if _, err := mem.ReadAt(phitBuf, int64(base)); err != nil {
		return nil, fmt.Errorf("unable to read PHIT HOB at %#x: %w", base, err)
	}
	r := bytes.NewReader(phitBuf)
	var hdr Header
	var phit Handoff
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Type != TypeHandoff {
		return nil, parseErrorAt(0, fmt.Errorf("first HOB is %s, want %s", hdr.Type, TypeHandoff))
	}
	if hdr.Length < HandoffSize {
		return nil, parseErrorAt(0, fmt.Errorf("%w: PHIT HOB declares %d bytes", ErrBadLength, hdr.Length))
	}
	if err := binary.Read(r, binary.LittleEndian, &phit); err != nil {
		return nil, err
	}

	size := budget
	if end := phit.EfiEndOfHobList; end >= base && end-base <= budget-HeaderSize {
		size = end - base + HeaderSize
	}
	buf, err := alloc.Alloc(int(size))
	if err != nil {
		return nil, err
	}
	n, err := mem.ReadAt(buf, int64(base))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to read HOB list at %#x: %w", base, err)
	}
	return buf[:n], nil
}
