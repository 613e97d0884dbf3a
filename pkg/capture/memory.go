// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/u-root/u-root/pkg/memio"
)

// PhysicalMemory reads physical memory. The offset passed to ReadAt is a
// physical address.
type PhysicalMemory = io.ReaderAt

// Image is a dump of physical memory loaded at Base.
type Image struct {
	Base uint64
	Data []byte
}

// LoadImage reads a memory dump taken at base from path.
func LoadImage(path string, base uint64) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, Data: data}, nil
}

// ReadAt implements io.ReaderAt over physical addresses.
func (m *Image) ReadAt(p []byte, off int64) (int, error) {
	addr := uint64(off)
	if off < 0 || addr < m.Base || addr-m.Base >= uint64(len(m.Data)) {
		return 0, fmt.Errorf("address %#x is outside the image [%#x, %#x)", addr, m.Base, m.Base+uint64(len(m.Data)))
	}
	n := copy(p, m.Data[addr-m.Base:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// DevMem reads the running system's physical memory through /dev/mem.
type DevMem struct{}

// ReadAt implements io.ReaderAt over physical addresses.
func (DevMem) ReadAt(p []byte, off int64) (int, error) {
	b := memio.ByteSlice(p)
	if err := memio.Read(off, &b); err != nil {
		return 0, fmt.Errorf("reading %d bytes at %#x: %w", len(p), off, err)
	}
	return len(p), nil
}
