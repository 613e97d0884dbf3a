// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uefi parses firmware volumes, the files they contain and the
// sections of those files into a tree that visitors walk.
package uefi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	pkgbytes "github.com/linuxboot/dxeready/pkg/bytes"
	"github.com/linuxboot/dxeready/pkg/compression"
	"github.com/linuxboot/dxeready/pkg/log"
)

// DefaultMaxNesting bounds how deep encapsulation sections and volume
// images inside volumes are followed.
const DefaultMaxNesting = 4

// ParseOptions controls how much of a volume is decoded. The zero value
// parses headers and uncompressed encapsulations only.
type ParseOptions struct {
	// Decompress runs the available decoders over GUID-defined sections
	// that require processing, so their contents can be described.
	Decompress bool
	// Compression selects the available decoders.
	Compression compression.Options
	// MaxNesting defaults to DefaultMaxNesting when zero.
	MaxNesting int
	Logger     log.Logger
}

func (o ParseOptions) maxNesting() int {
	if o.MaxNesting <= 0 {
		return DefaultMaxNesting
	}
	return o.MaxNesting
}

func (o ParseOptions) logger() log.Logger {
	return log.OrDiscard(o.Logger)
}

// Firmware is an interface to describe generic firmware types. When the
// firmware is parsed, all the Firmware objects are laid out in a tree (similar
// to an AST). This interface represents one node in said tree.
type Firmware interface {
	Buf() []byte

	// Apply a visitor to the Firmware.
	Apply(v Visitor) error

	// Apply a visitor to all the direct children of the Firmware
	// (excluding the Firmware itself).
	ApplyChildren(v Visitor) error

	// Position is the offset of the node within its volume, or the base
	// address for a volume.
	Position() uint64
}

// Visitor represents an operation which can be applied to the Firmware.
// Visit is called for every node the visitor reaches; recursing is done by
// calling f.ApplyChildren(v) from Visit.
type Visitor interface {
	Run(Firmware) error
	Visit(Firmware) error
}

// Checksum8 does a 8 bit checksum of the slice passed in.
func Checksum8(buf []byte) uint8 {
	var sum uint8
	for _, val := range buf {
		sum += val
	}
	return sum
}

// Checksum16 does a 16 bit checksum of the byte slice passed in.
func Checksum16(buf []byte) (uint16, error) {
	buflen := len(buf)
	if buflen%2 != 0 {
		return 0, fmt.Errorf("byte slice does not have even length, not able to do 16 bit checksum. Length was %v",
			buflen)
	}
	var sum uint16
	for i := 0; i < buflen; i += 2 {
		sum += binary.LittleEndian.Uint16(buf[i:])
	}
	return sum, nil
}

// Read3Size reads a 3-byte size and returns it as a uint64
func Read3Size(size [3]uint8) uint64 {
	return uint64(size[2])<<16 |
		uint64(size[1])<<8 | uint64(size[0])
}

// Write3Size writes a size into a 3-byte array
func Write3Size(size uint64) [3]uint8 {
	if size >= 0xFFFFFF {
		return [3]uint8{0xFF, 0xFF, 0xFF}
	}
	b := [3]uint8{uint8(size), uint8(size >> 8), uint8(size >> 16)}
	return b
}

// Align aligns an address
func Align(val uint64, base uint64) uint64 {
	return (val + base - 1) & ^(base - 1)
}

// Align4 aligns an address to 4 bytes
func Align4(val uint64) uint64 {
	return Align(val, 4)
}

// Align8 aligns an address to 8 bytes
func Align8(val uint64) uint64 {
	return Align(val, 8)
}

// IsErased check if the buffer is ErasePolarity
func IsErased(buf []byte, polarity byte) bool {
	return pkgbytes.IsFilled(buf, polarity)
}

func readLE(buf []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, v)
}
