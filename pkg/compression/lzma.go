// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compression

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// LZMA implements Compressor and uses a Go-based implementation.
type LZMA struct{}

// Name returns the type of compression employed.
func (c *LZMA) Name() string {
	return "LZMA"
}

// Decode decodes a byte slice of LZMA data.
func (c *LZMA) Decode(encodedData []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewBuffer(encodedData))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Encode encodes a byte slice with LZMA.
func (c *LZMA) Encode(decodedData []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := lzma.WriterConfig{
		SizeInHeader: true,
		Size:         int64(len(decodedData)),
		EOSMarker:    false,
	}.NewWriter(buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(decodedData); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LZMAX86 implements Compressor for LZMA with the x86 branch converter
// applied to the decoded data.
type LZMAX86 struct {
	lzma Compressor
}

// Name returns the type of compression employed.
func (c *LZMAX86) Name() string {
	return "LZMAX86"
}

// Decode decodes a byte slice of LZMA data and reverts the x86 filter.
func (c *LZMAX86) Decode(encodedData []byte) ([]byte, error) {
	decodedData, err := c.lzma.Decode(encodedData)
	if err != nil {
		return nil, err
	}
	x86Convert(decodedData, 0, false)
	return decodedData, nil
}

// Encode applies the x86 filter and encodes the result with LZMA.
func (c *LZMAX86) Encode(decodedData []byte) ([]byte, error) {
	filtered := append([]byte{}, decodedData...)
	x86Convert(filtered, 0, true)
	return c.lzma.Encode(filtered)
}

func test86MSByte(b byte) bool {
	return b == 0 || b == 0xFF
}

var (
	maskToAllowedStatus = [8]bool{true, true, true, false, true, false, false, false}
	maskToBitNumber     = [8]uint32{0, 1, 2, 2, 3, 3, 3, 3}
)

// x86Convert rewrites the relative targets of E8/E9 (call/jmp) instructions
// in place: to absolute when encoding, back to relative when decoding. ip is
// the address of data[0].
func x86Convert(data []byte, ip uint32, encoding bool) {
	if len(data) < 5 {
		return
	}
	ip += 5
	limit := len(data) - 4
	var prevMask uint32
	pos, prevPos := 0, -1
	for {
		for pos < limit && data[pos]&0xFE != 0xE8 {
			pos++
		}
		if pos >= limit {
			return
		}
		if d := pos - prevPos; d > 3 {
			prevMask = 0
		} else {
			prevMask = (prevMask << uint(d-1)) & 7
			if prevMask != 0 {
				b := data[pos+4-int(maskToBitNumber[prevMask])]
				if !maskToAllowedStatus[prevMask] || test86MSByte(b) {
					prevPos = pos
					prevMask = ((prevMask << 1) & 7) | 1
					pos++
					continue
				}
			}
		}
		prevPos = pos

		if !test86MSByte(data[pos+4]) {
			prevMask = ((prevMask << 1) & 7) | 1
			pos++
			continue
		}
		src := uint32(data[pos+4])<<24 | uint32(data[pos+3])<<16 | uint32(data[pos+2])<<8 | uint32(data[pos+1])
		var dest uint32
		for {
			if encoding {
				dest = ip + uint32(pos) + src
			} else {
				dest = src - (ip + uint32(pos))
			}
			if prevMask == 0 {
				break
			}
			index := maskToBitNumber[prevMask] * 8
			if !test86MSByte(byte(dest >> (24 - index))) {
				break
			}
			src = dest ^ ((1 << (32 - index)) - 1)
		}
		data[pos+4] = ^byte(((dest >> 24) & 1) - 1)
		data[pos+3] = byte(dest >> 16)
		data[pos+2] = byte(dest >> 8)
		data[pos+1] = byte(dest)
		pos += 5
	}
}
