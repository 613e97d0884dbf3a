// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bytes has helpers for inspecting raw memory copied out of the
// firmware hand-off.
package bytes

import "encoding/binary"

// IsZeroFilled returns true if b consists of zeros only.
func IsZeroFilled(b []byte) bool {
	return IsFilled(b, 0)
}

// IsFilled returns true if every byte of b equals v. An erased flash region
// is filled with its erase polarity.
func IsFilled(b []byte, v byte) bool {
	word := uint64(v) * 0x0101010101010101
	for len(b) >= 8 {
		if binary.LittleEndian.Uint64(b) != word {
			return false
		}
		b = b[8:]
	}
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}
