// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guid implements the mixed-endian GUID used by UEFI and PI
// structures.
package guid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Size represents number of bytes in a GUID
	Size = 16
	// UExample is a example of a string GUID
	UExample  = "01234567-89AB-CDEF-0123-456789ABCDEF"
	strFormat = "%02X%02X%02X%02X-%02X%02X-%02X%02X-%02X%02X-%02X%02X%02X%02X%02X%02X"
)

var (
	fields = [...]int{4, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1}
)

// GUID represents a unique identifier in its in-memory (mixed-endian) layout.
type GUID [Size]byte

// Zero is the all-zero GUID.
var Zero GUID

func reverse(b []byte) {
	for i := 0; i < len(b)/2; i++ {
		other := len(b) - i - 1
		b[other], b[i] = b[i], b[other]
	}
}

// Parse parses a guid string. Hyphens are optional.
func Parse(s string) (GUID, error) {
	stripped := strings.Replace(s, "-", "", -1)
	decoded, err := hex.DecodeString(stripped)
	if err != nil {
		return Zero, fmt.Errorf("guid string not correct, need string of the format %v, got %q",
			UExample, s)
	}
	if len(decoded) != Size {
		return Zero, fmt.Errorf("guid string has incorrect length, need string of the format %v, got %q",
			UExample, s)
	}

	var u GUID
	i := 0
	copy(u[:], decoded)
	// Correct for endianness.
	for _, fieldlen := range fields {
		reverse(u[i : i+fieldlen])
		i += fieldlen
	}
	return u, nil
}

// MustParse parses a guid string or panics. Only for package-level
// constants.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FromBytes copies a GUID out of its 16-byte in-memory representation.
func FromBytes(b []byte) (GUID, error) {
	var u GUID
	if len(b) < Size {
		return u, fmt.Errorf("need %d bytes for a GUID, got %d", Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

func (u GUID) String() string {
	// Not a pointer receiver so we don't have to manually copy.
	i := 0
	for _, fieldlen := range fields {
		reverse(u[i : i+fieldlen])
		i += fieldlen
	}
	b := make([]interface{}, Size)
	for i := range u[:] {
		b[i] = u[i]
	}
	return fmt.Sprintf(strFormat, b...)
}

// IsZero reports whether u is the all-zero GUID.
func (u GUID) IsZero() bool {
	return u == Zero
}

// Compare orders GUIDs by their canonical string form.
func Compare(a, b GUID) int {
	if a == b {
		return 0
	}
	return strings.Compare(a.String(), b.String())
}

// MarshalText implements encoding.TextMarshaler, so a GUID is a plain
// string in JSON and YAML.
func (u GUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *GUID) UnmarshalText(b []byte) error {
	g, err := Parse(string(bytes.TrimSpace(b)))
	if err != nil {
		return err
	}
	*u = g
	return nil
}
