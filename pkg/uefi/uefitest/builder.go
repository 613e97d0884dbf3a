// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uefitest assembles firmware volumes, files and sections for
// tests. Volumes use an erase polarity of 0xFF.
package uefitest

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"

	"github.com/linuxboot/dxeready/pkg/guid"
)

// Section returns a section with a common header of type typ.
func Section(typ uint8, body []byte) []byte {
	size := 4 + len(body)
	b := []byte{byte(size), byte(size >> 8), byte(size >> 16), typ}
	return append(b, body...)
}

// Sections concatenates sections, padding each to 4 bytes.
func Sections(secs ...[]byte) []byte {
	var b []byte
	for _, s := range secs {
		for len(b)%4 != 0 {
			b = append(b, 0)
		}
		b = append(b, s...)
	}
	return b
}

// UI returns a user interface section holding name.
func UI(name string) []byte {
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(name))
	if err != nil {
		panic(err)
	}
	return Section(0x15, append(enc, 0, 0))
}

// Compressed returns an EFI_SECTION_COMPRESSION with compression type
// ctype around payload.
func Compressed(ctype uint8, payload []byte) []byte {
	var h bytes.Buffer
	_ = binary.Write(&h, binary.LittleEndian, uint32(len(payload)))
	h.WriteByte(ctype)
	return Section(0x01, append(h.Bytes(), payload...))
}

// GUIDDefined returns an EFI_SECTION_GUID_DEFINED around payload.
func GUIDDefined(g guid.GUID, attributes uint16, payload []byte) []byte {
	h := make([]byte, 20)
	copy(h, g[:])
	binary.LittleEndian.PutUint16(h[16:], 4+20)
	binary.LittleEndian.PutUint16(h[18:], attributes)
	return Section(0x02, append(h, payload...))
}

// PE returns a minimal PE32+ image with no sections.
func PE(machine, subsystem uint16, sectionAlignment uint32) []byte {
	img := make([]byte, 0x40+4+20+112)
	img[0], img[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(img[0x3c:], 0x40)
	copy(img[0x40:], "PE\x00\x00")

	fh := img[0x44:]
	binary.LittleEndian.PutUint16(fh[0:], machine)
	binary.LittleEndian.PutUint16(fh[16:], 112) // SizeOfOptionalHeader
	binary.LittleEndian.PutUint16(fh[18:], 0x2022)

	oh := fh[20:]
	binary.LittleEndian.PutUint16(oh[0:], 0x20b)
	binary.LittleEndian.PutUint32(oh[32:], sectionAlignment)
	binary.LittleEndian.PutUint32(oh[36:], 0x20) // FileAlignment
	binary.LittleEndian.PutUint16(oh[68:], subsystem)
	return img
}

// PE32 returns a PE32 section holding a PE image.
func PE32(machine, subsystem uint16, sectionAlignment uint32) []byte {
	return Section(0x10, PE(machine, subsystem, sectionAlignment))
}

// FileState is the state byte of a live file in a volume with an erase
// polarity of 0xFF.
const FileState = ^uint8(0x07)

// File returns a firmware file of type typ holding the given sections. The
// body checksum is not used.
func File(name guid.GUID, typ uint8, secs ...[]byte) []byte {
	return FileWithState(name, typ, FileState, Sections(secs...))
}

// FileWithState returns a firmware file holding body with the given raw
// state byte.
func FileWithState(name guid.GUID, typ uint8, state uint8, body []byte) []byte {
	size := 0x18 + len(body)
	h := make([]byte, 0x18)
	copy(h, name[:])
	h[18] = typ
	h[19] = 0
	h[20], h[21], h[22] = byte(size), byte(size>>8), byte(size>>16)

	var sum uint8
	for _, c := range h {
		sum += c
	}
	h[16] = -sum
	h[17] = 0xAA
	h[23] = state
	return append(h, body...)
}

// Volume returns an FFS2 volume holding files, followed by freeSpace
// erased bytes.
func Volume(freeSpace int, files ...[]byte) []byte {
	return volume(nil, freeSpace, files...)
}

// NamedVolume is Volume with an extended header carrying name.
func NamedVolume(name guid.GUID, freeSpace int, files ...[]byte) []byte {
	return volume(&name, freeSpace, files...)
}

const headerLen = 56 + 16

func volume(name *guid.GUID, freeSpace int, files ...[]byte) []byte {
	data := make([]byte, headerLen)
	if name != nil {
		ext := make([]byte, 20)
		copy(ext, name[:])
		binary.LittleEndian.PutUint32(ext[16:], 20)
		data = append(data, ext...)
	}
	for _, f := range files {
		for len(data)%8 != 0 {
			data = append(data, 0xFF)
		}
		data = append(data, f...)
	}
	for len(data)%8 != 0 {
		data = append(data, 0xFF)
	}
	data = append(data, bytes.Repeat([]byte{0xFF}, freeSpace)...)

	copy(data[16:], guid.FFS2[:])
	binary.LittleEndian.PutUint64(data[32:], uint64(len(data)))
	copy(data[40:], "_FVH")
	binary.LittleEndian.PutUint32(data[44:], 0x0004FEFF)
	binary.LittleEndian.PutUint16(data[48:], headerLen)
	if name != nil {
		binary.LittleEndian.PutUint16(data[52:], headerLen)
	}
	data[55] = 2
	binary.LittleEndian.PutUint32(data[56:], 1)
	binary.LittleEndian.PutUint32(data[60:], uint32(len(data)))

	var sum uint16
	for i := 0; i < headerLen; i += 2 {
		sum += binary.LittleEndian.Uint16(data[i:])
	}
	binary.LittleEndian.PutUint16(data[50:], -sum)
	return data
}
