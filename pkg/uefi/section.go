// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uefi

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/linuxboot/dxeready/pkg/compression"
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
)

// Section header sizes.
const (
	SectionHeaderSize    = 0x04
	SectionExtHeaderSize = 0x08

	guidDefinedHeaderSize = 20
	compressionHeaderSize = 5
)

// SectionType holds a section type value
type SectionType uint8

// UEFI Section types
const (
	SectionTypeAll                 SectionType = 0x00
	SectionTypeCompression         SectionType = 0x01
	SectionTypeGUIDDefined         SectionType = 0x02
	SectionTypeDisposable          SectionType = 0x03
	SectionTypePE32                SectionType = 0x10
	SectionTypePIC                 SectionType = 0x11
	SectionTypeTE                  SectionType = 0x12
	SectionTypeDXEDepEx            SectionType = 0x13
	SectionTypeVersion             SectionType = 0x14
	SectionTypeUserInterface       SectionType = 0x15
	SectionTypeCompatibility16     SectionType = 0x16
	SectionTypeFirmwareVolumeImage SectionType = 0x17
	SectionTypeFreeformSubtypeGUID SectionType = 0x18
	SectionTypeRaw                 SectionType = 0x19
	SectionTypePEIDepEx            SectionType = 0x1b
	SectionMMDepEx                 SectionType = 0x1c
)

// GUIDEDSectionAttribute holds a GUIDED section attribute bitfield
type GUIDEDSectionAttribute uint16

// UEFI GUIDED Section Attributes
const (
	GUIDEDSectionProcessingRequired GUIDEDSectionAttribute = 0x01
	GUIDEDSectionAuthStatusValid    GUIDEDSectionAttribute = 0x02
)

// Compression types of an EFI_SECTION_COMPRESSION.
const (
	NotCompressed        uint8 = 0x00
	StandardCompression  uint8 = 0x01
	compressionTypeLimit uint8 = 0x02
)

// SectionHeader represents an EFI_COMMON_SECTION_HEADER as specified in
// UEFI PI Spec 3.2.4 Firmware File Section
type SectionHeader struct {
	Size [3]uint8
	Type SectionType
}

// SectionExtHeader represents an EFI_COMMON_SECTION_HEADER2 as specified in
// UEFI PI Spec 3.2.4 Firmware File Section
type SectionExtHeader struct {
	SectionHeader
	ExtendedSize uint32
}

// SectionGUIDDefinedHeader contains the fields for a EFI_SECTION_GUID_DEFINED
// encapsulated section header.
type SectionGUIDDefinedHeader struct {
	GUID       guid.GUID
	DataOffset uint16
	Attributes uint16
}

// SectionCompressionHeader contains the fields for a EFI_SECTION_COMPRESSION
// encapsulated section header.
type SectionCompressionHeader struct {
	UncompressedLength uint32
	CompressionType    uint8
}

// Section represents a Firmware File Section
type Section struct {
	Header     SectionExtHeader
	HeaderSize uint64
	// Offset is the position of the section within its parent's data.
	Offset uint64

	// For EFI_SECTION_GUID_DEFINED
	GUIDDefined *SectionGUIDDefinedHeader
	// For encapsulation sections, the encoding of the payload.
	Compression record.Compression

	// For EFI_SECTION_PE32, nil when the image headers could not be read.
	PE *record.PEInfo

	// For EFI_SECTION_USER_INTERFACE
	Name string

	// Encapsulated sections, and volumes found in a volume image section.
	Encapsulated []*Section
	Volumes      []*FirmwareVolume

	// Err is set when the contents could not be fully described. The
	// section itself is well formed.
	Err error

	buf []byte
}

// Buf returns the buffer.
func (s *Section) Buf() []byte {
	return s.buf
}

// Position returns the offset of the section within its parent's data.
func (s *Section) Position() uint64 {
	return s.Offset
}

// Apply calls the visitor on the Section.
func (s *Section) Apply(v Visitor) error {
	return v.Visit(s)
}

// ApplyChildren calls the visitor on each child node of Section.
func (s *Section) ApplyChildren(v Visitor) error {
	for _, es := range s.Encapsulated {
		if err := es.Apply(v); err != nil {
			return err
		}
	}
	for _, fv := range s.Volumes {
		if err := fv.Apply(v); err != nil {
			return err
		}
	}
	return nil
}

// Data returns the section contents after the common header.
func (s *Section) Data() []byte {
	return s.buf[s.HeaderSize:]
}

// NewSection parses a sequence of bytes and returns a Section
// object, if a valid one is passed, or an error.
func NewSection(buf []byte, opts ParseOptions) (*Section, error) {
	return newSection(buf, 0, opts, 0)
}

// parseSections reads a stream of 4-byte aligned sections. The sections
// parsed before a malformed one are returned along with the error.
func parseSections(buf []byte, opts ParseOptions, depth int) ([]*Section, error) {
	var sections []*Section
	for offset := uint64(0); offset < uint64(len(buf)); {
		s, err := newSection(buf[offset:], offset, opts, depth)
		if err != nil {
			return sections, fmt.Errorf("section at offset %#x: %w", offset, err)
		}
		sections = append(sections, s)
		offset = Align4(offset + uint64(s.Header.ExtendedSize))
	}
	return sections, nil
}

func newSection(buf []byte, offset uint64, opts ParseOptions, depth int) (*Section, error) {
	s := Section{Offset: offset, HeaderSize: SectionHeaderSize}
	if len(buf) < SectionHeaderSize {
		return nil, fmt.Errorf("section header truncated, %d bytes left", len(buf))
	}
	if err := readLE(buf, &s.Header.SectionHeader); err != nil {
		return nil, err
	}

	if s.Header.Size == [3]uint8{0xFF, 0xFF, 0xFF} {
		// Extended Header
		if len(buf) < SectionExtHeaderSize {
			return nil, fmt.Errorf("extended section header truncated, %d bytes left", len(buf))
		}
		if err := readLE(buf[SectionHeaderSize:], &s.Header.ExtendedSize); err != nil {
			return nil, err
		}
		if s.Header.ExtendedSize == 0xFFFFFFFF {
			return nil, errors.New("section size and extended size are all FFs! there should not be free space inside a file")
		}
		s.HeaderSize = SectionExtHeaderSize
	} else {
		// Copy small size into big for easier handling.
		// Section's extended size is 32 bits unlike file's
		s.Header.ExtendedSize = uint32(Read3Size(s.Header.Size))
	}

	if uint64(s.Header.ExtendedSize) < s.HeaderSize {
		return nil, fmt.Errorf("section size %#x is smaller than its header", s.Header.ExtendedSize)
	}
	if buflen := len(buf); int(s.Header.ExtendedSize) > buflen {
		return nil, fmt.Errorf("section size mismatch! Section has size %v, but buffer is %v bytes big",
			s.Header.ExtendedSize, buflen)
	}
	// Slice buffer to the correct size.
	s.buf = buf[:s.Header.ExtendedSize]
	data := s.Data()
	nested := depth < opts.maxNesting()

	// Section type specific data
	switch s.Header.Type {
	case SectionTypeCompression:
		var ch SectionCompressionHeader
		if len(data) < compressionHeaderSize {
			return nil, fmt.Errorf("compression section header truncated, %d bytes", len(data))
		}
		if err := readLE(data, &ch); err != nil {
			return nil, err
		}
		switch ch.CompressionType {
		case NotCompressed:
			s.Compression = record.CompressionNone
			if nested {
				s.Encapsulated, s.Err = parseSections(data[compressionHeaderSize:], opts, depth+1)
			}
		case StandardCompression:
			s.Compression = record.CompressionEFIStandard
		default:
			s.Compression = record.CompressionVendor
			s.Err = fmt.Errorf("unknown compression type %#02x", ch.CompressionType)
		}

	case SectionTypeGUIDDefined:
		gh := &SectionGUIDDefinedHeader{}
		if len(data) < guidDefinedHeaderSize {
			return nil, fmt.Errorf("GUID-defined section header truncated, %d bytes", len(data))
		}
		if err := readLE(data, gh); err != nil {
			return nil, err
		}
		if uint64(gh.DataOffset) < s.HeaderSize+guidDefinedHeaderSize || int(gh.DataOffset) > len(s.buf) {
			return nil, fmt.Errorf("GUID-defined section data offset %#x outside of the section", gh.DataOffset)
		}
		s.GUIDDefined = gh
		s.Compression = compression.Classify(gh.GUID)
		if nested {
			s.Encapsulated, s.Err = s.parseGUIDDefined(opts, depth)
		}

	case SectionTypePE32:
		s.PE, s.Err = readPEInfo(data)

	case SectionTypeUserInterface:
		s.Name = decodeUCS2(data)

	case SectionTypeFirmwareVolumeImage:
		if nested {
			fv, err := newFirmwareVolume(data, 0, opts, depth+1)
			if fv != nil {
				s.Volumes = append(s.Volumes, fv)
			}
			s.Err = err
		}
	}

	return &s, nil
}

func (s *Section) parseGUIDDefined(opts ParseOptions, depth int) ([]*Section, error) {
	gh := s.GUIDDefined
	payload := s.buf[gh.DataOffset:]
	if GUIDEDSectionAttribute(gh.Attributes)&GUIDEDSectionProcessingRequired == 0 {
		return parseSections(payload, opts, depth+1)
	}
	if !opts.Decompress {
		return nil, nil
	}
	c := compression.CompressorFromGUID(gh.GUID, opts.Compression)
	if c == nil {
		opts.logger().Debugf("no decoder for GUID-defined section %v", gh.GUID)
		return nil, nil
	}
	decoded, err := c.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s decode of GUID-defined section %v failed: %w", c.Name(), gh.GUID, err)
	}
	return parseSections(decoded, opts, depth+1)
}

var ucs2 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUCS2 decodes a NUL terminated UCS-2 string.
func decodeUCS2(b []byte) string {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	out, err := ucs2.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(bytes.ToValidUTF8(out, []byte("�")))
}
