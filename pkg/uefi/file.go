// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uefi

import (
	"fmt"

	"github.com/linuxboot/dxeready/pkg/guid"
)

// FVFileType represents the different types possible in an EFI file.
type FVFileType uint8

// UEFI FV File types.
const (
	FVFileTypeAll FVFileType = iota
	FVFileTypeRaw
	FVFileTypeFreeForm
	FVFileTypeSECCore
	FVFileTypePEICore
	FVFileTypeDXECore
	FVFileTypePEIM
	FVFileTypeDriver
	FVFileTypeCombinedPEIMDriver
	FVFileTypeApplication
	FVFileTypeSMM
	FVFileTypeVolumeImage
	FVFileTypeCombinedSMMDXE
	FVFileTypeSMMCore
	FVFileTypeSMMStandalone
	FVFileTypeSMMCoreStandalone
	FVFileTypeOEMMin   FVFileType = 0xC0
	FVFileTypeOEMMax   FVFileType = 0xDF
	FVFileTypeDebugMin FVFileType = 0xE0
	FVFileTypeDebugMax FVFileType = 0xEF
	FVFileTypePad      FVFileType = 0xF0
)

// hasSections reports whether files of this type carry a section stream.
func (t FVFileType) hasSections() bool {
	return t >= FVFileTypeFreeForm && t <= FVFileTypeSMMCoreStandalone
}

const (
	// FileHeaderMinLength is the minimum length of a firmware file header.
	FileHeaderMinLength = 0x18
	// FileHeaderExtMinLength is the minimum length of an extended firmware file header.
	FileHeaderExtMinLength       = 0x20
	emptyBodyChecksum      uint8 = 0xAA
)

// File state bits, as read with an erase polarity of zero.
const (
	FileStateHeaderConstruction uint8 = 0x01
	FileStateHeaderValid        uint8 = 0x02
	FileStateDataValid          uint8 = 0x04
	FileStateMarkedForUpdate    uint8 = 0x08
	FileStateDeleted            uint8 = 0x10
	FileStateHeaderInvalid      uint8 = 0x20
)

// IntegrityCheck holds the two 8 bit checksums for the file header and body separately.
type IntegrityCheck struct {
	Header uint8
	File   uint8
}

// FileAttr holds the EFI_FFS_FILE_ATTRIBUTES bits.
type FileAttr uint8

// IsLarge reports whether the large file attribute is set.
func (a FileAttr) IsLarge() bool {
	return a&0x01 != 0
}

// Checksum reports whether the file body is checksummed.
func (a FileAttr) Checksum() bool {
	return a&0x40 != 0
}

// FileHeader represents an EFI File header.
type FileHeader struct {
	GUID       guid.GUID // This is the GUID of the file.
	Checksum   IntegrityCheck
	Type       FVFileType
	Attributes FileAttr
	Size       [3]uint8
	State      uint8
}

// FileHeaderExtended represents an EFI File header with the
// large file attribute set.
// We also use this as the generic header for all EFI files, regardless of whether
// they are actually large. All sizes are also copied into the ExtendedSize field.
type FileHeaderExtended struct {
	FileHeader
	ExtendedSize uint64
}

// File represents an EFI File.
type File struct {
	Header     FileHeaderExtended
	HeaderSize uint64
	Sections   []*Section
	// Offset is the position of the file within its volume.
	Offset uint64
	// Err is set when the body failed its checksum or its sections could
	// not be parsed to the end.
	Err error

	polarity byte
	buf      []byte
}

// Buf returns the buffer.
func (f *File) Buf() []byte {
	return f.buf
}

// Position returns the offset of the file within its volume.
func (f *File) Position() uint64 {
	return f.Offset
}

// Apply calls the visitor on the File.
func (f *File) Apply(v Visitor) error {
	return v.Visit(f)
}

// ApplyChildren calls the visitor on each child node of File.
func (f *File) ApplyChildren(v Visitor) error {
	for _, s := range f.Sections {
		if err := s.Apply(v); err != nil {
			return err
		}
	}
	return nil
}

// State returns the state bits independent of the volume's erase polarity.
func (f *File) State() uint8 {
	if f.polarity == 0xFF {
		return ^f.Header.State
	}
	return f.Header.State
}

// Live reports whether the file is complete and neither deleted nor
// invalidated.
func (f *File) Live() bool {
	s := f.State()
	if s&(FileStateHeaderInvalid|FileStateDeleted) != 0 {
		return false
	}
	return s&FileStateDataValid != 0
}

// NewFile parses a sequence of bytes and returns a File object, if a valid
// one is passed, or an error. If no error is returned and the File pointer
// is nil, it means we've reached the volume free space at the end of the FV.
func NewFile(buf []byte, polarity byte, opts ParseOptions) (*File, error) {
	return newFile(buf, 0, polarity, opts, 0)
}

func newFile(buf []byte, offset uint64, polarity byte, opts ParseOptions, depth int) (*File, error) {
	if len(buf) < FileHeaderMinLength {
		return nil, fmt.Errorf("file header truncated, buffer is only %#x bytes long", len(buf))
	}
	if IsErased(buf[:FileHeaderMinLength], polarity) {
		return nil, nil
	}

	f := File{Offset: offset, polarity: polarity, HeaderSize: FileHeaderMinLength}
	fh := &f.Header
	if err := readLE(buf, &fh.FileHeader); err != nil {
		return nil, err
	}
	if fh.Size == [3]uint8{0xFF, 0xFF, 0xFF} {
		if !fh.Attributes.IsLarge() {
			return nil, fmt.Errorf("file %v using extended header, but large attribute is not set", fh.GUID)
		}
		if len(buf) < FileHeaderExtMinLength {
			return nil, fmt.Errorf("file %v length too small!, buffer is only %#x bytes long for extended header",
				fh.GUID, len(buf))
		}
		if err := readLE(buf[FileHeaderMinLength:], &fh.ExtendedSize); err != nil {
			return nil, err
		}
		f.HeaderSize = FileHeaderExtMinLength
	} else {
		fh.ExtendedSize = Read3Size(fh.Size)
	}
	if fh.ExtendedSize < f.HeaderSize {
		return nil, fmt.Errorf("file %v size %#x is smaller than its header", fh.GUID, fh.ExtendedSize)
	}
	if fh.ExtendedSize > uint64(len(buf)) {
		return nil, fmt.Errorf("file %v size %#x runs past the end of the volume (%#x bytes left)",
			fh.GUID, fh.ExtendedSize, len(buf))
	}
	f.buf = buf[:fh.ExtendedSize]

	// Sum over header without State and IntegrityCheck.File.
	sum := Checksum8(f.buf[:f.HeaderSize]) - fh.Checksum.File - fh.State
	if sum != 0 {
		return nil, fmt.Errorf("file %v header checksum failure! sum was %#02x", fh.GUID, sum)
	}
	if !f.Live() {
		return &f, nil
	}

	body := f.buf[f.HeaderSize:]
	if fh.Attributes.Checksum() {
		if sum := Checksum8(body) + fh.Checksum.File; sum != 0 {
			f.Err = fmt.Errorf("file %v body checksum failure! sum was %#02x", fh.GUID, sum)
		}
	} else if fh.Checksum.File != emptyBodyChecksum {
		f.Err = fmt.Errorf("file %v body checksum failure! attribute was not set, but checksum was %#02x instead of %#02x",
			fh.GUID, fh.Checksum.File, emptyBodyChecksum)
	}

	if fh.Type.hasSections() {
		var err error
		f.Sections, err = parseSections(body, opts, depth)
		if err != nil && f.Err == nil {
			f.Err = fmt.Errorf("file %v: %w", fh.GUID, err)
		}
	}
	return &f, nil
}
