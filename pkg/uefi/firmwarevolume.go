// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uefi

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
)

// FirmwareVolume constants
const (
	FirmwareVolumeFixedHeaderSize  = 56
	FirmwareVolumeMinSize          = FirmwareVolumeFixedHeaderSize + 8 // +8 for the null block that terminates the block list
	FirmwareVolumeExtHeaderMinSize = 20

	// FirmwareVolumeSignature is "_FVH".
	FirmwareVolumeSignature uint32 = 0x4856465F

	// AttributeErasePolarity is EFI_FVB2_ERASE_POLARITY.
	AttributeErasePolarity uint32 = 0x800
)

// These are the FVs we actually try to parse beyond the header
// We don't parse anything except FFS2 and FFS3
var supportedFVs = map[guid.GUID]bool{
	guid.FFS2: true,
	guid.FFS3: true,
}

// Block describes number and size of the firmware volume blocks
type Block struct {
	Count uint32
	Size  uint32
}

// FirmwareVolumeFixedHeader contains the fixed fields of a firmware volume
// header
type FirmwareVolumeFixedHeader struct {
	_               [16]uint8
	FileSystemGUID  guid.GUID
	Length          uint64
	Signature       uint32
	Attributes      uint32 // UEFI PI spec volume 3.2.1 EFI_FIRMWARE_VOLUME_HEADER
	HeaderLen       uint16
	Checksum        uint16
	ExtHeaderOffset uint16
	Reserved        uint8 `json:"-"`
	Revision        uint8
}

// FirmwareVolumeExtHeader contains the fields of an extended firmware volume
// header
type FirmwareVolumeExtHeader struct {
	FVName        guid.GUID
	ExtHeaderSize uint32
}

// FirmwareVolume represents a firmware volume. It combines the fixed header and
// a variable list of blocks
type FirmwareVolume struct {
	FirmwareVolumeFixedHeader
	// there must be at least one that is zeroed and indicates the end of the
	// block list
	Blocks []Block
	FirmwareVolumeExtHeader
	HasExtHeader bool
	Files        []*File

	DataOffset  uint64
	FVType      string
	BaseAddress uint64
	// Nested is set for volumes found in a volume image section.
	Nested    bool
	FreeSpace uint64
	// Err is the error that stopped the file walk, if any. Files holds
	// everything parsed before it.
	Err error

	buf []byte
}

// Buf returns the buffer.
func (fv *FirmwareVolume) Buf() []byte {
	return fv.buf
}

// Position returns the base address the volume was parsed at.
func (fv *FirmwareVolume) Position() uint64 {
	return fv.BaseAddress
}

// Apply calls the visitor on the FirmwareVolume.
func (fv *FirmwareVolume) Apply(v Visitor) error {
	return v.Visit(fv)
}

// ApplyChildren calls the visitor on each child node of FirmwareVolume.
func (fv *FirmwareVolume) ApplyChildren(v Visitor) error {
	for _, f := range fv.Files {
		if err := f.Apply(v); err != nil {
			return err
		}
	}
	return nil
}

// ErasePolarity gets the erase polarity
func (fv *FirmwareVolume) ErasePolarity() uint8 {
	if fv.Attributes&AttributeErasePolarity != 0 {
		return 0xFF
	}
	return 0
}

// Name returns the volume name from the extended header, or the file
// system GUID when there is no extended header.
func (fv *FirmwareVolume) Name() guid.GUID {
	if fv.HasExtHeader {
		return fv.FVName
	}
	return fv.FileSystemGUID
}

// String creates a string representation for the firmware volume.
func (fv *FirmwareVolume) String() string {
	return fv.Name().String()
}

// FindFirmwareVolumeOffset searches for a firmware volume signature, "_FVH"
// using 8-byte alignment. If found, returns the offset from the start of the
// data, otherwise returns -1.
func FindFirmwareVolumeOffset(data []byte) int64 {
	fvSig := []byte("_FVH")
	for offset := int64(40); offset+4 <= int64(len(data)); offset += 8 {
		if bytes.Equal(data[offset:offset+4], fvSig) {
			return offset - 40 // the actual volume starts 40 bytes before the signature
		}
	}
	return -1
}

// ParseVolumes finds and parses every firmware volume in data, which is
// mapped at base. Volumes that fail to parse are reported in the returned
// error, and scanning continues after their signature.
func ParseVolumes(data []byte, base uint64, opts ParseOptions) ([]*FirmwareVolume, error) {
	var (
		fvs    []*FirmwareVolume
		result *multierror.Error
	)
	for pos := int64(0); pos < int64(len(data)); {
		off := FindFirmwareVolumeOffset(data[pos:])
		if off < 0 {
			break
		}
		start := pos + off
		fv, err := NewFirmwareVolume(data[start:], base+uint64(start), opts)
		if err != nil {
			result = multierror.Append(result, err)
		}
		if fv == nil {
			pos = start + 8
			continue
		}
		fvs = append(fvs, fv)
		pos = start + int64(Align8(fv.Length))
	}
	return fvs, result.ErrorOrNil()
}

// NewFirmwareVolume parses a sequence of bytes mapped at base and returns a
// FirmwareVolume. A nil volume and an error are returned when the header is
// unusable. When a file inside the volume is malformed, the volume is
// returned with the files parsed so far and Err set, together with the same
// error.
func NewFirmwareVolume(data []byte, base uint64, opts ParseOptions) (*FirmwareVolume, error) {
	return newFirmwareVolume(data, base, opts, 0)
}

func fvError(off uint64, err error) error {
	return &record.ParseError{Structure: "firmware volume", Offset: off, Err: err}
}

func newFirmwareVolume(data []byte, base uint64, opts ParseOptions, depth int) (*FirmwareVolume, error) {
	fv := FirmwareVolume{BaseAddress: base, Nested: depth > 0}

	if len(data) < FirmwareVolumeMinSize {
		return nil, fvError(0, fmt.Errorf("firmware volume size too small: expected %v bytes, got %v",
			FirmwareVolumeMinSize, len(data)))
	}
	if err := readLE(data, &fv.FirmwareVolumeFixedHeader); err != nil {
		return nil, fvError(0, err)
	}
	if fv.Signature != FirmwareVolumeSignature {
		return nil, fvError(40, fmt.Errorf("bad signature %#08x", fv.Signature))
	}

	// Boundary checks (to return an error instead of panicking)
	if fv.Length > uint64(len(data)) {
		return nil, fvError(32, fmt.Errorf("invalid FV length (is greater than the data length): %d > %d",
			fv.Length, len(data)))
	}
	if uint64(fv.HeaderLen) < FirmwareVolumeMinSize || uint64(fv.HeaderLen) > fv.Length {
		return nil, fvError(48, fmt.Errorf("invalid header length %#x for a volume of %#x bytes",
			fv.HeaderLen, fv.Length))
	}
	sum, err := Checksum16(data[:fv.HeaderLen])
	if err != nil {
		return nil, fvError(48, err)
	}
	if sum != 0 {
		return nil, fvError(50, fmt.Errorf("header checksum failure, sum was %#04x", sum))
	}

	// read the block map
	for off := uint64(FirmwareVolumeFixedHeaderSize); ; off += 8 {
		if off+8 > uint64(fv.HeaderLen) {
			return nil, fvError(off, errors.New("block map is not terminated"))
		}
		var block Block
		if err := readLE(data[off:], &block); err != nil {
			return nil, fvError(off, err)
		}
		if block.Count == 0 && block.Size == 0 {
			// found the terminating block
			break
		}
		fv.Blocks = append(fv.Blocks, block)
	}

	// Parse the extended header and figure out the start of data
	fv.DataOffset = uint64(fv.HeaderLen)
	if fv.ExtHeaderOffset != 0 {
		off := uint64(fv.ExtHeaderOffset)
		if off+FirmwareVolumeExtHeaderMinSize > fv.Length {
			return nil, fvError(off, fmt.Errorf("extended header at %#x is outside the volume", off))
		}
		if err := readLE(data[off:], &fv.FirmwareVolumeExtHeader); err != nil {
			return nil, fvError(off, fmt.Errorf("unable to parse FV extended header, got: %v", err))
		}
		if fv.ExtHeaderSize < FirmwareVolumeExtHeaderMinSize || off+uint64(fv.ExtHeaderSize) > fv.Length {
			return nil, fvError(off, fmt.Errorf("invalid extended header size %#x", fv.ExtHeaderSize))
		}
		fv.HasExtHeader = true
		fv.DataOffset = off + uint64(fv.ExtHeaderSize)
	}
	// Make sure DataOffset is 8 byte aligned at least.
	fv.DataOffset = Align8(fv.DataOffset)

	fv.FVType = guid.Name(fv.FileSystemGUID)
	fv.buf = data[:fv.Length]

	if !supportedFVs[fv.FileSystemGUID] {
		opts.logger().Warnf("unsupported fv type %v at %#x, not parsing its files", fv.FileSystemGUID, base)
		return &fv, nil
	}

	polarity := fv.ErasePolarity()
	offset := fv.DataOffset
	for offset+FileHeaderMinLength <= fv.Length {
		file, err := newFile(fv.buf[offset:], offset, polarity, opts, depth)
		if err != nil {
			fv.Err = fvError(offset, err)
			return &fv, fv.Err
		}
		if file == nil {
			// We've reached free space. Terminate
			fv.FreeSpace = fv.Length - offset
			break
		}
		if file.Live() {
			fv.Files = append(fv.Files, file)
		} else {
			opts.logger().Debugf("skipping file %v at %#x in state %#02x", file.Header.GUID, offset, file.State())
		}
		offset = Align8(offset + file.Header.ExtendedSize)
	}
	return &fv, nil
}
