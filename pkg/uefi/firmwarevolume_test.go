// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uefi_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linuxboot/dxeready/pkg/compression"
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
	"github.com/linuxboot/dxeready/pkg/uefi/uefitest"
)

var (
	fvName     = guid.MustParse("7CB8BDC9-F8EB-4F34-AAEA-3EE4AF6516A1")
	driverName = guid.MustParse("D6A2CB7F-6A18-4E2F-B43B-9920A733700A")
	mmName     = guid.MustParse("1FA1F39E-FEFF-4AAE-BD7B-38A070A3B609")
	rawName    = guid.MustParse("22DC2B60-FE40-42AC-B01F-3AB1FAD9AAD8")
)

func driver() []byte {
	return uefitest.File(driverName, 0x07,
		uefitest.Section(0x13, []byte{0x08}),
		uefitest.PE32(record.MachineX64, record.SubsystemEFIBootServiceDriver, 0x1000),
		uefitest.UI("FooDxe"),
	)
}

func TestNewFirmwareVolume(t *testing.T) {
	data := uefitest.NamedVolume(fvName, 0x40,
		driver(),
		uefitest.File(mmName, 0x0C, uefitest.PE32(record.MachineX64, record.SubsystemEFIRuntimeDriver, 0x1000)),
		uefitest.File(guid.DxeAprioriFile, 0x02, uefitest.Section(0x19, driverName[:])),
	)

	fv, err := uefi.NewFirmwareVolume(data, 0xFF000000, uefi.ParseOptions{})
	require.NoError(t, err)
	require.Equal(t, fvName, fv.Name())
	require.Equal(t, guid.FFS2, fv.FileSystemGUID)
	require.Equal(t, "FFS2", fv.FVType)
	require.Equal(t, uint64(0xFF000000), fv.Position())
	require.Equal(t, uint64(len(data)), fv.Length)
	require.Equal(t, uint64(0x40), fv.FreeSpace)
	require.Equal(t, uint8(0xFF), fv.ErasePolarity())
	require.Len(t, fv.Files, 3)

	f := fv.Files[0]
	require.NoError(t, f.Err)
	require.Equal(t, driverName, f.Header.GUID)
	require.Equal(t, uefi.FVFileTypeDriver, f.Header.Type)
	require.True(t, f.Live())
	require.Len(t, f.Sections, 3)
	require.Equal(t, uefi.SectionTypeDXEDepEx, f.Sections[0].Header.Type)
	require.Equal(t, &record.PEInfo{
		Machine:          record.MachineX64,
		Subsystem:        record.SubsystemEFIBootServiceDriver,
		SectionAlignment: 0x1000,
	}, f.Sections[1].PE)
	require.Equal(t, "FooDxe", f.Sections[2].Name)

	require.Equal(t, uefi.FVFileTypeCombinedSMMDXE, fv.Files[1].Header.Type)
	require.Equal(t, guid.DxeAprioriFile, fv.Files[2].Header.GUID)
}

func TestNewFirmwareVolumeSkipsDeletedFiles(t *testing.T) {
	deleted := ^uint8(0x07 | uefi.FileStateDeleted)
	headerOnly := ^uint8(0x03)
	data := uefitest.Volume(0x10,
		uefitest.FileWithState(rawName, 0x01, deleted, []byte{1, 2, 3, 4}),
		uefitest.FileWithState(mmName, 0x01, headerOnly, []byte{1, 2, 3, 4}),
		driver(),
	)
	fv, err := uefi.NewFirmwareVolume(data, 0, uefi.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, fv.Files, 1)
	require.Equal(t, driverName, fv.Files[0].Header.GUID)
	require.Equal(t, guid.FFS2, fv.Name(), "without an extended header the volume is named by its file system")
}

func TestNewFirmwareVolumeErrors(t *testing.T) {
	good := uefitest.Volume(0x10, driver())

	var tests = []struct {
		name    string
		corrupt func([]byte) []byte
		partial bool
	}{
		{"too short", func(b []byte) []byte { return b[:40] }, false},
		{"bad signature", func(b []byte) []byte { b[40] = 'X'; return b }, false},
		{"bad header checksum", func(b []byte) []byte { b[55]++; return b }, false},
		{"length past buffer", func(b []byte) []byte { return b[:len(b)-8] }, false},
		{"file header checksum", func(b []byte) []byte { b[72+20]++; return b }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.corrupt(append([]byte{}, good...))
			fv, err := uefi.NewFirmwareVolume(data, 0, uefi.ParseOptions{})
			require.Error(t, err)
			var pe *record.ParseError
			require.True(t, errors.As(err, &pe), "%v is not a ParseError", err)
			if tt.partial {
				require.NotNil(t, fv)
				require.Equal(t, err, fv.Err)
				require.Empty(t, fv.Files)
			} else {
				require.Nil(t, fv)
			}
		})
	}
}

func TestFileBodyErrors(t *testing.T) {
	badChecksum := driver()
	badChecksum[17] = 0
	zeroSection := uefitest.FileWithState(rawName, 0x07, uefitest.FileState, []byte{0, 0, 0, 0x10})
	badPE := uefitest.File(mmName, 0x07, uefitest.Section(0x10, []byte("not an image")))

	fv, err := uefi.NewFirmwareVolume(uefitest.Volume(0, badChecksum, zeroSection, badPE), 0, uefi.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, fv.Files, 3)

	require.ErrorContains(t, fv.Files[0].Err, "body checksum")
	require.Len(t, fv.Files[0].Sections, 3)

	require.ErrorContains(t, fv.Files[1].Err, "smaller than its header")
	require.Empty(t, fv.Files[1].Sections)

	require.NoError(t, fv.Files[2].Err)
	require.Len(t, fv.Files[2].Sections, 1)
	require.Nil(t, fv.Files[2].Sections[0].PE)
	require.Error(t, fv.Files[2].Sections[0].Err)
}

func TestEncapsulation(t *testing.T) {
	inner := uefitest.Sections(
		uefitest.PE32(record.MachineARM64, record.SubsystemEFIRuntimeDriver, 0x1000),
		uefitest.UI("RuntimeDxe"),
	)
	encoded, err := (&compression.LZMA{}).Encode(inner)
	require.NoError(t, err)

	file := uefitest.File(driverName, 0x07,
		uefitest.GUIDDefined(compression.CRC32GUID, 0x02, append([]byte{0, 0, 0, 0}, inner...)),
		uefitest.Compressed(uefi.NotCompressed, inner),
		uefitest.GUIDDefined(compression.LZMAGUID, 0x01, encoded),
		uefitest.Compressed(uefi.StandardCompression, []byte{1, 2, 3}),
	)
	data := uefitest.Volume(0, file)

	for _, decompress := range []bool{false, true} {
		fv, err := uefi.NewFirmwareVolume(data, 0, uefi.ParseOptions{Decompress: decompress})
		require.NoError(t, err)
		secs := fv.Files[0].Sections
		require.Len(t, secs, 4)

		// The CRC32 payload starts with the checksum, which does not
		// look like a section header of the right size.
		require.Equal(t, record.CompressionNone, secs[0].Compression)
		require.Error(t, secs[0].Err)

		require.Equal(t, record.CompressionNone, secs[1].Compression)
		require.Len(t, secs[1].Encapsulated, 2)
		require.Equal(t, "RuntimeDxe", secs[1].Encapsulated[1].Name)

		require.Equal(t, record.CompressionLZMA, secs[2].Compression)
		if decompress {
			require.NoError(t, secs[2].Err)
			require.Len(t, secs[2].Encapsulated, 2)
			require.Equal(t, record.MachineARM64, secs[2].Encapsulated[0].PE.Machine)
		} else {
			require.Empty(t, secs[2].Encapsulated)
		}

		require.Equal(t, record.CompressionEFIStandard, secs[3].Compression)
		require.Empty(t, secs[3].Encapsulated)
	}
}

func TestVolumeImageSection(t *testing.T) {
	nested := uefitest.Volume(0x08, driver())
	outer := uefitest.Volume(0x10, uefitest.File(rawName, 0x0B,
		uefitest.Compressed(uefi.NotCompressed, uefitest.Section(0x17, nested))))

	fv, err := uefi.NewFirmwareVolume(outer, 0x1000, uefi.ParseOptions{})
	require.NoError(t, err)
	require.False(t, fv.Nested)
	sec := fv.Files[0].Sections[0].Encapsulated[0]
	require.Equal(t, uefi.SectionTypeFirmwareVolumeImage, sec.Header.Type)
	require.Len(t, sec.Volumes, 1)
	require.True(t, sec.Volumes[0].Nested)
	require.Len(t, sec.Volumes[0].Files, 1)

	fv, err = uefi.NewFirmwareVolume(outer, 0x1000, uefi.ParseOptions{MaxNesting: 1})
	require.NoError(t, err)
	sec = fv.Files[0].Sections[0].Encapsulated[0]
	require.Empty(t, sec.Volumes)
}

func TestParseVolumes(t *testing.T) {
	a := uefitest.Volume(0x10, driver())
	b := uefitest.NamedVolume(fvName, 0x10)
	garbage := bytes.Repeat([]byte{0x5A}, 0x30)

	var image []byte
	image = append(image, garbage...)
	image = append(image, a...)
	image = append(image, b...)

	fvs, err := uefi.ParseVolumes(image, 0x100000, uefi.ParseOptions{})
	require.NoError(t, err)
	require.Len(t, fvs, 2)
	require.Equal(t, uint64(0x100030), fvs[0].BaseAddress)
	require.Equal(t, uint64(0x100030+len(a)), fvs[1].BaseAddress)
	require.Equal(t, fvName, fvs[1].Name())

	require.Equal(t, int64(-1), uefi.FindFirmwareVolumeOffset(garbage))
}
