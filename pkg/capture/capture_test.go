// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package capture

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/hob"
	"github.com/linuxboot/dxeready/pkg/hob/hobtest"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi/uefitest"
)

const (
	memBase = 0x80000000
	hobBase = memBase + 0x1000
	fvBase  = memBase + 0x4000
	badBase = memBase + 0x8000
)

var (
	owner     = guid.MustParse("4ED4BF27-4092-42E9-807D-527B1D00C9BD")
	fvName    = guid.MustParse("7CB8BDC9-F8EB-4F34-AAEA-3EE4AF6516A1")
	extraName = guid.MustParse("5C60F367-A505-419A-859E-2A4FF6CA6FE5")
	dxeCore   = guid.MustParse("D6A2CB7F-6A18-4E2F-B43B-9920A733700A")
	driver    = guid.MustParse("22DC2B60-FE40-42AC-B01F-3AB1FAD9AAD8")
)

func volume() []byte {
	return uefitest.NamedVolume(fvName, 0x40,
		uefitest.File(dxeCore, 0x05, uefitest.PE32(record.MachineX64, record.SubsystemEFIBootServiceDriver, 0x1000)),
		uefitest.File(driver, 0x07, uefitest.PE32(record.MachineX64, record.SubsystemEFIRuntimeDriver, 0x1000), uefitest.UI("Runtime")),
	)
}

// memory lays out a HOB list announcing the volume twice and a range
// holding no volume.
func memory(t *testing.T, list []byte) *Image {
	t.Helper()
	require.Less(t, len(list), fvBase-hobBase)
	fv := volume()
	img := &Image{Base: memBase, Data: make([]byte, 0x10000)}
	copy(img.Data[hobBase-memBase:], list)
	copy(img.Data[fvBase-memBase:], fv)
	return img
}

func hobList() *hobtest.Builder {
	fvLen := uint64(len(volume()))
	return hobtest.New(hobBase).
		ResourceV2(owner, 0, 0x07, 0, 0x80000000, 0x8).
		FV(fvBase, fvLen).
		FV2(fvBase, fvLen, fvName, dxeCore).
		FV(badBase, 0x100)
}

func TestRun(t *testing.T) {
	extra := uefitest.NamedVolume(extraName, 0x10)
	arena := NewArena(1 << 20)
	c, err := Run(memory(t, hobList().Bytes(true)), hobBase, Options{
		Arena:        arena,
		CaptureID:    "test",
		ExtraVolumes: []Volume{{Base: 0xFFF00000, Data: extra}},
	})
	require.NoError(t, err)

	require.Equal(t, record.SchemaVersion, c.SchemaVersion)
	require.Equal(t, "test", c.CaptureID)
	require.Len(t, c.HobList, 5)
	require.Equal(t, record.KindHandoff, c.HobList[0].Kind())

	require.Len(t, c.FvList, 2)
	require.Equal(t, fvName, c.FvList[0].Name)
	require.Equal(t, uint64(fvBase), c.FvList[0].Base)
	require.Len(t, c.FvList[0].Files, 2)
	require.Equal(t, "Runtime", c.FvList[0].Files[1].UIName)
	require.Equal(t, extraName, c.FvList[1].Name)
	require.Equal(t, uint64(0xFFF00000), c.FvList[1].Base)

	require.Len(t, c.Diagnostics, 1)
	require.Equal(t, "firmware volume", c.Diagnostics[0].Structure)
	require.Equal(t, uint64(badBase), c.Diagnostics[0].Address)
	require.Contains(t, c.Diagnostics[0].Message, "holds no data")

	require.NotZero(t, arena.Used())
}

func TestRunGeneratesCaptureID(t *testing.T) {
	c, err := Run(memory(t, hobtest.New(hobBase).Bytes(true)), hobBase, Options{})
	require.NoError(t, err)
	require.Len(t, c.CaptureID, 36)
	require.Len(t, c.HobList, 1)
	require.Empty(t, c.FvList)
	require.NotNil(t, c.FvList)
}

func TestRunFatal(t *testing.T) {
	list := hobList().Bytes(true)
	_, err := Run(memory(t, list), hobBase, Options{Budget: uint64(len(list)) - hob.HeaderSize})
	require.True(t, errors.Is(err, hob.ErrUnterminated), "got %v", err)

	_, err = Run(memory(t, nil), hobBase, Options{})
	require.Error(t, err, "memory without a PHIT HOB")

	_, err = Run(memory(t, hobList().Bytes(true)), hobBase, Options{Arena: NewArena(16)})
	require.True(t, errors.Is(err, ErrArenaExhausted), "got %v", err)
}

func TestRunMalformedHob(t *testing.T) {
	list := hobtest.New(hobBase).
		FV(fvBase, uint64(len(volume()))).
		Raw(hob.TypeCPU, 2, nil).
		Bytes(true)
	c, err := Run(memory(t, list), hobBase, Options{})
	require.NoError(t, err)
	require.Len(t, c.HobList, 2, "records before the malformed one are kept")
	require.Len(t, c.FvList, 1)
	require.Len(t, c.Diagnostics, 1)
	require.Equal(t, "HOB list", c.Diagnostics[0].Structure)
	require.Equal(t, uint64(hobBase+hob.HandoffSize+hob.FVSize), c.Diagnostics[0].Address)
}

func TestRunVolumeLimits(t *testing.T) {
	c, err := Run(memory(t, hobList().Bytes(true)), hobBase, Options{MaxVolumeSize: 0x80})
	require.NoError(t, err)
	require.Empty(t, c.FvList)
	require.Len(t, c.Diagnostics, 2)
	require.Contains(t, c.Diagnostics[0].Message, "exceeds")

	arena := NewArena(uint64(len(hobList().Bytes(true))) + 0x20)
	c, err = Run(memory(t, hobList().Bytes(true)), hobBase, Options{Arena: arena})
	require.NoError(t, err)
	require.Empty(t, c.FvList)
	require.Contains(t, c.Diagnostics[0].Message, ErrArenaExhausted.Error())
}

func TestWriteInterchange(t *testing.T) {
	arena := NewArena(1 << 20)
	c, err := Run(memory(t, hobList().Bytes(true)), hobBase, Options{Arena: arena, CaptureID: "write"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "capture.json"+record.ZstdSuffix)
	require.NoError(t, WriteInterchange(path, c, arena))
	require.Zero(t, arena.Used())
	_, err = arena.Alloc(1)
	require.Error(t, err)

	got, err := record.ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("interchange round trip mismatch (-want +got):\n%s", diff)
	}
}
