// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"testing"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
	"github.com/linuxboot/dxeready/pkg/uefi/uefitest"
)

var (
	testFV      = guid.MustParse("7CB8BDC9-F8EB-4F34-AAEA-3EE4AF6516A1")
	testGUID    = guid.MustParse("DF1CCEF6-F301-4A63-9661-FC6030DCC880")
	dxeCoreGUID = guid.MustParse("D6A2CB7F-6A18-4E2F-B43B-9920A733700A")
	innerGUID   = guid.MustParse("22DC2B60-FE40-42AC-B01F-3AB1FAD9AAD8")
)

const testBase = 0xFFC00000

// sampleImage is a named volume holding a DXE core, a driver with a UI
// name, and a volume image section with one more driver inside.
func sampleImage() []byte {
	inner := uefitest.Volume(0x08,
		uefitest.File(innerGUID, 0x07,
			uefitest.PE32(record.MachineARM64, record.SubsystemEFIRuntimeDriver, 0x1000),
			uefitest.UI("InnerDxe"),
		),
	)
	return uefitest.NamedVolume(testFV, 0x20,
		uefitest.File(dxeCoreGUID, 0x05,
			uefitest.PE32(record.MachineX64, record.SubsystemEFIBootServiceDriver, 0x1000),
		),
		uefitest.File(testGUID, 0x07,
			uefitest.Section(0x13, []byte{0x08}),
			uefitest.PE32(record.MachineX64, record.SubsystemEFIBootServiceDriver, 0x1000),
			uefitest.UI("FooDxe"),
		),
		uefitest.File(guid.MustParse("0F9D89E8-9259-4F76-A5AF-0C89E34023DF"), 0x0B,
			uefitest.Compressed(uefi.NotCompressed, uefitest.Section(0x17, inner)),
		),
	)
}

func parseImage(t *testing.T) *uefi.FirmwareVolume {
	fv, err := uefi.NewFirmwareVolume(sampleImage(), testBase, uefi.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return fv
}

func find(t *testing.T, f uefi.Firmware, guid guid.GUID) []uefi.Firmware {
	find := &Find{
		Predicate: FindFileGUIDPredicate(guid),
	}
	if err := find.Run(f); err != nil {
		t.Fatal(err)
	}
	return find.Matches
}
