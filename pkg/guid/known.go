// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package guid

// A-priori file names. The PEI and DXE dispatchers load the drivers listed
// in these files before evaluating dependency expressions.
var (
	PeiAprioriFile = MustParse("1B45CC0A-156A-428A-AF62-49864DA0E6E6")
	DxeAprioriFile = MustParse("FC510EE7-FFDC-11D4-BD41-0080C73C8881")
)

// Firmware file system GUIDs.
var (
	FFS1 = MustParse("7A9354D9-0468-444A-81CE-0BF617D890DF")
	FFS2 = MustParse("8C8CE578-8A3D-4F1C-9935-896185C32DD3")
	FFS3 = MustParse("5473C07A-3DCB-4DCA-BD6F-1E9689E7349A")
)

// GUID HOBs commonly found in a PEI hand-off.
var (
	MemoryTypeInformation = MustParse("4C19049F-4137-4DD3-9C10-8B97A83FFDFA")
	MemoryAllocModule     = MustParse("F8E21975-0899-4F58-A4BE-5525A9C6D77A")
	MemoryAllocStack      = MustParse("4ED4BF27-4092-42E9-807D-527B1D00C9BD")
	MemoryAllocBspStore   = MustParse("564B33CD-C92A-4593-90BF-2473E43C6322")
)

// Well-known files and section encapsulations.
var (
	DxeCore       = MustParse("D6A2CB7F-6A18-4E2F-B43B-9920A733700A")
	Shell         = MustParse("7C04A583-9E3E-4F1C-AD65-E05268D0B4D1")
	LZMACustom    = MustParse("EE4E5898-3914-4259-9D6E-DC7BD79403CF")
	LZMAX86Custom = MustParse("D42AE6BD-1352-4BFB-909A-CA72A6EAE889")
	BrotliCustom  = MustParse("3D532050-5CDA-4FD0-879E-0F7F630D5AFB")
	TianoCustom   = MustParse("A31280AD-481E-41B6-95E8-127F4C984779")
	CRC32Section  = MustParse("FC1BCDB0-7D31-49AA-936A-A4600D9DD083")
)

var names = map[GUID]string{
	PeiAprioriFile:        "PEI_APRIORI_FILE",
	DxeAprioriFile:        "DXE_APRIORI_FILE",
	FFS1:                  "FFS1",
	FFS2:                  "FFS2",
	FFS3:                  "FFS3",
	MemoryTypeInformation: "MEMORY_TYPE_INFORMATION",
	MemoryAllocModule:     "MEMORY_ALLOC_MODULE",
	MemoryAllocStack:      "MEMORY_ALLOC_STACK",
	MemoryAllocBspStore:   "MEMORY_ALLOC_BSP_STORE",
	DxeCore:               "DxeCore",
	Shell:                 "Shell",
	LZMACustom:            "LZMA_CUSTOM_DECOMPRESS",
	LZMAX86Custom:         "LZMAF86_CUSTOM_DECOMPRESS",
	BrotliCustom:          "BROTLI_CUSTOM_DECOMPRESS",
	TianoCustom:           "TIANO_CUSTOM_DECOMPRESS",
	CRC32Section:          "CRC32_GUIDED_SECTION",
}

// Name returns a well-known symbolic name for u, or "" when it has none.
func Name(u GUID) string {
	return names[u]
}

// IsApriori reports whether u names a PEI or DXE a-priori file.
func IsApriori(u GUID) bool {
	return u == PeiAprioriFile || u == DxeAprioriFile
}
