// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/memrange"
)

// FvRecord is one firmware volume and the files it contains in on-disk
// order.
type FvRecord struct {
	Name       guid.GUID `json:"fv_name"`
	FileSystem guid.GUID `json:"file_system"`
	Base       uint64    `json:"fv_base_address"`
	Length     uint64    `json:"fv_length"`
	Attributes uint32    `json:"fv_attributes"`
	Revision   uint8     `json:"revision"`
	// Nested is set for volumes found inside a firmware volume image
	// section rather than announced by a HOB.
	Nested bool `json:"nested,omitempty"`
	// Diagnostic is set when parsing stopped before the end of the volume.
	Diagnostic string    `json:"diagnostic,omitempty"`
	Files      []FfsFile `json:"files"`
	Extension
}

// Range returns the physical range of the volume.
func (fv *FvRecord) Range() memrange.Range {
	return memrange.Range{Base: fv.Base, Length: fv.Length}
}

// FfsFile is a firmware file.
type FfsFile struct {
	Name       guid.GUID `json:"name"`
	Type       FileType  `json:"file_type"`
	RawType    uint8     `json:"raw_type"`
	Attributes uint8     `json:"attributes"`
	State      uint8     `json:"state"`
	Length     uint64    `json:"length"`
	UIName     string    `json:"ui_name,omitempty"`
	Sections   []Section `json:"sections"`
	Extension
}

// Section is a firmware file section. Encapsulation sections carry their
// children in Sections.
type Section struct {
	Type            SectionType `json:"section_type"`
	RawType         uint8       `json:"raw_type"`
	Length          uint64      `json:"length"`
	Compression     Compression `json:"compression,omitempty"`
	CompressionGUID *guid.GUID  `json:"compression_guid,omitempty"`
	GUID            *guid.GUID  `json:"guid,omitempty"`
	PE              *PEInfo     `json:"pe_info,omitempty"`
	UIName          string      `json:"ui_name,omitempty"`
	Sections        []Section   `json:"sections,omitempty"`
	Extension
}

// PEInfo is what the validator needs from a PE32 image's headers.
type PEInfo struct {
	Machine          uint16 `json:"machine"`
	Subsystem        uint16 `json:"subsystem"`
	SectionAlignment uint32 `json:"section_alignment"`
}

// PE machine and subsystem values.
const (
	MachineI386  uint16 = 0x014C
	MachineX64   uint16 = 0x8664
	MachineARM64 uint16 = 0xAA64

	SubsystemEFIApplication       uint16 = 10
	SubsystemEFIBootServiceDriver uint16 = 11
	SubsystemEFIRuntimeDriver     uint16 = 12
)

// FileType is the canonical classification of a firmware file. Values
// written by newer producers are kept as they are.
type FileType string

// File types.
const (
	FileTypeRaw                FileType = "raw"
	FileTypeFreeform           FileType = "freeform"
	FileTypeSecurityCore       FileType = "security_core"
	FileTypePeiCore            FileType = "pei_core"
	FileTypeDxeCore            FileType = "dxe_core"
	FileTypePeim               FileType = "peim"
	FileTypeDriver             FileType = "driver"
	FileTypeCombinedPeimDriver FileType = "combined_peim_driver"
	FileTypeApplication        FileType = "application"
	FileTypeMM                 FileType = "mm"
	FileTypeVolumeImage        FileType = "firmware_volume_image"
	FileTypeCombinedMMDxe      FileType = "combined_mm_dxe"
	FileTypeMMCore             FileType = "mm_core"
	FileTypeMMStandalone       FileType = "mm_standalone"
	FileTypeMMCoreStandalone   FileType = "mm_core_standalone"
	FileTypeOEM                FileType = "oem"
	FileTypeDebug              FileType = "debug"
	FileTypePad                FileType = "pad"
	FileTypeFFS                FileType = "ffs"
	FileTypeApriori            FileType = "apriori"
	FileTypeUnknown            FileType = "unknown"
)

var fileTypes = map[uint8]FileType{
	0x01: FileTypeRaw,
	0x02: FileTypeFreeform,
	0x03: FileTypeSecurityCore,
	0x04: FileTypePeiCore,
	0x05: FileTypeDxeCore,
	0x06: FileTypePeim,
	0x07: FileTypeDriver,
	0x08: FileTypeCombinedPeimDriver,
	0x09: FileTypeApplication,
	0x0A: FileTypeMM,
	0x0B: FileTypeVolumeImage,
	0x0C: FileTypeCombinedMMDxe,
	0x0D: FileTypeMMCore,
	0x0E: FileTypeMMStandalone,
	0x0F: FileTypeMMCoreStandalone,
	0xF0: FileTypePad,
}

// ClassifyFile maps a raw EFI_FV_FILETYPE and file name to a FileType.
// A-priori files are recognized by name.
func ClassifyFile(rawType uint8, name guid.GUID) FileType {
	if guid.IsApriori(name) {
		return FileTypeApriori
	}
	if t, ok := fileTypes[rawType]; ok {
		return t
	}
	switch {
	case rawType >= 0xC0 && rawType <= 0xDF:
		return FileTypeOEM
	case rawType >= 0xE0 && rawType <= 0xEF:
		return FileTypeDebug
	case rawType >= 0xF1:
		return FileTypeFFS
	}
	return FileTypeUnknown
}

// IsCombinedDriver reports whether the file bundles two dispatch phases in
// one module.
func (f *FfsFile) IsCombinedDriver() bool {
	return f.Type == FileTypeCombinedPeimDriver || f.Type == FileTypeCombinedMMDxe
}

// IsTraditionalMM reports whether the file is a traditional (non
// standalone) SMM module.
func (f *FfsFile) IsTraditionalMM() bool {
	switch f.Type {
	case FileTypeMM, FileTypeCombinedMMDxe, FileTypeMMCore:
		return true
	}
	return false
}

// IsApriori reports whether the file is a PEI or DXE a-priori list.
func (f *FfsFile) IsApriori() bool {
	return f.Type == FileTypeApriori || guid.IsApriori(f.Name)
}

// IsDxePhase reports whether the file is loaded by the DXE dispatcher.
func (f *FfsFile) IsDxePhase() bool {
	switch f.Type {
	case FileTypeDriver, FileTypeApplication, FileTypeDxeCore:
		return true
	}
	return false
}

// SectionType is the canonical classification of a section.
type SectionType string

// Section types.
const (
	SectionCompression         SectionType = "compression"
	SectionGUIDDefined         SectionType = "guid_defined"
	SectionDisposable          SectionType = "disposable"
	SectionPE32                SectionType = "pe32"
	SectionPIC                 SectionType = "pic"
	SectionTE                  SectionType = "te"
	SectionDxeDepex            SectionType = "dxe_depex"
	SectionVersion             SectionType = "version"
	SectionUserInterface       SectionType = "user_interface"
	SectionCompatibility16     SectionType = "compatibility16"
	SectionFirmwareVolumeImage SectionType = "firmware_volume_image"
	SectionFreeformSubtypeGUID SectionType = "freeform_subtype_guid"
	SectionRaw                 SectionType = "raw"
	SectionPeiDepex            SectionType = "pei_depex"
	SectionMMDepex             SectionType = "mm_depex"
	SectionUnknown             SectionType = "unknown"
)

var sectionTypes = map[uint8]SectionType{
	0x01: SectionCompression,
	0x02: SectionGUIDDefined,
	0x03: SectionDisposable,
	0x10: SectionPE32,
	0x11: SectionPIC,
	0x12: SectionTE,
	0x13: SectionDxeDepex,
	0x14: SectionVersion,
	0x15: SectionUserInterface,
	0x16: SectionCompatibility16,
	0x17: SectionFirmwareVolumeImage,
	0x18: SectionFreeformSubtypeGUID,
	0x19: SectionRaw,
	0x1B: SectionPeiDepex,
	0x1C: SectionMMDepex,
}

// ClassifySection maps a raw EFI_SECTION_TYPE to a SectionType.
func ClassifySection(rawType uint8) SectionType {
	if t, ok := sectionTypes[rawType]; ok {
		return t
	}
	return SectionUnknown
}

// Compression is the algorithm used by an encapsulation section.
type Compression string

// Compression algorithms.
const (
	CompressionNone        Compression = "none"
	CompressionEFIStandard Compression = "efi_standard"
	CompressionLZMA        Compression = "lzma"
	CompressionLZMAX86     Compression = "lzma_x86"
	CompressionBrotli      Compression = "brotli"
	CompressionLZ4         Compression = "lz4"
	CompressionZlib        Compression = "zlib"
	// CompressionVendor is a GUID-defined encoding the tools do not
	// recognize; the GUID is kept in Section.CompressionGUID.
	CompressionVendor Compression = "vendor"
)

// IsLZMA reports whether c is one of the LZMA variants.
func (c Compression) IsLZMA() bool {
	return c == CompressionLZMA || c == CompressionLZMAX86
}

// Walk calls fn for every section of f depth-first, parents before their
// children. fn receives the chain of enclosing sections.
func (f *FfsFile) Walk(fn func(s *Section, parents []*Section)) {
	var walk func(secs []Section, parents []*Section)
	walk = func(secs []Section, parents []*Section) {
		for i := range secs {
			s := &secs[i]
			fn(s, parents)
			if len(s.Sections) > 0 {
				walk(s.Sections, append(parents[:len(parents):len(parents)], s))
			}
		}
	}
	walk(f.Sections, nil)
}
