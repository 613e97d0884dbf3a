// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
)

// Canonical converts parsed firmware volumes into canonical FV records.
// Volumes found inside volume image sections are emitted as separate
// records with Nested set, after their parent.
type Canonical struct {
	// Output
	Volumes     []record.FvRecord
	Diagnostics []record.Diagnostic
}

// Run wraps Visit and performs some setup and teardown tasks.
func (v *Canonical) Run(f uefi.Firmware) error {
	return f.Apply(v)
}

// Visit applies the Canonical visitor to any Firmware type. Only volumes
// are handled here; files and sections are converted by their volume.
func (v *Canonical) Visit(f uefi.Firmware) error {
	fv, ok := f.(*uefi.FirmwareVolume)
	if !ok {
		return f.ApplyChildren(v)
	}

	rec := record.FvRecord{
		Name:       fv.Name(),
		FileSystem: fv.FileSystemGUID,
		Base:       fv.BaseAddress,
		Length:     fv.Length,
		Attributes: fv.Attributes,
		Revision:   fv.Revision,
		Nested:     fv.Nested,
		Files:      []record.FfsFile{},
	}
	if fv.Err != nil {
		rec.Diagnostic = fv.Err.Error()
		v.diagnose("firmware volume", fv.BaseAddress, fv.Err)
	}

	var nested []*uefi.FirmwareVolume
	for _, file := range fv.Files {
		rec.Files = append(rec.Files, v.file(fv, file, &nested))
	}
	v.Volumes = append(v.Volumes, rec)

	for _, n := range nested {
		if err := n.Apply(v); err != nil {
			return err
		}
	}
	return nil
}

func (v *Canonical) diagnose(structure string, addr uint64, err error) {
	v.Diagnostics = append(v.Diagnostics, record.Diagnostic{
		Structure: structure,
		Address:   addr,
		Message:   err.Error(),
	})
}

func (v *Canonical) file(fv *uefi.FirmwareVolume, f *uefi.File, nested *[]*uefi.FirmwareVolume) record.FfsFile {
	addr := fv.BaseAddress + f.Offset
	if f.Err != nil {
		v.diagnose("FFS file", addr, f.Err)
	}
	rec := record.FfsFile{
		Name:       f.Header.GUID,
		Type:       record.ClassifyFile(uint8(f.Header.Type), f.Header.GUID),
		RawType:    uint8(f.Header.Type),
		Attributes: uint8(f.Header.Attributes),
		State:      f.State(),
		Length:     f.Header.ExtendedSize,
		Sections:   v.sections(addr, f.Sections, nested),
	}
	rec.Walk(func(s *record.Section, _ []*record.Section) {
		if rec.UIName == "" && s.UIName != "" {
			rec.UIName = s.UIName
		}
	})
	return rec
}

func (v *Canonical) sections(addr uint64, secs []*uefi.Section, nested *[]*uefi.FirmwareVolume) []record.Section {
	if len(secs) == 0 {
		return nil
	}
	out := make([]record.Section, 0, len(secs))
	for _, s := range secs {
		if s.Err != nil {
			v.diagnose("FFS section", addr, s.Err)
		}
		rec := record.Section{
			Type:    record.ClassifySection(uint8(s.Header.Type)),
			RawType: uint8(s.Header.Type),
			Length:  uint64(s.Header.ExtendedSize),
			PE:      s.PE,
			UIName:  s.Name,
		}
		switch s.Header.Type {
		case uefi.SectionTypeCompression:
			rec.Compression = s.Compression
		case uefi.SectionTypeGUIDDefined:
			rec.Compression = s.Compression
			g := s.GUIDDefined.GUID
			rec.CompressionGUID = &g
		case uefi.SectionTypeFreeformSubtypeGUID:
			if g, err := guid.FromBytes(s.Data()); err == nil {
				rec.GUID = &g
			}
		}
		rec.Sections = v.sections(addr, s.Encapsulated, nested)
		*nested = append(*nested, s.Volumes...)
		out = append(out, rec)
	}
	return out
}
