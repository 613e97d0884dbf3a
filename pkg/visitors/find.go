// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
)

// FindPredicate is used to filter matches in the Find visitor.
type FindPredicate = func(f uefi.Firmware) bool

// Find collects firmware matching a predicate. A file also matches when
// one of its direct sections does, such as its user interface section.
type Find struct {
	Predicate FindPredicate

	Matches []uefi.Firmware

	// A summary of every match is written to W as JSON.
	W io.Writer

	volume *uefi.FirmwareVolume
	file   *uefi.File
	found  []FoundFile
}

// FoundFile locates a matched file.
type FoundFile struct {
	Volume     guid.GUID       `json:"volume"`
	VolumeBase uint64          `json:"volume_base"`
	Offset     uint64          `json:"offset"`
	Name       guid.GUID       `json:"name"`
	Type       record.FileType `json:"type"`
}

// Run wraps Visit and performs some setup and teardown tasks.
func (v *Find) Run(f uefi.Firmware) error {
	v.Matches, v.found = nil, nil
	if err := f.Apply(v); err != nil {
		return err
	}
	if v.W == nil {
		return nil
	}
	b, err := json.MarshalIndent(v.found, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(v.W, string(b))
	return err
}

func (v *Find) match(f uefi.Firmware) {
	v.Matches = append(v.Matches, f)
	file, ok := f.(*uefi.File)
	if !ok || v.volume == nil {
		return
	}
	v.found = append(v.found, FoundFile{
		Volume:     v.volume.Name(),
		VolumeBase: v.volume.BaseAddress,
		Offset:     file.Offset,
		Name:       file.Header.GUID,
		Type:       record.ClassifyFile(uint8(file.Header.Type), file.Header.GUID),
	})
}

// Visit applies the Find visitor to any Firmware type.
func (v *Find) Visit(f uefi.Firmware) error {
	switch f := f.(type) {
	case *uefi.FirmwareVolume:
		if v.Predicate(f) {
			v.match(f)
		}
		outer := v.volume
		v.volume = f
		err := f.ApplyChildren(v)
		v.volume = outer
		return err

	case *uefi.File:
		matched := v.Predicate(f)
		if matched {
			v.match(f)
		}
		outer := v.file
		v.file = f
		if matched {
			// Sections of a matched file must not match it twice.
			v.file = nil
		}
		err := f.ApplyChildren(v)
		v.file = outer
		return err

	case *uefi.Section:
		if v.file != nil && v.Predicate(f) {
			v.match(v.file)
			v.file = nil
		}
		return f.ApplyChildren(v)

	default:
		if v.Predicate(f) {
			v.match(f)
		}
		return f.ApplyChildren(v)
	}
}

// FindFileGUIDPredicate matches the file named r.
func FindFileGUIDPredicate(r guid.GUID) FindPredicate {
	return func(f uefi.Firmware) bool {
		file, ok := f.(*uefi.File)
		return ok && file.Header.GUID == r
	}
}

// FindFileTypePredicate matches files of dispatch class t.
func FindFileTypePredicate(t record.FileType) FindPredicate {
	return func(f uefi.Firmware) bool {
		file, ok := f.(*uefi.File)
		return ok && record.ClassifyFile(uint8(file.Header.Type), file.Header.GUID) == t
	}
}

// FindFilePredicate matches files whose GUID or user interface name is
// fully matched by the regular expression r. GUIDs match case-insensitively.
func FindFilePredicate(r string) (FindPredicate, error) {
	nameRE, err := regexp.Compile("^(" + r + ")$")
	if err != nil {
		return nil, err
	}
	guidRE := regexp.MustCompile("^(?i)(" + r + ")$")
	return func(f uefi.Firmware) bool {
		switch f := f.(type) {
		case *uefi.File:
			return guidRE.MatchString(f.Header.GUID.String())
		case *uefi.Section:
			return nameRE.MatchString(f.Name)
		}
		return false
	}, nil
}

// FindExactlyOne does a find using a supplied predicate and errors if there's more than one.
func FindExactlyOne(f uefi.Firmware, pred FindPredicate) (uefi.Firmware, error) {
	find := &Find{Predicate: pred}
	if err := find.Run(f); err != nil {
		return nil, err
	}
	if n := len(find.Matches); n != 1 {
		return nil, fmt.Errorf("expected exactly one match, got %d, matches were: %v", n, find.Matches)
	}
	return find.Matches[0], nil
}

// FindEnclosingFV finds the innermost volume directly holding file.
func FindEnclosingFV(f uefi.Firmware, file *uefi.File) (*uefi.FirmwareVolume, error) {
	match, err := FindExactlyOne(f, func(f uefi.Firmware) bool {
		fv, ok := f.(*uefi.FirmwareVolume)
		if !ok {
			return false
		}
		for _, candidate := range fv.Files {
			if candidate == file {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("unable to find the volume of file %v: %w", file.Header.GUID, err)
	}
	return match.(*uefi.FirmwareVolume), nil
}

// FindDXEFV returns the volume holding the DXE core. Volumes nested in
// volume image sections are searched too.
func FindDXEFV(f uefi.Firmware) (*uefi.FirmwareVolume, error) {
	core, err := FindExactlyOne(f, FindFileTypePredicate(record.FileTypeDxeCore))
	if err != nil {
		return nil, fmt.Errorf("unable to find DXE Core, got: %v", err)
	}
	return FindEnclosingFV(f, core.(*uefi.File))
}

func init() {
	RegisterCLI("find", "REGEX", "find files by GUID or user interface name", func(args []string, w io.Writer) (uefi.Visitor, error) {
		pred, err := FindFilePredicate(args[0])
		if err != nil {
			return nil, err
		}
		return &Find{Predicate: pred, W: w}, nil
	})
	RegisterCLI("find-type", "TYPE", "find files of a type such as mm or combined_mm_dxe", func(args []string, w io.Writer) (uefi.Visitor, error) {
		return &Find{Predicate: FindFileTypePredicate(record.FileType(args[0])), W: w}, nil
	})
}
