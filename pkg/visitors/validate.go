// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/uefi"
)

// Validate performs extra checks on parsed firmware volumes. The checks
// do not stop the capture; their results are kept as diagnostics.
type Validate struct {
	// An optional Writer for writing errors when validation is complete.
	W io.Writer

	// List of validation errors.
	Errors []error
}

// Run wraps Visit and performs some setup and teardown tasks.
func (v *Validate) Run(f uefi.Firmware) error {
	if err := f.Apply(v); err != nil {
		return err
	}

	if v.W != nil {
		for _, e := range v.Errors {
			fmt.Fprintln(v.W, e)
		}
	}
	return nil
}

// Err returns the validation errors combined, or nil.
func (v *Validate) Err() error {
	var result *multierror.Error
	for _, e := range v.Errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

// Visit applies the Validate visitor to any Firmware type.
func (v *Validate) Visit(f uefi.Firmware) error {
	switch f := f.(type) {
	case *uefi.FirmwareVolume:
		fvlen := uint64(len(f.Buf()))
		if fvlen < uefi.FirmwareVolumeMinSize {
			v.Errors = append(v.Errors, fmt.Errorf("length too small!, buffer is only %#x bytes long", fvlen))
			break
		}
		if guid.Name(f.FileSystemGUID) == "" {
			v.Errors = append(v.Errors, fmt.Errorf("fv %v: unknown FV type! Guid was %v", f, f.FileSystemGUID))
		}
		// UEFI PI spec says version should always be 2
		if f.Revision != 2 {
			v.Errors = append(v.Errors, fmt.Errorf("fv %v: revision should be 2, was %v", f, f.Revision))
		}
		if f.Length != fvlen {
			v.Errors = append(v.Errors, fmt.Errorf("fv %v: length mismatch!, header has %#x, buffer is %#x bytes long",
				f, f.Length, fvlen))
		}
		var blocks uint64
		for _, b := range f.Blocks {
			blocks += uint64(b.Count) * uint64(b.Size)
		}
		if blocks != f.Length {
			v.Errors = append(v.Errors, fmt.Errorf("fv %v: block map covers %#x bytes, volume is %#x bytes",
				f, blocks, f.Length))
		}
		seen := map[guid.GUID]bool{}
		for _, file := range f.Files {
			if file.Header.Type == uefi.FVFileTypePad {
				continue
			}
			if seen[file.Header.GUID] {
				v.Errors = append(v.Errors, fmt.Errorf("fv %v: duplicate file %v", f, file.Header.GUID))
			}
			seen[file.Header.GUID] = true
		}

	case *uefi.File:
		buflen := uint64(len(f.Buf()))
		fh := &f.Header
		if buflen != fh.ExtendedSize {
			v.Errors = append(v.Errors, fmt.Errorf("file %v size mismatch! Size is %#x, buf length is %#x",
				fh.GUID, fh.ExtendedSize, buflen))
			break
		}
		if fh.Attributes.IsLarge() && f.HeaderSize != uefi.FileHeaderExtMinLength {
			v.Errors = append(v.Errors, fmt.Errorf("file %v has the large attribute but a small header", fh.GUID))
		}
		if f.State()&uefi.FileStateMarkedForUpdate != 0 {
			v.Errors = append(v.Errors, fmt.Errorf("file %v is marked for update", fh.GUID))
		}

	case *uefi.Section:
		buflen := uint32(len(f.Buf()))
		sh := &f.Header
		if sh.Size != [3]uint8{0xFF, 0xFF, 0xFF} && uint32(uefi.Read3Size(sh.Size)) != sh.ExtendedSize {
			v.Errors = append(v.Errors, errors.New("section size not copied into extendedsize"))
			break
		}
		if buflen != sh.ExtendedSize {
			v.Errors = append(v.Errors, fmt.Errorf("section size mismatch! Size is %#x, buf length is %#x",
				sh.ExtendedSize, buflen))
		}
	}
	return f.ApplyChildren(v)
}

func init() {
	RegisterCLI("validate", "", "perform extra validation checks", func(_ []string, w io.Writer) (uefi.Visitor, error) {
		return &Validate{W: w}, nil
	})
}
