// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
)

// Count tallies nodes by kind, files by dispatch class, sections by type
// and encapsulations by compression.
type Count struct {
	// Optionally write result as JSON.
	W io.Writer `json:"-"`

	FirmwareTypeCount map[string]int
	FileTypeCount     map[record.FileType]int
	SectionTypeCount  map[record.SectionType]int
	CompressionCount  map[record.Compression]int `json:",omitempty"`
}

// Run wraps Visit and performs some setup and teardown tasks.
func (v *Count) Run(f uefi.Firmware) error {
	v.FirmwareTypeCount = map[string]int{}
	v.FileTypeCount = map[record.FileType]int{}
	v.SectionTypeCount = map[record.SectionType]int{}
	v.CompressionCount = map[record.Compression]int{}

	if err := f.Apply(v); err != nil {
		return err
	}
	if v.W == nil {
		return nil
	}
	b, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(v.W, string(b))
	return err
}

// Visit applies the Count visitor to any Firmware type.
func (v *Count) Visit(f uefi.Firmware) error {
	v.FirmwareTypeCount[strings.TrimPrefix(fmt.Sprintf("%T", f), "*uefi.")]++
	switch f := f.(type) {
	case *uefi.File:
		v.FileTypeCount[record.ClassifyFile(uint8(f.Header.Type), f.Header.GUID)]++
	case *uefi.Section:
		v.SectionTypeCount[record.ClassifySection(uint8(f.Header.Type))]++
		if f.Compression != "" {
			v.CompressionCount[f.Compression]++
		}
	}
	return f.ApplyChildren(v)
}

func init() {
	RegisterCLI("count", "", "count volumes, files and sections by type", func(_ []string, w io.Writer) (uefi.Visitor, error) {
		return &Count{W: w}, nil
	})
}
