// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
)

// Table prints the GUIDS, types and sizes as a compact table.
type Table struct {
	W io.Writer

	t      table.Writer
	indent int
}

// Run wraps Visit and performs some setup and teardown tasks.
func (v *Table) Run(f uefi.Firmware) error {
	w := v.W
	if w == nil {
		w = os.Stdout
	}
	v.t = table.NewWriter()
	v.t.SetOutputMirror(w)
	v.t.SetStyle(table.StyleLight)
	if fv, ok := f.(*uefi.FirmwareVolume); ok {
		v.t.SetTitle("Firmware Volume %v at %#x", fv, fv.BaseAddress)
	}
	v.t.AppendHeader(table.Row{"Node", "GUID/Name", "Type", "Size"})
	if err := f.Apply(v); err != nil {
		return err
	}
	v.t.Render()
	return nil
}

// Visit applies the Table visitor to any Firmware type.
func (v *Table) Visit(f uefi.Firmware) error {
	switch f := f.(type) {
	case *uefi.FirmwareVolume:
		return v.printRow(f, "FV", f.Name().String(), f.FVType)
	case *uefi.File:
		name := f.Header.GUID.String()
		if n := guid.Name(f.Header.GUID); n != "" {
			name = n
		}
		return v.printRow(f, "File", name, record.ClassifyFile(uint8(f.Header.Type), f.Header.GUID))
	case *uefi.Section:
		typez := string(record.ClassifySection(uint8(f.Header.Type)))
		if f.Compression != "" {
			typez += " (" + string(f.Compression) + ")"
		}
		return v.printRow(f, "Sec", f.Name, typez)
	default:
		return v.printRow(f, fmt.Sprintf("%T", f), "", "")
	}
}

func indent(n int) string {
	return strings.Repeat(" ", n)
}

func (v *Table) printRow(f uefi.Firmware, node, name, typez interface{}) error {
	v.t.AppendRow(table.Row{fmt.Sprintf("%s%v", indent(v.indent), node), name, typez, humanize.IBytes(uint64(len(f.Buf())))})
	v2 := *v
	v2.indent++
	if err := f.ApplyChildren(&v2); err != nil {
		return err
	}
	if fv, ok := f.(*uefi.FirmwareVolume); ok {
		// Print free space at the end of the volume
		v.t.AppendRow(table.Row{indent(v2.indent) + "Free", "", "", humanize.IBytes(fv.FreeSpace)})
	}
	return nil
}

func init() {
	RegisterCLI("table", "", "print out important information in a pretty table", func(_ []string, w io.Writer) (uefi.Visitor, error) {
		return &Table{W: w}, nil
	})
}
