// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uefi

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"

	"github.com/linuxboot/dxeready/pkg/record"
)

// readPEInfo reads the machine, subsystem and section alignment of a PE32
// or PE32+ image.
func readPEInfo(image []byte) (*record.PEInfo, error) {
	f, err := pe.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("PE32 image headers: %w", err)
	}
	defer f.Close()

	info := &record.PEInfo{Machine: f.FileHeader.Machine}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		info.Subsystem = oh.Subsystem
		info.SectionAlignment = oh.SectionAlignment
	case *pe.OptionalHeader64:
		info.Subsystem = oh.Subsystem
		info.SectionAlignment = oh.SectionAlignment
	default:
		return nil, errors.New("PE32 image has no optional header")
	}
	return info, nil
}
