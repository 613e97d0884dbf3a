// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
)

var (
	// ErrUnterminated is returned when the byte budget runs out before the
	// end-of-list HOB.
	ErrUnterminated = errors.New("HOB list is not terminated within the byte budget")
	// ErrBadLength is returned for a HOB whose length is shorter than its
	// header or runs past the budget.
	ErrBadLength = errors.New("invalid HOB length")
)

const structure = "HOB list"

// Walker steps through a HOB list held in an owned byte slice. It never
// reads outside that slice, so the slice length is the byte budget.
//
//	w := hob.NewWalker(buf, base)
//	for w.Next() {
//		use(w.Record())
//	}
//	if err := w.Err(); err != nil {
//		...
//	}
type Walker struct {
	mem  []byte
	base uint64
	r    *bytesextra.ReadWriteSeeker

	off   uint64
	rec   record.HobRecord
	hdr   Header
	err   error
	done  bool
	ended bool
}

// NewWalker returns a Walker over mem, which holds the HOB list that starts
// at physical address base.
func NewWalker(mem []byte, base uint64) *Walker {
	return &Walker{mem: mem, base: base, r: bytesextra.NewReadWriteSeeker(mem)}
}

// Next advances to the next record. It returns false at the end-of-list HOB
// or after an error.
func (w *Walker) Next() bool {
	if w.done {
		return false
	}
	rec, err := w.step()
	if err != nil {
		w.err = err
		w.done = true
		return false
	}
	if rec == nil {
		w.done = true
		return false
	}
	w.rec = rec
	return true
}

// Record returns the record read by the last successful call to Next.
func (w *Walker) Record() record.HobRecord {
	return w.rec
}

// Header returns the generic header of the current record.
func (w *Walker) Header() Header {
	return w.hdr
}

// Address returns the physical address of the current record.
func (w *Walker) Address() uint64 {
	return w.base + w.off
}

// Err returns the error that stopped the walk, if any.
func (w *Walker) Err() error {
	return w.err
}

// Terminated reports whether the walk reached the end-of-list HOB.
func (w *Walker) Terminated() bool {
	return w.ended
}

func (w *Walker) parseError(off uint64, err error) error {
	return parseErrorAt(off, err)
}

func parseErrorAt(off uint64, err error) error {
	return &record.ParseError{Structure: structure, Offset: off, Err: err}
}

func (w *Walker) step() (record.HobRecord, error) {
	if w.rec != nil {
		// Move past the record handed out by the previous step.
		w.off += uint64(w.hdr.Length)
		w.rec = nil
	}
	if uint64(len(w.mem)) < w.off || uint64(len(w.mem))-w.off < HeaderSize {
		return nil, w.parseError(w.off, ErrUnterminated)
	}
	remaining := uint64(len(w.mem)) - w.off

	if _, err := w.r.Seek(int64(w.off), io.SeekStart); err != nil {
		return nil, w.parseError(w.off, err)
	}
	if err := binary.Read(w.r, binary.LittleEndian, &w.hdr); err != nil {
		return nil, w.parseError(w.off, err)
	}
	if w.hdr.Type == TypeEndOfHOBList {
		w.ended = true
		return nil, nil
	}
	if w.hdr.Length < HeaderSize {
		return nil, w.parseError(w.off, fmt.Errorf("%w: %s declares %d bytes, header alone is %d",
			ErrBadLength, w.hdr.Type, w.hdr.Length, HeaderSize))
	}
	if uint64(w.hdr.Length) > remaining {
		return nil, w.parseError(w.off, fmt.Errorf("%w: %s declares %d bytes, only %d left",
			ErrBadLength, w.hdr.Type, w.hdr.Length, remaining))
	}

	rec, err := w.decode()
	if err != nil {
		return nil, w.parseError(w.off, err)
	}
	return rec, nil
}

// readBody decodes the fixed part of the current HOB into v after checking
// the declared length can hold it.
func (w *Walker) readBody(v interface{}, size int) error {
	if int(w.hdr.Length) < size {
		return fmt.Errorf("%s is %d bytes long, need at least %d", w.hdr.Type, w.hdr.Length, size)
	}
	return binary.Read(w.r, binary.LittleEndian, v)
}

func (w *Walker) decode() (record.HobRecord, error) {
	switch w.hdr.Type {
	case TypeHandoff:
		var h Handoff
		if err := w.readBody(&h, HandoffSize); err != nil {
			return nil, err
		}
		return &record.Handoff{
			Version:          h.Version,
			BootMode:         h.BootMode,
			MemoryTop:        h.EfiMemoryTop,
			MemoryBottom:     h.EfiMemoryBottom,
			FreeMemoryTop:    h.EfiFreeMemoryTop,
			FreeMemoryBottom: h.EfiFreeMemoryBottom,
			EndOfHobList:     h.EfiEndOfHobList,
		}, nil

	case TypeMemoryAllocation:
		var m MemoryAllocation
		if err := w.readBody(&m, MemoryAllocationSize); err != nil {
			return nil, err
		}
		return &record.MemoryAllocation{
			Name:              m.Name,
			MemoryBaseAddress: m.MemoryBaseAddress,
			MemoryLength:      m.MemoryLength,
			MemoryType:        m.MemoryType,
		}, nil

	case TypeResourceDescriptor:
		var r ResourceDescriptor
		if err := w.readBody(&r, ResourceDescriptorSize); err != nil {
			return nil, err
		}
		return &record.ResourceDescriptor{Resource: resource(r)}, nil

	case TypeResourceDescriptorV2:
		var r ResourceDescriptorV2
		if err := w.readBody(&r, ResourceDescriptorV2Size); err != nil {
			return nil, err
		}
		return &record.ResourceDescriptorV2{
			Resource:   resource(r.ResourceDescriptor),
			Attributes: r.Attributes,
		}, nil

	case TypeGUIDExtension:
		var ext struct{ Name guid.GUID }
		if err := w.readBody(&ext, GUIDExtensionSize); err != nil {
			return nil, err
		}
		return &record.GuidExtension{
			Name:       ext.Name,
			DataLength: uint64(w.hdr.Length) - GUIDExtensionSize,
		}, nil

	case TypeFV:
		var fv FV
		if err := w.readBody(&fv, FVSize); err != nil {
			return nil, err
		}
		return &record.FirmwareVolume{Version: 1, BaseAddress: fv.BaseAddress, Length: fv.Length}, nil

	case TypeFV2:
		var fv FV2
		if err := w.readBody(&fv, FV2Size); err != nil {
			return nil, err
		}
		return &record.FirmwareVolume{
			Version:     2,
			BaseAddress: fv.BaseAddress,
			Length:      fv.Length,
			FvName:      &fv.FvName,
			FileName:    &fv.FileName,
		}, nil

	case TypeFV3:
		var fv FV3
		if err := w.readBody(&fv, FV3Size); err != nil {
			return nil, err
		}
		return &record.FirmwareVolume{
			Version:     3,
			BaseAddress: fv.BaseAddress,
			Length:      fv.Length,
			FvName:      &fv.FvName,
			FileName:    &fv.FileName,
		}, nil

	case TypeCPU:
		var cpu CPU
		if err := w.readBody(&cpu, CPUSize); err != nil {
			return nil, err
		}
		return &record.CPU{SizeOfMemorySpace: cpu.SizeOfMemorySpace, SizeOfIOSpace: cpu.SizeOfIoSpace}, nil
	}

	// No canonical form: keep a copy of the body.
	body := w.mem[w.off+HeaderSize : w.off+uint64(w.hdr.Length)]
	return &record.Other{RawType: uint16(w.hdr.Type), Raw: append([]byte{}, body...)}, nil
}

func resource(r ResourceDescriptor) record.Resource {
	return record.Resource{
		Owner:             r.Owner,
		ResourceType:      record.ResourceType(r.ResourceType),
		ResourceAttribute: r.ResourceAttribute,
		PhysicalStart:     r.PhysicalStart,
		ResourceLength:    r.ResourceLength,
	}
}

// Walk collects every record of the list in mem. On error the records read
// so far are returned along with it.
func Walk(mem []byte, base uint64) (record.HobList, error) {
	var list record.HobList
	w := NewWalker(mem, base)
	for w.Next() {
		list = append(list, w.Record())
	}
	return list, w.Err()
}
