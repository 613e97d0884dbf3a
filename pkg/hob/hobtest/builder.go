// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hobtest builds binary HOB lists for tests.
package hobtest

import (
	"bytes"
	"encoding/binary"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/hob"
)

// Builder accumulates HOBs after a PHIT HOB. The PHIT end-of-list pointer is
// filled in by Bytes.
type Builder struct {
	Base uint64
	PHIT hob.Handoff

	body bytes.Buffer
}

// New returns a Builder for a list placed at base.
func New(base uint64) *Builder {
	return &Builder{Base: base, PHIT: hob.Handoff{Version: 9}}
}

func (b *Builder) add(t hob.Type, length int, v ...interface{}) *Builder {
	hdr := hob.Header{Type: t, Length: uint16(length)}
	start := b.body.Len()
	_ = binary.Write(&b.body, binary.LittleEndian, hdr)
	for _, x := range v {
		_ = binary.Write(&b.body, binary.LittleEndian, x)
	}
	for b.body.Len()-start < length {
		b.body.WriteByte(0)
	}
	return b
}

// Raw appends an arbitrary header and body; length is written verbatim so
// malformed lists can be produced.
func (b *Builder) Raw(t hob.Type, length uint16, body []byte) *Builder {
	_ = binary.Write(&b.body, binary.LittleEndian, hob.Header{Type: t, Length: length})
	b.body.Write(body)
	return b
}

// Resource appends a V1 resource descriptor.
func (b *Builder) Resource(owner guid.GUID, resType, attr uint32, start, length uint64) *Builder {
	return b.add(hob.TypeResourceDescriptor, hob.ResourceDescriptorSize, hob.ResourceDescriptor{
		Owner: owner, ResourceType: resType, ResourceAttribute: attr, PhysicalStart: start, ResourceLength: length,
	})
}

// ResourceV2 appends a V2 resource descriptor.
func (b *Builder) ResourceV2(owner guid.GUID, resType, attr uint32, start, length, attributes uint64) *Builder {
	return b.add(hob.TypeResourceDescriptorV2, hob.ResourceDescriptorV2Size, hob.ResourceDescriptorV2{
		ResourceDescriptor: hob.ResourceDescriptor{
			Owner: owner, ResourceType: resType, ResourceAttribute: attr, PhysicalStart: start, ResourceLength: length,
		},
		Attributes: attributes,
	})
}

// MemoryAllocation appends a memory allocation HOB.
func (b *Builder) MemoryAllocation(name guid.GUID, base, length uint64, memType uint32) *Builder {
	return b.add(hob.TypeMemoryAllocation, hob.MemoryAllocationSize, hob.MemoryAllocation{
		Name: name, MemoryBaseAddress: base, MemoryLength: length, MemoryType: memType,
	})
}

// GUIDExtension appends a GUID extension HOB carrying data, padded to the
// HOB alignment.
func (b *Builder) GUIDExtension(name guid.GUID, data []byte) *Builder {
	length := hob.GUIDExtensionSize + len(data)
	length = (length + hob.Alignment - 1) &^ (hob.Alignment - 1)
	return b.add(hob.TypeGUIDExtension, length, name, data)
}

// FV appends an FV HOB.
func (b *Builder) FV(base, length uint64) *Builder {
	return b.add(hob.TypeFV, hob.FVSize, hob.FV{BaseAddress: base, Length: length})
}

// FV2 appends an FV2 HOB.
func (b *Builder) FV2(base, length uint64, fvName, fileName guid.GUID) *Builder {
	return b.add(hob.TypeFV2, hob.FV2Size, hob.FV2{FV: hob.FV{BaseAddress: base, Length: length}, FvName: fvName, FileName: fileName})
}

// CPU appends a CPU HOB.
func (b *Builder) CPU(memBits, ioBits uint8) *Builder {
	return b.add(hob.TypeCPU, hob.CPUSize, hob.CPU{SizeOfMemorySpace: memBits, SizeOfIoSpace: ioBits})
}

// Bytes returns the PHIT HOB, the appended HOBs and, when terminate is set,
// the end-of-list HOB.
func (b *Builder) Bytes(terminate bool) []byte {
	var out bytes.Buffer
	phit := b.PHIT
	phit.EfiEndOfHobList = b.Base + hob.HandoffSize + uint64(b.body.Len())
	_ = binary.Write(&out, binary.LittleEndian, hob.Header{Type: hob.TypeHandoff, Length: hob.HandoffSize})
	_ = binary.Write(&out, binary.LittleEndian, phit)
	out.Write(b.body.Bytes())
	if terminate {
		_ = binary.Write(&out, binary.LittleEndian, hob.Header{Type: hob.TypeEndOfHOBList, Length: hob.HeaderSize})
	}
	return out.Bytes()
}
