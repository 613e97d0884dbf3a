// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/memrange"
)

// Kind tags a HobRecord variant in the interchange format.
type Kind string

// HOB record kinds.
const (
	KindHandoff              Kind = "handoff"
	KindMemoryAllocation     Kind = "memory_allocation"
	KindResourceDescriptor   Kind = "resource_descriptor"
	KindResourceDescriptorV2 Kind = "resource_descriptor_v2"
	KindGuidExtension        Kind = "guid_extension"
	KindFirmwareVolume       Kind = "firmware_volume"
	KindCPU                  Kind = "cpu"
	KindOther                Kind = "other"
)

// HobRecord is one canonical hand-off block. The concrete types are the
// pointer types declared in this file, plus *Unknown for variants written
// by a newer producer.
type HobRecord interface {
	Kind() Kind
}

// Ranged is implemented by records describing a physical address range.
type Ranged interface {
	HobRecord
	Range() memrange.Range
}

// Handoff is the PHIT HOB that starts every HOB list.
type Handoff struct {
	Version          uint32 `json:"version"`
	BootMode         uint32 `json:"boot_mode"`
	MemoryTop        uint64 `json:"memory_top"`
	MemoryBottom     uint64 `json:"memory_bottom"`
	FreeMemoryTop    uint64 `json:"free_memory_top"`
	FreeMemoryBottom uint64 `json:"free_memory_bottom"`
	EndOfHobList     uint64 `json:"end_of_hob_list"`
	Extension
}

// Kind implements HobRecord.
func (*Handoff) Kind() Kind { return KindHandoff }

// MemoryAllocation describes memory allocated before the hand-off.
type MemoryAllocation struct {
	Name              guid.GUID `json:"name"`
	MemoryBaseAddress uint64    `json:"memory_base_address"`
	MemoryLength      uint64    `json:"memory_length"`
	MemoryType        uint32    `json:"memory_type"`
	Extension
}

// Kind implements HobRecord.
func (*MemoryAllocation) Kind() Kind { return KindMemoryAllocation }

// Range implements Ranged.
func (m *MemoryAllocation) Range() memrange.Range {
	return memrange.Range{Base: m.MemoryBaseAddress, Length: m.MemoryLength}
}

// Resource holds the fields shared by V1 and V2 resource descriptors.
type Resource struct {
	Owner             guid.GUID    `json:"owner"`
	ResourceType      ResourceType `json:"resource_type"`
	ResourceAttribute uint32       `json:"resource_attribute"`
	PhysicalStart     uint64       `json:"physical_start"`
	ResourceLength    uint64       `json:"resource_length"`
}

// Range returns the described physical range.
func (r Resource) Range() memrange.Range {
	return memrange.Range{Base: r.PhysicalStart, Length: r.ResourceLength}
}

// ResourceDescriptor is a V1 resource descriptor HOB.
type ResourceDescriptor struct {
	Resource
	Extension
}

// Kind implements HobRecord.
func (*ResourceDescriptor) Kind() Kind { return KindResourceDescriptor }

// ResourceDescriptorV2 extends a V1 descriptor with UEFI memory attributes.
type ResourceDescriptorV2 struct {
	Resource
	Attributes uint64 `json:"attributes"`
	Extension
}

// Kind implements HobRecord.
func (*ResourceDescriptorV2) Kind() Kind { return KindResourceDescriptorV2 }

// GuidExtension is a GUID-named opaque data HOB. Only the payload length is
// kept.
type GuidExtension struct {
	Name       guid.GUID `json:"name"`
	DataLength uint64    `json:"data_length"`
	Extension
}

// Kind implements HobRecord.
func (*GuidExtension) Kind() Kind { return KindGuidExtension }

// FirmwareVolume is an FV, FV2 or FV3 HOB.
type FirmwareVolume struct {
	Version     uint8      `json:"version"`
	BaseAddress uint64     `json:"base_address"`
	Length      uint64     `json:"length"`
	FvName      *guid.GUID `json:"fv_name,omitempty"`
	FileName    *guid.GUID `json:"file_name,omitempty"`
	Extension
}

// Kind implements HobRecord.
func (*FirmwareVolume) Kind() Kind { return KindFirmwareVolume }

// Range implements Ranged.
func (f *FirmwareVolume) Range() memrange.Range {
	return memrange.Range{Base: f.BaseAddress, Length: f.Length}
}

// CPU describes the processor address space sizes.
type CPU struct {
	SizeOfMemorySpace uint8 `json:"size_of_memory_space"`
	SizeOfIOSpace     uint8 `json:"size_of_io_space"`
	Extension
}

// Kind implements HobRecord.
func (*CPU) Kind() Kind { return KindCPU }

// Other carries a HOB of a type without a canonical form.
type Other struct {
	RawType uint16 `json:"raw_type"`
	Raw     []byte `json:"raw"`
	Extension
}

// Kind implements HobRecord.
func (*Other) Kind() Kind { return KindOther }

// Unknown keeps a variant this build cannot decode, verbatim.
type Unknown struct {
	Tag string
	Raw []byte
}

// Kind implements HobRecord.
func (u *Unknown) Kind() Kind { return Kind(u.Tag) }

func newHobRecord(k Kind) HobRecord {
	switch k {
	case KindHandoff:
		return &Handoff{}
	case KindMemoryAllocation:
		return &MemoryAllocation{}
	case KindResourceDescriptor:
		return &ResourceDescriptor{}
	case KindResourceDescriptorV2:
		return &ResourceDescriptorV2{}
	case KindGuidExtension:
		return &GuidExtension{}
	case KindFirmwareVolume:
		return &FirmwareVolume{}
	case KindCPU:
		return &CPU{}
	case KindOther:
		return &Other{}
	}
	return nil
}
