// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hob walks a PI hand-off block list and turns each entry into a
// canonical record.
package hob

import (
	"github.com/linuxboot/dxeready/pkg/guid"
)

// Type is the HobType field of EFI_HOB_GENERIC_HEADER.
type Type uint16

// HOB types defined by the PI specification.
const (
	TypeHandoff              Type = 0x0001
	TypeMemoryAllocation     Type = 0x0002
	TypeResourceDescriptor   Type = 0x0003
	TypeGUIDExtension        Type = 0x0004
	TypeFV                   Type = 0x0005
	TypeCPU                  Type = 0x0006
	TypeMemoryPool           Type = 0x0007
	TypeFV2                  Type = 0x0009
	TypeLoadPEIMUnused       Type = 0x000A
	TypeUEFICapsule          Type = 0x000B
	TypeFV3                  Type = 0x000C
	TypeResourceDescriptorV2 Type = 0x000D
	TypeUnused               Type = 0xFFF0
	TypeEndOfHOBList         Type = 0xFFFF
)

var typeNames = map[Type]string{
	TypeHandoff:              "EFI_HOB_TYPE_HANDOFF",
	TypeMemoryAllocation:     "EFI_HOB_TYPE_MEMORY_ALLOCATION",
	TypeResourceDescriptor:   "EFI_HOB_TYPE_RESOURCE_DESCRIPTOR",
	TypeGUIDExtension:        "EFI_HOB_TYPE_GUID_EXTENSION",
	TypeFV:                   "EFI_HOB_TYPE_FV",
	TypeCPU:                  "EFI_HOB_TYPE_CPU",
	TypeMemoryPool:           "EFI_HOB_TYPE_MEMORY_POOL",
	TypeFV2:                  "EFI_HOB_TYPE_FV2",
	TypeLoadPEIMUnused:       "EFI_HOB_TYPE_LOAD_PEIM_UNUSED",
	TypeUEFICapsule:          "EFI_HOB_TYPE_UEFI_CAPSULE",
	TypeFV3:                  "EFI_HOB_TYPE_FV3",
	TypeResourceDescriptorV2: "EFI_HOB_TYPE_RESOURCE_DESCRIPTOR2",
	TypeUnused:               "EFI_HOB_TYPE_UNUSED",
	TypeEndOfHOBList:         "EFI_HOB_TYPE_END_OF_HOB_LIST",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "EFI_HOB_TYPE_UNKNOWN"
}

// Structure sizes, headers included.
const (
	HeaderSize               = 8
	HandoffSize              = 56
	MemoryAllocationSize     = 48
	ResourceDescriptorSize   = 48
	ResourceDescriptorV2Size = 56
	GUIDExtensionSize        = 24
	FVSize                   = 24
	FV2Size                  = 56
	FV3Size                  = 64
	CPUSize                  = 16

	// Alignment is the alignment every HOB length is a multiple of.
	Alignment = 8
)

// Header is EFI_HOB_GENERIC_HEADER.
type Header struct {
	Type     Type
	Length   uint16
	Reserved uint32
}

// Handoff is EFI_HOB_HANDOFF_INFO_TABLE without its header.
type Handoff struct {
	Version             uint32
	BootMode            uint32
	EfiMemoryTop        uint64
	EfiMemoryBottom     uint64
	EfiFreeMemoryTop    uint64
	EfiFreeMemoryBottom uint64
	EfiEndOfHobList     uint64
}

// MemoryAllocation is EFI_HOB_MEMORY_ALLOCATION_HEADER.
type MemoryAllocation struct {
	Name              guid.GUID
	MemoryBaseAddress uint64
	MemoryLength      uint64
	MemoryType        uint32
	Reserved          [4]uint8
}

// ResourceDescriptor is EFI_HOB_RESOURCE_DESCRIPTOR without its header.
type ResourceDescriptor struct {
	Owner             guid.GUID
	ResourceType      uint32
	ResourceAttribute uint32
	PhysicalStart     uint64
	ResourceLength    uint64
}

// ResourceDescriptorV2 is EFI_HOB_RESOURCE_DESCRIPTOR_V2 without its header.
type ResourceDescriptorV2 struct {
	ResourceDescriptor
	Attributes uint64
}

// FV is EFI_HOB_FIRMWARE_VOLUME without its header.
type FV struct {
	BaseAddress uint64
	Length      uint64
}

// FV2 is EFI_HOB_FIRMWARE_VOLUME2 without its header.
type FV2 struct {
	FV
	FvName   guid.GUID
	FileName guid.GUID
}

// FV3 is EFI_HOB_FIRMWARE_VOLUME3 without its header.
type FV3 struct {
	FV
	AuthenticationStatus uint32
	ExtractedFv          uint8
	_                    [3]uint8
	FvName               guid.GUID
	FileName             guid.GUID
}

// CPU is EFI_HOB_CPU without its header.
type CPU struct {
	SizeOfMemorySpace uint8
	SizeOfIoSpace     uint8
	Reserved          [6]uint8
}
