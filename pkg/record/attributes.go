// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"fmt"
	"math/bits"
	"strings"
)

// ResourceType is the EFI_RESOURCE_TYPE of a resource descriptor HOB.
// Values the tools do not know are kept numerically.
type ResourceType uint32

// Resource types defined by the PI specification.
const (
	ResourceSystemMemory       ResourceType = 0x0
	ResourceMemoryMappedIO     ResourceType = 0x1
	ResourceIO                 ResourceType = 0x2
	ResourceFirmwareDevice     ResourceType = 0x3
	ResourceMemoryMappedIOPort ResourceType = 0x4
	ResourceMemoryReserved     ResourceType = 0x5
	ResourceIOReserved         ResourceType = 0x6
	ResourceMemoryUnaccepted   ResourceType = 0x7
)

var resourceTypeNames = map[ResourceType]string{
	ResourceSystemMemory:       "system_memory",
	ResourceMemoryMappedIO:     "memory_mapped_io",
	ResourceIO:                 "io",
	ResourceFirmwareDevice:     "firmware_device",
	ResourceMemoryMappedIOPort: "memory_mapped_io_port",
	ResourceMemoryReserved:     "memory_reserved",
	ResourceIOReserved:         "io_reserved",
	ResourceMemoryUnaccepted:   "memory_unaccepted",
}

func (t ResourceType) String() string {
	if s, ok := resourceTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("resource_type_%#x", uint32(t))
}

// IsIO reports whether the type describes I/O port space rather than
// memory.
func (t ResourceType) IsIO() bool {
	return t == ResourceIO || t == ResourceIOReserved
}

// Legacy (V1) resource attribute bits, EFI_RESOURCE_ATTRIBUTE_*.
const (
	ResourceAttrPresent               uint32 = 0x00000001
	ResourceAttrInitialized           uint32 = 0x00000002
	ResourceAttrTested                uint32 = 0x00000004
	ResourceAttrReadProtected         uint32 = 0x00000080
	ResourceAttrWriteProtected        uint32 = 0x00000100
	ResourceAttrExecutionProtected    uint32 = 0x00000200
	ResourceAttrUncacheable           uint32 = 0x00000400
	ResourceAttrWriteCombineable      uint32 = 0x00000800
	ResourceAttrWriteThroughCacheable uint32 = 0x00001000
	ResourceAttrWriteBackCacheable    uint32 = 0x00002000
	ResourceAttrUncachedExported      uint32 = 0x00020000
	ResourceAttrReadOnlyProtected     uint32 = 0x00040000
	ResourceAttrPersistent            uint32 = 0x00800000
	ResourceAttrMoreReliable          uint32 = 0x02000000
	ResourceAttrEncrypted             uint32 = 0x04000000
	ResourceAttrSpecialPurpose        uint32 = 0x08000000
)

// UEFI memory attributes carried by resource descriptor V2 HOBs,
// EFI_MEMORY_*.
const (
	MemoryUC           uint64 = 0x0000000000000001
	MemoryWC           uint64 = 0x0000000000000002
	MemoryWT           uint64 = 0x0000000000000004
	MemoryWB           uint64 = 0x0000000000000008
	MemoryUCE          uint64 = 0x0000000000000010
	MemoryWP           uint64 = 0x0000000000001000
	MemoryRP           uint64 = 0x0000000000002000
	MemoryXP           uint64 = 0x0000000000004000
	MemoryNV           uint64 = 0x0000000000008000
	MemoryMoreReliable uint64 = 0x0000000000010000
	MemoryRO           uint64 = 0x0000000000020000
	MemorySP           uint64 = 0x0000000000040000
	MemoryCPUCrypto    uint64 = 0x0000000000080000
	MemoryRuntime      uint64 = 0x8000000000000000

	// CacheAttributeMask is the cacheability sub-field.
	CacheAttributeMask = MemoryUC | MemoryWC | MemoryWT | MemoryWB | MemoryUCE | MemoryWP
	// AccessAttributeMask is the access protection sub-field.
	AccessAttributeMask = MemoryRP | MemoryXP | MemoryRO
)

var memoryAttrNames = []struct {
	bit  uint64
	name string
}{
	{MemoryUC, "UC"},
	{MemoryWC, "WC"},
	{MemoryWT, "WT"},
	{MemoryWB, "WB"},
	{MemoryUCE, "UCE"},
	{MemoryWP, "WP"},
	{MemoryRP, "RP"},
	{MemoryXP, "XP"},
	{MemoryNV, "NV"},
	{MemoryMoreReliable, "MORE_RELIABLE"},
	{MemoryRO, "RO"},
	{MemorySP, "SP"},
	{MemoryCPUCrypto, "CPU_CRYPTO"},
	{MemoryRuntime, "RUNTIME"},
}

// CacheabilityBits returns the cacheability bits of attributes other than
// UCE, which has its own prohibition.
func CacheabilityBits(attributes uint64) uint64 {
	return attributes & (CacheAttributeMask &^ MemoryUCE)
}

// CacheabilityCount returns how many cacheability policies attributes
// selects.
func CacheabilityCount(attributes uint64) int {
	return bits.OnesCount64(CacheabilityBits(attributes))
}

// MemoryAttributesString renders attributes as a "|" separated list of
// symbolic names, with any unnamed bits in hex.
func MemoryAttributesString(attributes uint64) string {
	if attributes == 0 {
		return "0"
	}
	var parts []string
	rest := attributes
	for _, a := range memoryAttrNames {
		if attributes&a.bit != 0 {
			parts = append(parts, a.name)
			rest &^= a.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", rest))
	}
	return strings.Join(parts, "|")
}
