// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/memrange"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
)

var (
	owner1 = guid.MustParse("4ED4BF27-4092-42E9-807D-527B1D00C9BD")
	owner2 = guid.MustParse("F8E21975-0899-4F58-A4BE-5525A9C6D77A")
)

func v1(start, length uint64, typ record.ResourceType) *record.ResourceDescriptor {
	return &record.ResourceDescriptor{Resource: record.Resource{
		Owner: owner1, ResourceType: typ, ResourceAttribute: 0x7, PhysicalStart: start, ResourceLength: length,
	}}
}

func v2(start, length uint64, typ record.ResourceType, attributes uint64) *record.ResourceDescriptorV2 {
	return &record.ResourceDescriptorV2{Resource: record.Resource{
		Owner: owner1, ResourceType: typ, ResourceAttribute: 0x7, PhysicalStart: start, ResourceLength: length,
	}, Attributes: attributes}
}

func alloc(base, length uint64) *record.MemoryAllocation {
	return &record.MemoryAllocation{MemoryBaseAddress: base, MemoryLength: length, MemoryType: 4}
}

func hobs(h ...record.HobRecord) *record.Capture {
	return &record.Capture{
		SchemaVersion: record.SchemaVersion,
		HobList:       append(record.HobList{&record.Handoff{Version: 9}}, h...),
		FvList:        []record.FvRecord{},
	}
}

func run(t *testing.T, check checkFunc, c *record.Capture, cfg Config) []report.Finding {
	t.Helper()
	findings, err := check(c, cfg.withDefaults())
	require.NoError(t, err)
	return findings
}

const mem = record.ResourceSystemMemory

func TestAddressOverflow(t *testing.T) {
	c := hobs(
		v1(0xFFFFFFFFFFFFF000, 0x2000, mem),
		v2(0xFFFFFFFFFFFFF000, 0x1000, mem, record.MemoryWB),
		alloc(0xFFFFFFFFFFFFFFF0, 0x20),
		&record.FirmwareVolume{BaseAddress: 0xFFFFFFFF00000000, Length: 0x100000000},
	)
	c.FvList = []record.FvRecord{{Base: 0xFFFFFFFFFFFF0000, Length: 0x20000}}

	findings := run(t, checkAddressOverflow, c, Config{})
	require.Len(t, findings, 3, "ranges ending exactly at 2^64 do not overflow")
	assert.Equal(t, report.EntityResourceDescriptor, findings[0].Entities[0].Kind)
	assert.Equal(t, 1, findings[0].Entities[0].Index)
	assert.Equal(t, report.EntityMemoryAllocation, findings[1].Entities[0].Kind)
	assert.Equal(t, report.EntityFirmwareVolume, findings[2].Entities[0].Kind)
	for _, f := range findings {
		assert.Equal(t, report.Prohibited, f.Severity)
		assert.Equal(t, report.AddressOverflow, f.Category)
	}
}

func TestOverlappingRanges(t *testing.T) {
	var tests = []struct {
		name string
		hobs []record.HobRecord
		want []memrange.Range
		info int
	}{
		{
			name: "touching",
			hobs: []record.HobRecord{v1(0x1000, 0x1000, mem), v1(0x2000, 0x1000, mem)},
		},
		{
			name: "overlap",
			hobs: []record.HobRecord{v1(0x2800, 0x1000, mem), v1(0x2000, 0x1000, mem)},
			want: []memrange.Range{{Base: 0x2800, Length: 0x800}},
		},
		{
			name: "contained pairs",
			hobs: []record.HobRecord{v1(0, 0x10000, mem), v1(0x1000, 0x1000, mem), v1(0x4000, 0x1000, mem)},
			want: []memrange.Range{{Base: 0x1000, Length: 0x1000}, {Base: 0x4000, Length: 0x1000}},
		},
		{
			name: "versions are separate",
			hobs: []record.HobRecord{v1(0x1000, 0x1000, mem), v2(0x1000, 0x1000, mem, record.MemoryWB)},
		},
		{
			name: "io and memory are separate",
			hobs: []record.HobRecord{v1(0x1000, 0x1000, mem), v1(0x1000, 0x1000, record.ResourceIO)},
		},
		{
			name: "io",
			hobs: []record.HobRecord{v2(0x0, 0x100, record.ResourceIO, 0), v2(0x80, 0x100, record.ResourceIOReserved, 0)},
			want: []memrange.Range{{Base: 0x80, Length: 0x80}},
		},
		{
			name: "zero length",
			hobs: []record.HobRecord{v1(0x1000, 0x1000, mem), v1(0x1800, 0, mem)},
			info: 1,
		},
		{
			name: "ends at top of address space",
			hobs: []record.HobRecord{v1(0xFFFFFFFFFFFFF000, 0x1000, mem), v1(0xFFFFFFFFFFFFF800, 0x100, mem)},
			want: []memrange.Range{{Base: 0xFFFFFFFFFFFFF800, Length: 0x100}},
		},
		{
			name: "duplicates",
			hobs: []record.HobRecord{v2(0x1000, 0x1000, mem, record.MemoryWB), v2(0x1000, 0x1000, mem, record.MemoryWB)},
			want: []memrange.Range{{Base: 0x1000, Length: 0x1000}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []memrange.Range
			info := 0
			for _, f := range run(t, checkOverlappingRanges, hobs(test.hobs...), Config{}) {
				if f.Category == report.ZeroLengthRange {
					assert.Equal(t, report.Info, f.Severity)
					info++
					continue
				}
				assert.Equal(t, report.OverlappingMemoryRanges, f.Category)
				require.Len(t, f.Entities, 2)
				got = append(got, *f.Range)
			}
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.info, info)
		})
	}
}

func TestV1CoveredByV2(t *testing.T) {
	var tests = []struct {
		name string
		hobs []record.HobRecord
		want []memrange.Range
	}{
		{
			name: "covered by one",
			hobs: []record.HobRecord{v1(200, 30, mem), v2(100, 200, mem, record.MemoryWB)},
		},
		{
			name: "covered by adjacent",
			hobs: []record.HobRecord{v1(200, 50, mem), v2(100, 120, mem, record.MemoryWB), v2(220, 80, mem, record.MemoryWB)},
		},
		{
			name: "gaps",
			hobs: []record.HobRecord{v1(200, 100, mem), v2(100, 50, mem, record.MemoryWB), v2(180, 30, mem, record.MemoryWB), v2(250, 10, mem, record.MemoryWB)},
			want: []memrange.Range{{Base: 210, Length: 40}, {Base: 260, Length: 40}},
		},
		{
			name: "no v2",
			hobs: []record.HobRecord{v1(0x1000, 0x1000, mem)},
			want: []memrange.Range{{Base: 0x1000, Length: 0x1000}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []memrange.Range
			var total uint64
			for _, f := range run(t, checkV1CoveredByV2, hobs(test.hobs...), Config{}) {
				assert.Equal(t, report.V1MemoryRangeNotContainedInV2, f.Category)
				got = append(got, *f.Range)
				total += f.Range.Length
			}
			assert.Equal(t, test.want, got)
			assert.Equal(t, memrange.Ranges(test.want).Total(), total)
		})
	}
}

func TestAttributeConsistency(t *testing.T) {
	other := v2(0x1800, 0x1000, mem, record.MemoryWB)
	other.Owner = owner2
	other.ResourceAttribute = 0x3

	c := hobs(
		v1(0x1000, 0x1000, mem),
		v2(0x1000, 0x800, mem, record.MemoryWB),
		other,
		v2(0x8000, 0x1000, record.ResourceMemoryReserved, record.MemoryUC),
	)
	findings := run(t, checkAttributeConsistency, c, Config{})
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, report.InconsistentMemoryAttributes, f.Category)
	assert.Equal(t, memrange.Range{Base: 0x1800, Length: 0x800}, *f.Range)
	assert.Contains(t, f.Message, "resource attribute 0x7 differs from 0x3")
	assert.Contains(t, f.Message, "owner")
	assert.NotContains(t, f.Message, "resource type")
	assert.Equal(t, 1, f.Entities[0].Index)
	assert.Equal(t, 3, f.Entities[1].Index)
}

func TestV2Attributes(t *testing.T) {
	var tests = []struct {
		name       string
		typ        record.ResourceType
		attributes uint64
		want       []report.Category
	}{
		{"write back", mem, record.MemoryWB | record.MemoryXP, nil},
		{"write protect", mem, record.MemoryWP, nil},
		{"two policies", mem, record.MemoryWB | record.MemoryUC, []report.Category{report.V2InvalidCacheabilityAttribute}},
		{"uce", mem, record.MemoryUCE, []report.Category{report.V2ContainsUceAttribute}},
		{"uce and write back", mem, record.MemoryUCE | record.MemoryWB, []report.Category{report.V2ContainsUceAttribute}},
		{"none", mem, record.MemoryXP, []report.Category{report.V2MissingCacheabilityAttribute}},
		{"io clean", record.ResourceIO, 0, nil},
		{"io attributes", record.ResourceIO, record.MemoryUC, []report.Category{report.V2InvalidIoCacheabilityAttributes}},
		{"io reserved attributes", record.ResourceIOReserved, record.MemoryXP, []report.Category{report.V2InvalidIoCacheabilityAttributes}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := hobs(v2(0x100000, 0x1000, test.typ, test.attributes))
			var got []report.Category
			for _, check := range []checkFunc{checkV2UCE, checkV2Cacheability, checkV2IOAttributes} {
				for _, f := range run(t, check, c, Config{}) {
					got = append(got, f.Category)
				}
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestPageZero(t *testing.T) {
	var tests = []struct {
		name         string
		base, length uint64
		pageSize     uint64
		want         bool
	}{
		{"page zero", 0, 0x10, 0, true},
		{"zero length at zero", 0, 0, 0, true},
		{"inside page", 0xFFF, 0x100, 0, true},
		{"above page", DefaultPageSize + 1, 0x100, 0, false},
		{"at page", DefaultPageSize, 0x1000, 0, false},
		{"large page", 0x1000, 0x1000, 0x10000, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			findings := run(t, checkPageZero, hobs(alloc(test.base, test.length)), Config{PageSize: test.pageSize})
			if !test.want {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, report.PageZeroMemoryDescribed, findings[0].Category)
			assert.Equal(t, 1, findings[0].Entities[0].Index)
		})
	}
}

func TestEmptyCapture(t *testing.T) {
	findings := run(t, checkEmptyCapture, &record.Capture{}, Config{})
	require.Len(t, findings, 2)
	assert.Equal(t, report.EmptyHobList, findings[0].Category)
	assert.Equal(t, report.EmptyFvList, findings[1].Category)

	c := hobs()
	c.FvList = []record.FvRecord{{}}
	assert.Empty(t, run(t, checkEmptyCapture, c, Config{}))
}

func TestCaptureDiagnostics(t *testing.T) {
	c := hobs()
	c.Diagnostics = []record.Diagnostic{{Structure: "FFS file", Address: 0xFFC00100, Message: "bad checksum"}}
	findings := run(t, checkCaptureDiagnostics, c, Config{})
	require.Len(t, findings, 1)
	assert.Equal(t, report.Warning, findings[0].Severity)
	assert.Equal(t, "FFS file at 0xffc00100: bad checksum", findings[0].Message)
}
