// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memrange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeIntersection(t *testing.T) {
	var tests = []struct {
		name string
		a, b Range
		want Range
		ok   bool
	}{
		{"disjoint", Range{0, 0x1000}, Range{0x2000, 0x1000}, Range{}, false},
		{"touching", Range{0, 0x1000}, Range{0x1000, 0x1000}, Range{}, false},
		{"overlap", Range{0, 0x1800}, Range{0x1000, 0x1000}, Range{0x1000, 0x800}, true},
		{"inside", Range{0, 0x10000}, Range{0x1000, 0x10}, Range{0x1000, 0x10}, true},
		{"empty", Range{0x1000, 0}, Range{0, 0x10000}, Range{}, false},
		{"top of memory", Range{math.MaxUint64 - 0xFFF, 0x1000}, Range{math.MaxUint64 - 0xF, 0x10}, Range{math.MaxUint64 - 0xF, 0x10}, true},
		{"overflowing", Range{math.MaxUint64, 2}, Range{0, 0x10}, Range{}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := test.a.Intersection(test.b)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.ok, test.b.Intersect(test.a))
		})
	}
}

func TestRangeOverflows(t *testing.T) {
	assert.False(t, Range{Base: math.MaxUint64 - 0xFFF, Length: 0x1000}.Overflows())
	assert.True(t, Range{Base: math.MaxUint64 - 0xFFF, Length: 0x1001}.Overflows())
	assert.False(t, Range{Base: math.MaxUint64, Length: 0}.Overflows())
}

func TestMerge(t *testing.T) {
	var tests = []struct {
		name string
		in   Ranges
		want Ranges
	}{
		{"nothing_to_merge", Ranges{{2, 1}, {0, 1}}, Ranges{{0, 1}, {2, 1}}},
		{"merge_overlapping", Ranges{{2, 3}, {0, 3}}, Ranges{{0, 5}}},
		{"merge_no_distance", Ranges{{2, 2}, {0, 2}}, Ranges{{0, 4}}},
		{"merge_next_range_inside_previous", Ranges{
			{0, 0},
			{12320788, 4},
			{12255584, 32},
			{12582912, 4194304},
			{15760208, 67646},
			{1114112, 11141120},
			{16777152, 16},
			{12255232, 432},
		}, Ranges{
			{1114112, 11141552},
			{12320788, 4},
			{12582912, 4194304},
		}},
		{"drops_empty", Ranges{{5, 0}}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, Merge(test.in))
		})
	}
}

func TestSubtract(t *testing.T) {
	cover := Merge(Ranges{{0x1000, 0x1000}, {0x3000, 0x1000}})
	var tests = []struct {
		name string
		r    Range
		want Ranges
	}{
		{"fully_covered", Range{0x1000, 0x800}, nil},
		{"exactly_covered", Range{0x3000, 0x1000}, nil},
		{"gap_in_middle", Range{0x1000, 0x3000}, Ranges{{0x2000, 0x1000}}},
		{"both_sides", Range{0, 0x5000}, Ranges{{0, 0x1000}, {0x2000, 0x1000}, {0x4000, 0x1000}}},
		{"outside", Range{0x8000, 0x10}, Ranges{{0x8000, 0x10}}},
		{"empty", Range{0x8000, 0}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Subtract(test.r, cover)
			require.Equal(t, test.want, got)

			var covered uint64
			for _, c := range cover {
				if i, ok := test.r.Intersection(c); ok {
					covered += i.Length
				}
			}
			require.Equal(t, test.r.Length-covered, got.Total())
		})
	}
}

func TestIsIn(t *testing.T) {
	s := Ranges{{0x10, 0x10}}
	assert.True(t, s.IsIn(0x10))
	assert.True(t, s.IsIn(0x1F))
	assert.False(t, s.IsIn(0x20))
}
