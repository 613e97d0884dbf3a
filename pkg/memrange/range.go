// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memrange implements arithmetic over half-open physical address
// ranges: intersection, merging into a disjoint cover and subtraction.
package memrange

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// Range is the half-open physical address range [Base, Base+Length).
type Range struct {
	Base   uint64 `json:"base" yaml:"base"`
	Length uint64 `json:"length" yaml:"length"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Base, r.Base+r.Length)
}

// End returns the exclusive end of the range. ok is false when Base+Length
// does not fit in 64 bits.
func (r Range) End() (end uint64, ok bool) {
	end, carry := bits.Add64(r.Base, r.Length, 0)
	return end, carry == 0
}

// Overflows reports whether Base+Length wraps the 64-bit address space.
// A range ending exactly at 2^64 is representable and does not overflow.
func (r Range) Overflows() bool {
	end, ok := r.End()
	return !ok && end != 0
}

// IsEmpty reports whether the range covers no bytes.
func (r Range) IsEmpty() bool {
	return r.Length == 0
}

// last returns the inclusive last address. Only valid for non-empty,
// non-overflowing ranges.
func (r Range) last() uint64 {
	return r.Base + (r.Length - 1)
}

// Intersect returns True if ranges "r" and "cmp" has at least
// one byte with the same address. Empty ranges never intersect.
func (r Range) Intersect(cmp Range) bool {
	_, ok := r.Intersection(cmp)
	return ok
}

// Intersection returns the common sub-range of r and cmp.
func (r Range) Intersection(cmp Range) (Range, bool) {
	if r.IsEmpty() || cmp.IsEmpty() || r.Overflows() || cmp.Overflows() {
		return Range{}, false
	}
	lo := max(r.Base, cmp.Base)
	hi := min(r.last(), cmp.last())
	if lo > hi {
		return Range{}, false
	}
	return Range{Base: lo, Length: hi - lo + 1}, true
}

// Contains reports whether addr falls into the range.
func (r Range) Contains(addr uint64) bool {
	if r.IsEmpty() || r.Overflows() {
		return false
	}
	return r.Base <= addr && addr <= r.last()
}

// Ranges is a helper to manipulate multiple `Range`-s at once
type Ranges []Range

func (s Ranges) String() string {
	r := make([]string, 0, len(s))
	for _, oneRange := range s {
		r = append(r, oneRange.String())
	}
	return `[` + strings.Join(r, `, `) + `]`
}

// Sort sorts the slice by Base, then by Length.
func (s Ranges) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Base != s[j].Base {
			return s[i].Base < s[j].Base
		}
		return s[i].Length < s[j].Length
	})
}

// Merge returns the minimal sorted set of disjoint ranges covering every
// byte of in. Adjacent ranges are joined. Empty and overflowing ranges are
// ignored. The input is not modified.
func Merge(in Ranges) Ranges {
	sorted := make(Ranges, 0, len(in))
	for _, r := range in {
		if r.IsEmpty() || r.Overflows() {
			continue
		}
		sorted = append(sorted, r)
	}
	if len(sorted) == 0 {
		return nil
	}
	sorted.Sort()

	var result Ranges
	entry := sorted[0]
	for _, next := range sorted[1:] {
		// Join when next starts at or before the byte after entry.
		if next.Base <= entry.last() || next.Base-entry.last() == 1 {
			if last := next.last(); last > entry.last() {
				entry.Length = last - entry.Base + 1
			}
			continue
		}
		result = append(result, entry)
		entry = next
	}
	return append(result, entry)
}

// Subtract returns the parts of r not covered by cover. cover must be the
// output of Merge. The residual pieces are sorted and disjoint, and their
// lengths add up to the uncovered length of r.
func Subtract(r Range, cover Ranges) Ranges {
	if r.IsEmpty() || r.Overflows() {
		return nil
	}
	var result Ranges
	cur := r.Base
	last := r.last()
	for _, c := range cover {
		if c.last() < cur {
			continue
		}
		if c.Base > last {
			break
		}
		if c.Base > cur {
			result = append(result, Range{Base: cur, Length: c.Base - cur})
		}
		if c.last() >= last {
			return result
		}
		cur = c.last() + 1
	}
	return append(result, Range{Base: cur, Length: last - cur + 1})
}

// Total returns the sum of lengths.
func (s Ranges) Total() uint64 {
	var total uint64
	for _, r := range s {
		total += r.Length
	}
	return total
}

// IsIn returns if the address is covered by this ranges
func (s Ranges) IsIn(addr uint64) bool {
	for _, r := range s {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}
