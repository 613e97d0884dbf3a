// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"strings"
	"unicode"

	"github.com/fatih/camelcase"
)

// Category groups findings of the same kind. Its value is a CamelCase
// identifier that is stable across releases.
type Category string

// Categories.
const (
	AddressOverflow                   Category = "AddressOverflow"
	OverlappingMemoryRanges           Category = "OverlappingMemoryRanges"
	ZeroLengthRange                   Category = "ZeroLengthRange"
	V1MemoryRangeNotContainedInV2     Category = "V1MemoryRangeNotContainedInV2"
	InconsistentMemoryAttributes      Category = "InconsistentMemoryAttributes"
	V2ContainsUceAttribute            Category = "V2ContainsUceAttribute"
	V2InvalidCacheabilityAttribute    Category = "V2InvalidCacheabilityAttribute"
	V2MissingCacheabilityAttribute    Category = "V2MissingCacheabilityAttribute"
	V2InvalidIoCacheabilityAttributes Category = "V2InvalidIoCacheabilityAttributes"
	PageZeroMemoryDescribed           Category = "PageZeroMemoryDescribed"
	CombinedDriversPresent            Category = "CombinedDriversPresent"
	LzmaCompressedSections            Category = "LzmaCompressedSections"
	ProhibitedAprioriFile             Category = "ProhibitedAprioriFile"
	UsesTraditionalSmm                Category = "UsesTraditionalSmm"
	InvalidSectionAlignment           Category = "InvalidSectionAlignment"
	CaptureDiagnostic                 Category = "CaptureDiagnostic"
	EmptyHobList                      Category = "EmptyHobList"
	EmptyFvList                       Category = "EmptyFvList"
	RuleFailure                       Category = "RuleFailure"
)

type categoryInfo struct {
	scope    string
	guidance string
}

var categories = map[Category]categoryInfo{
	AddressOverflow: {"HOB", "Base address plus length must fit in 64 bits."},
	OverlappingMemoryRanges: {"HOB", "Split overlapping resource descriptors into disjoint ranges\n" +
		"and drop duplicates. Touching ranges are fine."},
	ZeroLengthRange: {"HOB", "Zero-length resource descriptors describe nothing and can be dropped."},
	V1MemoryRangeNotContainedInV2: {"HOB", "Every range described by a V1 resource descriptor must also be\n" +
		"described by one or more V2 resource descriptors."},
	InconsistentMemoryAttributes: {"HOB", "V1 and V2 descriptors describing the same memory must agree on\n" +
		"owner, resource type and resource attributes."},
	V2ContainsUceAttribute:         {"HOB", "EFI_MEMORY_UCE must not be set in V2 resource descriptors."},
	V2InvalidCacheabilityAttribute: {"HOB", "A V2 memory descriptor selects exactly one of UC, WC, WT, WB or WP."},
	V2MissingCacheabilityAttribute: {"HOB", "Set the one cacheability attribute the range is mapped with\n" +
		"in the V2 resource descriptor. A descriptor with none is reported\n" +
		"as a warning and does not fail validation."},
	V2InvalidIoCacheabilityAttributes: {"HOB", "V2 descriptors of I/O resources must not carry cacheability\n" +
		"or memory protection attributes."},
	PageZeroMemoryDescribed: {"HOB", "Page zero must not be allocated so that NULL dereferences fault."},
	CombinedDriversPresent: {"FV", "COMBINED_PEIM_DRIVER (0x08) and COMBINED_MM_DXE (0x0C) files are\n" +
		"not dispatched. Build one single-phase module per phase."},
	LzmaCompressedSections: {"FV", "Sections decompressed in DXE must use Brotli or EFI standard\n" +
		"(Tiano) compression instead of LZMA."},
	ProhibitedAprioriFile: {"FV", "Remove the a-priori file and order dispatch with depex\n" +
		"expressions. A driver may install an empty protocol just to be a\n" +
		"dependency target."},
	UsesTraditionalSmm: {"FV", "Move MM drivers to Standalone MM, or drop MM where it is not needed."},
	InvalidSectionAlignment: {"FV", "PE images need a section alignment that is a positive multiple of\n" +
		"the page size; ARM64 runtime drivers need a multiple of 64 KiB."},
	CaptureDiagnostic: {"Capture", "The capture pass skipped a malformed structure. Records after it\n" +
		"in the same structure are missing from this report."},
	EmptyHobList: {"Capture", "The capture holds no HOBs, so HOB rules checked nothing."},
	EmptyFvList:  {"Capture", "The capture holds no firmware volumes, so FV rules checked nothing."},
	RuleFailure:  {"Validator", "A rule could not complete; its checks are missing from this report."},
}

// Header returns a human readable title such as
// "HOB: Overlapping Memory Ranges".
func (c Category) Header() string {
	words := splitWords(string(c))
	if info, ok := categories[c]; ok {
		return info.scope + ": " + words
	}
	return words
}

// Guidance returns how to resolve findings of this category, or "".
func (c Category) Guidance() string {
	return categories[c].guidance
}

// splitWords turns a CamelCase identifier into words, keeping a single
// capital together with the digits following it ("V1", "V2").
func splitWords(s string) string {
	var words []string
	for _, w := range camelcase.Split(s) {
		if n := len(words); n > 0 && unicode.IsDigit(rune(w[0])) {
			if prev := words[n-1]; len(prev) == 1 && unicode.IsUpper(rune(prev[0])) {
				words[n-1] = prev + w
				continue
			}
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}
