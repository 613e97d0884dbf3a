// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/memrange"
)

var (
	fvName   = guid.MustParse("7CB8BDC9-F8EB-4F34-AAEA-3EE4AF6516A1")
	fileName = guid.MustParse("22DC2B60-FE40-42AC-B01F-3AB1FAD9AAD8")
)

func hobEntity(kind EntityKind, index int, base, length uint64) Entity {
	return Entity{Kind: kind, Index: index, Range: &memrange.Range{Base: base, Length: length}}
}

func sample() *Report {
	r := &Report{CaptureID: "c1"}
	r.Add(Finding{
		Severity: Prohibited,
		Category: PageZeroMemoryDescribed,
		Message:  "allocation describes page zero",
		Entities: []Entity{hobEntity(EntityMemoryAllocation, 3, 0, 0x10)},
	}, Finding{
		Severity: Prohibited,
		Category: OverlappingMemoryRanges,
		Message:  "ranges overlap",
		Entities: []Entity{
			hobEntity(EntityResourceDescriptor, 2, 0x1000, 0x2000),
			hobEntity(EntityResourceDescriptor, 1, 0x2000, 0x1000),
		},
	}, Finding{
		Severity: Warning,
		Category: V2MissingCacheabilityAttribute,
		Message:  "no cacheability attribute",
		Entities: []Entity{hobEntity(EntityResourceDescriptorV2, 4, 0x100000, 0x100000)},
	}, Finding{
		Severity: Prohibited,
		Category: OverlappingMemoryRanges,
		Message:  "ranges overlap",
		Entities: []Entity{
			hobEntity(EntityResourceDescriptor, 1, 0x2000, 0x1000),
			hobEntity(EntityResourceDescriptor, 2, 0x1000, 0x2000),
		},
	})
	r.RuleRan("overlapping-ranges", 2, false)
	r.RuleSkipped("v1-covered-by-v2")
	r.RuleRan("page-zero", 1, false)
	r.RuleRan("v2-cacheability", 1, false)
	return r
}

func TestFindingsOrder(t *testing.T) {
	r := sample()
	got := r.Findings()
	require.Len(t, got, 4)

	var cats []Category
	for _, f := range got {
		cats = append(cats, f.Category)
	}
	assert.Equal(t, []Category{
		OverlappingMemoryRanges, OverlappingMemoryRanges, PageZeroMemoryDescribed, V2MissingCacheabilityAttribute,
	}, cats)
	assert.Equal(t, 1, got[0].Entities[0].Index, "entity reference breaks the tie")

	// Findings is a copy; the insertion order is kept underneath.
	got[0].Message = "changed"
	assert.Equal(t, "allocation describes page zero", r.findings[0].Message)

	again := sample()
	assert.Equal(t, r.Findings()[1:], again.Findings()[1:])
}

func TestCounts(t *testing.T) {
	r := sample()
	c := r.Counts()
	assert.Equal(t, Counts{Info: 0, Warning: 1, Prohibited: 3}, c)
	assert.Equal(t, 4, c.Total())
	assert.True(t, r.HasProhibited())

	empty := &Report{}
	assert.False(t, empty.HasProhibited())
	empty.Add(Finding{Severity: Info, Category: RuleFailure})
	empty.Add(Finding{Severity: Warning, Category: EmptyFvList})
	assert.False(t, empty.HasProhibited())
	assert.Equal(t, Counts{Info: 1, Warning: 1}, empty.Counts())
}

func TestRules(t *testing.T) {
	rules := sample().Rules()
	require.Len(t, rules, 4)
	assert.Equal(t, RuleResult{Name: "v1-covered-by-v2", Skipped: true}, rules[1])
	assert.Equal(t, "page-zero", rules[2].Name)
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{Info, Warning, Prohibited} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Severity
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := Severity(7).MarshalText()
	assert.Error(t, err)
	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("fatal")))
	assert.True(t, Info < Warning && Warning < Prohibited)
}

func TestCategoryHeader(t *testing.T) {
	var tests = []struct {
		c    Category
		want string
	}{
		{OverlappingMemoryRanges, "HOB: Overlapping Memory Ranges"},
		{V1MemoryRangeNotContainedInV2, "HOB: V1 Memory Range Not Contained In V2"},
		{V2ContainsUceAttribute, "HOB: V2 Contains Uce Attribute"},
		{LzmaCompressedSections, "FV: Lzma Compressed Sections"},
		{Category("SomethingNew"), "Something New"},
	}
	for _, test := range tests {
		t.Run(string(test.c), func(t *testing.T) {
			assert.Equal(t, test.want, test.c.Header())
		})
	}
	assert.NotEmpty(t, ProhibitedAprioriFile.Guidance())
	assert.Empty(t, Category("SomethingNew").Guidance())
	assert.Contains(t, V2MissingCacheabilityAttribute.Guidance(), "does not fail validation")
}

func TestEntityString(t *testing.T) {
	e := Entity{Kind: EntitySection, Volume: &fvName, File: &fileName, FileName: "FooDxe", Section: "0.1"}
	assert.Equal(t, "section fv "+fvName.String()+" file "+fileName.String()+" (FooDxe) section 0.1", e.String())
	assert.Equal(t, "resource_descriptor #2 [0x1000, 0x3000)", hobEntity(EntityResourceDescriptor, 2, 0x1000, 0x2000).String())
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().RenderText(&buf, TextOptions{NoColor: true}))
	out := buf.String()

	assert.Contains(t, out, "Validation Results:")
	assert.Contains(t, out, "HOB: Overlapping Memory Ranges")
	assert.Contains(t, out, "HOB: Page Zero Memory Described")
	assert.Contains(t, out, "8.0 KiB")
	assert.Contains(t, out, "Touching ranges are fine.")
	assert.Contains(t, out, "skipped")
	assert.True(t, strings.HasSuffix(out, "3 prohibited, 1 warning, 0 info\n"))
	assert.Less(t, strings.Index(out, "Overlapping"), strings.Index(out, "Page Zero"))
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderTextClean(t *testing.T) {
	r := &Report{}
	r.RuleRan("page-zero", 0, false)
	var buf bytes.Buffer
	require.NoError(t, r.RenderText(&buf, TextOptions{NoColor: true, Quiet: true}))
	assert.Equal(t, "No violations found.\nRules: page-zero (0)\n0 prohibited, 0 warning, 0 info\n", buf.String())
}

func TestRenderTextQuietRules(t *testing.T) {
	r := &Report{}
	r.RuleRan("address-overflow", 2, false)
	r.RuleRan("overlapping-ranges", 0, true)
	r.RuleSkipped("page-zero")
	var buf bytes.Buffer
	require.NoError(t, r.RenderText(&buf, TextOptions{NoColor: true, Quiet: true}))
	out := buf.String()
	assert.Contains(t, out, "Rules: address-overflow (2), overlapping-ranges (failed), page-zero (skipped)\n")
	assert.NotContains(t, out, "│")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().RenderJSON(&buf))

	var doc struct {
		CaptureID string `json:"capture_id"`
		Counts    Counts
		Rules     []RuleResult
		Findings  []Finding
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "c1", doc.CaptureID)
	assert.Equal(t, 3, doc.Counts.Prohibited)
	require.Len(t, doc.Findings, 4)
	assert.Equal(t, sample().Findings(), doc.Findings)
	assert.Contains(t, buf.String(), `"severity": "prohibited"`)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().Render(&buf, FormatYAML, TextOptions{}))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, sample().Findings(), doc.Findings)
	assert.Equal(t, sample().Rules(), doc.Rules)
	assert.Contains(t, buf.String(), "severity: warning")

	assert.Error(t, sample().Render(&buf, Format("xml"), TextOptions{}))
}
