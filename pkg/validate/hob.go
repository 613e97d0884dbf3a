// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/linuxboot/dxeready/pkg/memrange"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
)

// resource is a V1 or V2 resource descriptor with its HOB list index.
type resource struct {
	index      int
	v2         bool
	res        record.Resource
	attributes uint64
}

func (r resource) rng() memrange.Range {
	return r.res.Range()
}

func (r resource) entity() report.Entity {
	kind := report.EntityResourceDescriptor
	if r.v2 {
		kind = report.EntityResourceDescriptorV2
	}
	rng := r.rng()
	return report.Entity{Kind: kind, Index: r.index, Range: &rng}
}

func resources(c *record.Capture) []resource {
	var out []resource
	for i, h := range c.HobList {
		switch h := h.(type) {
		case *record.ResourceDescriptor:
			out = append(out, resource{index: i, res: h.Resource})
		case *record.ResourceDescriptorV2:
			out = append(out, resource{index: i, v2: true, res: h.Resource, attributes: h.Attributes})
		}
	}
	return out
}

func hobEntity(kind report.EntityKind, index int, r memrange.Range) report.Entity {
	return report.Entity{Kind: kind, Index: index, Range: &r}
}

func checkAddressOverflow(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	add := func(e report.Entity, r memrange.Range) {
		if !r.Overflows() {
			return
		}
		findings = append(findings, report.Finding{
			Severity: report.Prohibited,
			Category: report.AddressOverflow,
			Message:  fmt.Sprintf("base %#x plus length %#x overflows the address space", r.Base, r.Length),
			Entities: []report.Entity{e},
		})
	}
	for _, r := range resources(c) {
		add(r.entity(), r.rng())
	}
	for i, h := range c.HobList {
		switch h := h.(type) {
		case *record.MemoryAllocation:
			add(hobEntity(report.EntityMemoryAllocation, i, h.Range()), h.Range())
		case *record.FirmwareVolume:
			add(hobEntity(report.EntityFirmwareVolumeHOB, i, h.Range()), h.Range())
		}
	}
	for i := range c.FvList {
		fv := &c.FvList[i]
		add(volumeEntity(i, fv), fv.Range())
	}
	return findings, nil
}

func checkOverlappingRanges(c *record.Capture, _ Config) ([]report.Finding, error) {
	type group struct{ v2, io bool }
	groups := map[group][]resource{}
	var findings []report.Finding
	for _, r := range resources(c) {
		switch rng := r.rng(); {
		case rng.IsEmpty():
			findings = append(findings, report.Finding{
				Severity: report.Info,
				Category: report.ZeroLengthRange,
				Message:  fmt.Sprintf("zero-length %s range at %#x is ignored", r.res.ResourceType, rng.Base),
				Entities: []report.Entity{r.entity()},
			})
			continue
		case rng.Overflows():
			continue
		}
		g := group{v2: r.v2, io: r.res.ResourceType.IsIO()}
		groups[g] = append(groups[g], r)
	}

	for _, g := range []group{{false, false}, {true, false}, {false, true}, {true, true}} {
		list := groups[g]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].res.PhysicalStart < list[j].res.PhysicalStart
		})
		for i, a := range list {
			// ok is false only for a range ending exactly at 2^64, which
			// has no upper bound to stop the scan at.
			end, bounded := a.rng().End()
			for _, b := range list[i+1:] {
				if bounded && b.res.PhysicalStart >= end {
					break
				}
				inter, ok := a.rng().Intersection(b.rng())
				if !ok {
					continue
				}
				findings = append(findings, report.Finding{
					Severity: report.Prohibited,
					Category: report.OverlappingMemoryRanges,
					Message:  fmt.Sprintf("%v overlaps %v by %s", a.rng(), b.rng(), humanize.IBytes(inter.Length)),
					Range:    &inter,
					Entities: []report.Entity{a.entity(), b.entity()},
				})
			}
		}
	}
	return findings, nil
}

func checkV1CoveredByV2(c *record.Capture, _ Config) ([]report.Finding, error) {
	var v1 []resource
	var v2 memrange.Ranges
	for _, r := range resources(c) {
		if r.v2 {
			v2 = append(v2, r.rng())
		} else {
			v1 = append(v1, r)
		}
	}
	covered := memrange.Merge(v2)

	var findings []report.Finding
	for _, r := range v1 {
		for _, residual := range memrange.Subtract(r.rng(), covered) {
			residual := residual
			findings = append(findings, report.Finding{
				Severity: report.Prohibited,
				Category: report.V1MemoryRangeNotContainedInV2,
				Message:  fmt.Sprintf("%v of V1 range %v is not described by a V2 descriptor", residual, r.rng()),
				Range:    &residual,
				Entities: []report.Entity{r.entity()},
			})
		}
	}
	return findings, nil
}

func checkAttributeConsistency(c *record.Capture, _ Config) ([]report.Finding, error) {
	all := resources(c)
	var findings []report.Finding
	for _, a := range all {
		if a.v2 {
			continue
		}
		for _, b := range all {
			if !b.v2 {
				continue
			}
			inter, ok := a.rng().Intersection(b.rng())
			if !ok {
				continue
			}
			var diffs []string
			if a.res.ResourceType != b.res.ResourceType {
				diffs = append(diffs, fmt.Sprintf("resource type %s differs from %s", a.res.ResourceType, b.res.ResourceType))
			}
			if a.res.ResourceAttribute != b.res.ResourceAttribute {
				diffs = append(diffs, fmt.Sprintf("resource attribute %#x differs from %#x", a.res.ResourceAttribute, b.res.ResourceAttribute))
			}
			if a.res.Owner != b.res.Owner {
				diffs = append(diffs, fmt.Sprintf("owner %v differs from %v", a.res.Owner, b.res.Owner))
			}
			if len(diffs) == 0 {
				continue
			}
			findings = append(findings, report.Finding{
				Severity: report.Prohibited,
				Category: report.InconsistentMemoryAttributes,
				Message:  fmt.Sprintf("on %v: %s", inter, strings.Join(diffs, "; ")),
				Range:    &inter,
				Entities: []report.Entity{a.entity(), b.entity()},
			})
		}
	}
	return findings, nil
}

func v2Finding(r resource, sev report.Severity, cat report.Category, format string, args ...interface{}) report.Finding {
	return report.Finding{
		Severity: sev,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Entities: []report.Entity{r.entity()},
	}
}

func checkV2UCE(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	for _, r := range resources(c) {
		if r.v2 && r.attributes&record.MemoryUCE != 0 {
			findings = append(findings, v2Finding(r, report.Prohibited, report.V2ContainsUceAttribute,
				"attributes %#x (%s) contain EFI_MEMORY_UCE", r.attributes, record.MemoryAttributesString(r.attributes)))
		}
	}
	return findings, nil
}

// checkV2Cacheability counts UC, WC, WT, WB and WP. UCE is reported by
// v2-uce-attribute only, so a descriptor with UCE alone is not also
// reported as missing an attribute.
func checkV2Cacheability(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	for _, r := range resources(c) {
		if !r.v2 || r.res.ResourceType.IsIO() {
			continue
		}
		switch n := record.CacheabilityCount(r.attributes); {
		case n > 1:
			findings = append(findings, v2Finding(r, report.Prohibited, report.V2InvalidCacheabilityAttribute,
				"attributes %#x (%s) select %d cacheability policies", r.attributes, record.MemoryAttributesString(r.attributes), n))
		case n == 0 && r.attributes&record.MemoryUCE == 0:
			findings = append(findings, v2Finding(r, report.Warning, report.V2MissingCacheabilityAttribute,
				"attributes %#x (%s) select no cacheability policy", r.attributes, record.MemoryAttributesString(r.attributes)))
		}
	}
	return findings, nil
}

func checkV2IOAttributes(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	for _, r := range resources(c) {
		if r.v2 && r.res.ResourceType.IsIO() && r.attributes != 0 {
			findings = append(findings, v2Finding(r, report.Prohibited, report.V2InvalidIoCacheabilityAttributes,
				"%s range carries attributes %#x (%s)", r.res.ResourceType, r.attributes, record.MemoryAttributesString(r.attributes)))
		}
	}
	return findings, nil
}

// checkPageZero flags allocations starting inside page zero, zero-length
// ones included.
func checkPageZero(c *record.Capture, cfg Config) ([]report.Finding, error) {
	var findings []report.Finding
	for i, h := range c.HobList {
		m, ok := h.(*record.MemoryAllocation)
		if !ok || m.MemoryBaseAddress >= cfg.PageSize {
			continue
		}
		findings = append(findings, report.Finding{
			Severity: report.Prohibited,
			Category: report.PageZeroMemoryDescribed,
			Message: fmt.Sprintf("allocation %v of type %d describes page zero [0x0, %#x)",
				m.Range(), m.MemoryType, cfg.PageSize),
			Entities: []report.Entity{hobEntity(report.EntityMemoryAllocation, i, m.Range())},
		})
	}
	return findings, nil
}

func checkEmptyCapture(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	if len(c.HobList) == 0 {
		findings = append(findings, report.Finding{
			Severity: report.Warning,
			Category: report.EmptyHobList,
			Message:  "capture holds no HOB records",
			Entities: []report.Entity{{Kind: report.EntityHobList}},
		})
	}
	if len(c.FvList) == 0 {
		findings = append(findings, report.Finding{
			Severity: report.Warning,
			Category: report.EmptyFvList,
			Message:  "capture holds no firmware volumes",
			Entities: []report.Entity{{Kind: report.EntityFirmwareVolume}},
		})
	}
	return findings, nil
}

func checkCaptureDiagnostics(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	for i, d := range c.Diagnostics {
		findings = append(findings, report.Finding{
			Severity: report.Warning,
			Category: report.CaptureDiagnostic,
			Message:  fmt.Sprintf("%s at %#x: %s", d.Structure, d.Address, d.Message),
			Entities: []report.Entity{{Kind: report.EntityDiagnostic, Index: i, Name: d.Structure}},
		})
	}
	return findings, nil
}
