// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report holds the findings of a validation run and renders them.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/memrange"
)

// Severity orders findings by how much they matter. Only Prohibited
// findings fail a run.
type Severity int

// Severities, least severe first.
const (
	Info Severity = iota
	Warning
	Prohibited
)

var severityNames = []string{"info", "warning", "prohibited"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(severityNames) {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, n := range severityNames {
		if strings.EqualFold(n, string(b)) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", b)
}

// EntityKind names the kind of record a finding refers to.
type EntityKind string

// Entity kinds.
const (
	EntityResourceDescriptor   EntityKind = "resource_descriptor"
	EntityResourceDescriptorV2 EntityKind = "resource_descriptor_v2"
	EntityMemoryAllocation     EntityKind = "memory_allocation"
	EntityFirmwareVolumeHOB    EntityKind = "firmware_volume_hob"
	EntityHobList              EntityKind = "hob_list"
	EntityFirmwareVolume       EntityKind = "firmware_volume"
	EntityFile                 EntityKind = "file"
	EntitySection              EntityKind = "section"
	EntityDiagnostic           EntityKind = "diagnostic"
	EntityRule                 EntityKind = "rule"
)

// Entity identifies the record a finding is about. HOB entities carry
// their position in the HOB list, FV entities the volume and file they
// belong to.
type Entity struct {
	Kind  EntityKind      `json:"kind" yaml:"kind"`
	Index int             `json:"index" yaml:"index"`
	Range *memrange.Range `json:"range,omitempty" yaml:"range,omitempty"`

	Volume   *guid.GUID `json:"volume,omitempty" yaml:"volume,omitempty"`
	File     *guid.GUID `json:"file,omitempty" yaml:"file,omitempty"`
	FileName string     `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	// Section is the dotted index path of a section inside its file,
	// "1.0" being the first child of the second top-level section.
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	// Name is a free-form identifier such as a rule name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (e Entity) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case EntityFile, EntitySection, EntityFirmwareVolume:
	default:
		fmt.Fprintf(&b, " #%d", e.Index)
	}
	if e.Name != "" {
		fmt.Fprintf(&b, " %s", e.Name)
	}
	if e.Range != nil {
		fmt.Fprintf(&b, " %v", *e.Range)
	}
	if e.Volume != nil {
		fmt.Fprintf(&b, " fv %v", *e.Volume)
	}
	if e.File != nil {
		fmt.Fprintf(&b, " file %v", *e.File)
		if e.FileName != "" {
			fmt.Fprintf(&b, " (%s)", e.FileName)
		}
	}
	if e.Section != "" {
		fmt.Fprintf(&b, " section %s", e.Section)
	}
	return b.String()
}

// Finding is one result of a rule.
type Finding struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Category Category `json:"category" yaml:"category"`
	Rule     string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Message  string   `json:"message" yaml:"message"`
	// Range is the sub-range the finding is scoped to, when narrower than
	// the entities involved.
	Range    *memrange.Range `json:"range,omitempty" yaml:"range,omitempty"`
	Entities []Entity        `json:"entities" yaml:"entities"`
}

func (f Finding) entityRef() string {
	refs := make([]string, 0, len(f.Entities))
	for _, e := range f.Entities {
		refs = append(refs, e.String())
	}
	return strings.Join(refs, "; ")
}

// Less orders findings by category, entity reference and message.
func Less(a, b Finding) bool {
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	if ea, eb := a.entityRef(), b.entityRef(); ea != eb {
		return ea < eb
	}
	return a.Message < b.Message
}

// RuleResult records what one rule did during a run.
type RuleResult struct {
	Name     string `json:"name" yaml:"name"`
	Findings int    `json:"findings" yaml:"findings"`
	Skipped  bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failed   bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Counts summarizes findings by severity.
type Counts struct {
	Info       int `json:"info" yaml:"info"`
	Warning    int `json:"warning" yaml:"warning"`
	Prohibited int `json:"prohibited" yaml:"prohibited"`
}

// Total returns the number of findings counted.
func (c Counts) Total() int {
	return c.Info + c.Warning + c.Prohibited
}

// Report is an append-only list of findings together with the rules that
// produced them.
type Report struct {
	CaptureID string

	findings []Finding
	rules    []RuleResult
}

// Add appends findings.
func (r *Report) Add(f ...Finding) {
	r.findings = append(r.findings, f...)
}

// RuleRan records that rule name ran and produced n findings.
func (r *Report) RuleRan(name string, n int, failed bool) {
	r.rules = append(r.rules, RuleResult{Name: name, Findings: n, Failed: failed})
}

// RuleSkipped records that rule name was disabled.
func (r *Report) RuleSkipped(name string) {
	r.rules = append(r.rules, RuleResult{Name: name, Skipped: true})
}

// Findings returns a sorted copy of the findings.
func (r *Report) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Rules returns the rules in the order they ran.
func (r *Report) Rules() []RuleResult {
	out := make([]RuleResult, len(r.rules))
	copy(out, r.rules)
	return out
}

// Counts returns the number of findings per severity.
func (r *Report) Counts() Counts {
	var c Counts
	for _, f := range r.findings {
		switch f.Severity {
		case Info:
			c.Info++
		case Warning:
			c.Warning++
		default:
			c.Prohibited++
		}
	}
	return c
}

// HasProhibited reports whether any finding is Prohibited.
func (r *Report) HasProhibited() bool {
	for _, f := range r.findings {
		if f.Severity >= Prohibited {
			return true
		}
	}
	return false
}
