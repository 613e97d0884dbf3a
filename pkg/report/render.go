// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// TextOptions controls RenderText.
type TextOptions struct {
	NoColor bool
	// Quiet collapses the rules table into a single line.
	Quiet bool
}

const separator = "──────────────────────────────────────────────────────────────────"

// RenderText writes a human readable report: one table per category of
// findings followed by the rules that ran and a summary line.
func (r *Report) RenderText(w io.Writer, opts TextOptions) error {
	title := color.New(color.FgRed, color.Bold)
	header := color.New(color.FgGreen, color.Bold)
	if opts.NoColor {
		title.DisableColor()
		header.DisableColor()
	}

	findings := r.Findings()
	if len(findings) == 0 {
		fmt.Fprintln(w, "No violations found.")
	} else {
		title.Fprintln(w, "Validation Results:")
		for _, group := range groupByCategory(findings) {
			cat := group[0].Category
			fmt.Fprintln(w, separator)
			header.Fprintf(w, "%s %s\n", severityMark(worst(group)), cat.Header())

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.Style().Options.SeparateRows = true
			t.AppendHeader(table.Row{"#", "Entity", "Severity", "Violation"})
			for i, f := range group {
				t.AppendRow(table.Row{i + 1, entityCell(f), f.Severity, f.Message})
			}
			t.Render()
			if g := cat.Guidance(); g != "" {
				fmt.Fprintln(w, indentLines(g, "   "))
			}
		}
		fmt.Fprintln(w, separator)
	}

	if opts.Quiet && len(r.rules) > 0 {
		fmt.Fprintln(w, quietRules(r.rules))
	}
	if !opts.Quiet && len(r.rules) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle("Rules")
		t.AppendHeader(table.Row{"Rule", "Findings", "Status"})
		for _, rr := range r.rules {
			status := "ran"
			switch {
			case rr.Skipped:
				status = "skipped"
			case rr.Failed:
				status = "failed"
			}
			t.AppendRow(table.Row{rr.Name, rr.Findings, status})
		}
		t.Render()
	}

	c := r.Counts()
	_, err := fmt.Fprintf(w, "%d prohibited, %d warning, %d info\n", c.Prohibited, c.Warning, c.Info)
	return err
}

func quietRules(rules []RuleResult) string {
	parts := make([]string, 0, len(rules))
	for _, rr := range rules {
		switch {
		case rr.Skipped:
			parts = append(parts, rr.Name+" (skipped)")
		case rr.Failed:
			parts = append(parts, rr.Name+" (failed)")
		default:
			parts = append(parts, fmt.Sprintf("%s (%d)", rr.Name, rr.Findings))
		}
	}
	return "Rules: " + strings.Join(parts, ", ")
}

func groupByCategory(sorted []Finding) [][]Finding {
	var groups [][]Finding
	for i, f := range sorted {
		if i == 0 || f.Category != sorted[i-1].Category {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], f)
	}
	return groups
}

func worst(group []Finding) Severity {
	s := Info
	for _, f := range group {
		if f.Severity > s {
			s = f.Severity
		}
	}
	return s
}

func severityMark(s Severity) string {
	switch s {
	case Info:
		return "ℹ"
	case Warning:
		return "⚠"
	}
	return "✗"
}

func entityCell(f Finding) string {
	var lines []string
	for _, e := range f.Entities {
		s := e.String()
		if e.Range != nil {
			s += " " + humanize.IBytes(e.Range.Length)
		}
		lines = append(lines, s)
	}
	if f.Range != nil {
		lines = append(lines, fmt.Sprintf("scope %v %s", *f.Range, humanize.IBytes(f.Range.Length)))
	}
	return strings.Join(lines, "\n")
}

func indentLines(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

// document is the structured form of a report.
type document struct {
	CaptureID string       `json:"capture_id,omitempty" yaml:"capture_id,omitempty"`
	Counts    Counts       `json:"counts" yaml:"counts"`
	Rules     []RuleResult `json:"rules" yaml:"rules"`
	Findings  []Finding    `json:"findings" yaml:"findings"`
}

func (r *Report) document() document {
	return document{
		CaptureID: r.CaptureID,
		Counts:    r.Counts(),
		Rules:     r.Rules(),
		Findings:  r.Findings(),
	}
}

// RenderJSON writes the report as indented JSON.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(r.document())
}

// RenderYAML writes the report as YAML.
func (r *Report) RenderYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.document()); err != nil {
		return err
	}
	return enc.Close()
}

// Format is an output format accepted by Render.
type Format string

// Formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Render writes the report in the given format.
func (r *Report) Render(w io.Writer, format Format, opts TextOptions) error {
	switch format {
	case FormatText, "":
		return r.RenderText(w, opts)
	case FormatJSON:
		return r.RenderJSON(w)
	case FormatYAML:
		return r.RenderYAML(w)
	}
	return fmt.Errorf("unknown report format %q", format)
}
