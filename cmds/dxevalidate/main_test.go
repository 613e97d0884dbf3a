// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
)

var dxeCore = guid.MustParse("D6A2CB7F-6A18-4E2F-B43B-9920A733700A")

func capture(allocBase uint64) *record.Capture {
	owner := guid.MustParse("4ED4BF27-4092-42E9-807D-527B1D00C9BD")
	res := record.Resource{Owner: owner, ResourceType: record.ResourceSystemMemory, ResourceAttribute: 7, PhysicalStart: 0x100000, ResourceLength: 0x100000}
	return &record.Capture{
		SchemaVersion: record.SchemaVersion,
		CaptureID:     "cli",
		HobList: record.HobList{
			&record.Handoff{Version: 9},
			&record.ResourceDescriptor{Resource: res},
			&record.ResourceDescriptorV2{Resource: res, Attributes: record.MemoryWB},
			&record.MemoryAllocation{MemoryBaseAddress: allocBase, MemoryLength: 0x1000, MemoryType: 4},
		},
		FvList: []record.FvRecord{{
			Base:   0xFFC00000,
			Length: 0x1000,
			Files: []record.FfsFile{{
				Name:    dxeCore,
				Type:    record.FileTypeDxeCore,
				RawType: 0x05,
				Sections: []record.Section{{
					Type: record.SectionPE32, RawType: 0x10,
					PE: &record.PEInfo{Machine: record.MachineX64, Subsystem: record.SubsystemEFIBootServiceDriver, SectionAlignment: 0x1000},
				}},
			}},
		}},
	}
}

func writeCapture(t *testing.T, name string, c *record.Capture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, record.WriteFile(path, c))
	return path
}

func writeRaw(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestExitCodes(t *testing.T) {
	clean := writeCapture(t, "clean.json.zst", capture(0x200000))
	pageZero := writeCapture(t, "page0.json", capture(0))

	var tests = []struct {
		name string
		args []string
		want int
	}{
		{"clean", []string{"check", "-f", clean, "--no-color"}, exitOK},
		{"prohibited", []string{"check", "-f", pageZero, "--no-color"}, exitProhibited},
		{"prohibited rule disabled", []string{"check", "-f", pageZero, "--disable", "page-zero"}, exitOK},
		{"malformed", []string{"check", "-f", writeRaw(t, "{not json")}, exitMalformed},
		{"no schema", []string{"check", "-f", writeRaw(t, `{"hob_list": []}`)}, exitMalformed},
		{"schema", []string{"check", "-f", writeRaw(t, `{"schema_version": "2.0.0", "hob_list": [], "fv_list": []}`)}, exitSchema},
		{"missing file", []string{"check", "-f", filepath.Join(t.TempDir(), "none.json")}, exitIO},
		{"no file", []string{"check"}, exitUsage},
		{"unknown flag", []string{"check", "--bogus"}, exitUsage},
		{"unknown format", []string{"check", "-f", clean, "--format", "xml"}, exitUsage},
		{"unknown rule", []string{"check", "-f", clean, "--disable", "no-such-rule"}, exitUsage},
		{"extra args", []string{"rules", "x"}, exitUsage},
		{"no command", nil, exitUsage},
		{"help", []string{"--help"}, exitOK},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			got := run(test.args, &stdout, &stderr)
			assert.Equal(t, test.want, got, "stdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
		})
	}
}

func TestCheckReport(t *testing.T) {
	path := writeCapture(t, "page0.json.lz4", capture(0))

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitProhibited, run([]string{"check", "-f", path, "--no-color"}, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "HOB: Page Zero Memory Described")
	assert.Contains(t, out, "page-zero")
	assert.True(t, strings.HasSuffix(out, "1 prohibited, 0 warning, 0 info\n"), out)

	stdout.Reset()
	require.Equal(t, exitProhibited, run([]string{"check", "-f", path, "--format", "json"}, &stdout, &stderr))
	var doc struct {
		CaptureID string `json:"capture_id"`
		Findings  []struct {
			Severity string
			Category string
			Rule     string
		}
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, "cli", doc.CaptureID)
	require.Len(t, doc.Findings, 1)
	assert.Equal(t, "prohibited", doc.Findings[0].Severity)
	assert.Equal(t, "PageZeroMemoryDescribed", doc.Findings[0].Category)
	assert.Equal(t, "page-zero", doc.Findings[0].Rule)
}

func TestCheckConfig(t *testing.T) {
	path := writeCapture(t, "page0.json", capture(0x1000))
	ini := filepath.Join(t.TempDir(), "platform.ini")
	require.NoError(t, os.WriteFile(ini, []byte("[check]\npage-size = 65536\nformat = yaml\n"), 0o644))

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitProhibited, run([]string{"--config", ini, "check", "-f", path}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "category: PageZeroMemoryDescribed")

	stdout.Reset()
	require.Equal(t, exitProhibited, run([]string{"--config", ini, "check", "-f", path, "--format", "text", "--no-color"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Validation Results:")

	assert.Equal(t, exitUsage, run([]string{"--config", filepath.Join(t.TempDir(), "none.ini"), "rules"}, &stdout, &stderr))
}

func TestRules(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"rules"}, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "address-overflow")
	assert.Contains(t, out, "empty-capture")
	assert.Less(t, strings.Index(out, "overlapping-ranges"), strings.Index(out, "page-zero"))
}

func TestCheckGUIDNames(t *testing.T) {
	c := capture(0x200000)
	c.FvList[0].Files = append(c.FvList[0].Files, record.FfsFile{
		Name:    guid.DxeAprioriFile,
		Type:    record.FileTypeApriori,
		RawType: 0x02,
	})
	path := writeCapture(t, "apriori.json", c)

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitProhibited, run([]string{"check", "-f", path, "--no-color", "--guid-names"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "FC510EE7-FFDC-11D4-BD41-0080C73C8881 (DXE_APRIORI_FILE)")

	stdout.Reset()
	require.Equal(t, exitProhibited, run([]string{"check", "-f", path, "--no-color"}, &stdout, &stderr))
	assert.NotContains(t, stdout.String(), "DXE_APRIORI_FILE")
}
