// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
)

func volumeEntity(index int, fv *record.FvRecord) report.Entity {
	name := fv.Name
	r := fv.Range()
	return report.Entity{Kind: report.EntityFirmwareVolume, Index: index, Range: &r, Volume: &name}
}

func fileEntity(fv *record.FvRecord, index int, f *record.FfsFile) report.Entity {
	volume, file := fv.Name, f.Name
	return report.Entity{
		Kind:     report.EntityFile,
		Index:    index,
		Volume:   &volume,
		File:     &file,
		FileName: f.UIName,
	}
}

func sectionEntity(fv *record.FvRecord, index int, f *record.FfsFile, path string) report.Entity {
	e := fileEntity(fv, index, f)
	e.Kind = report.EntitySection
	e.Section = path
	return e
}

// eachFile calls fn for every file of every volume.
func eachFile(c *record.Capture, fn func(fv *record.FvRecord, index int, f *record.FfsFile)) {
	for i := range c.FvList {
		fv := &c.FvList[i]
		for j := range fv.Files {
			fn(fv, j, &fv.Files[j])
		}
	}
}

// eachSection calls fn for every section of f, encapsulated ones included,
// with the dotted index path of the section.
func eachSection(f *record.FfsFile, fn func(s *record.Section, path string)) {
	var walk func(secs []record.Section, prefix string)
	walk = func(secs []record.Section, prefix string) {
		for i := range secs {
			path := prefix + strconv.Itoa(i)
			fn(&secs[i], path)
			walk(secs[i].Sections, path+".")
		}
	}
	walk(f.Sections, "")
}

// imageRuleApplies reports whether the image rules look at f.
func imageRuleApplies(f *record.FfsFile, cfg Config) bool {
	return !cfg.DxeOnlyImageRules || f.IsDxePhase()
}

func fileFinding(fv *record.FvRecord, index int, f *record.FfsFile, cat report.Category, format string, args ...interface{}) report.Finding {
	return report.Finding{
		Severity: report.Prohibited,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Entities: []report.Entity{fileEntity(fv, index, f)},
	}
}

func checkCombinedDrivers(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	eachFile(c, func(fv *record.FvRecord, i int, f *record.FfsFile) {
		if f.IsCombinedDriver() {
			findings = append(findings, fileFinding(fv, i, f, report.CombinedDriversPresent,
				"file type %s (%#02x) bundles two dispatch phases", f.Type, f.RawType))
		}
	})
	return findings, nil
}

func checkLZMASections(c *record.Capture, cfg Config) ([]report.Finding, error) {
	var findings []report.Finding
	eachFile(c, func(fv *record.FvRecord, i int, f *record.FfsFile) {
		if !imageRuleApplies(f, cfg) {
			return
		}
		eachSection(f, func(s *record.Section, path string) {
			if !s.Compression.IsLZMA() {
				return
			}
			findings = append(findings, report.Finding{
				Severity: report.Prohibited,
				Category: report.LzmaCompressedSections,
				Message:  fmt.Sprintf("%s section is compressed with %s", s.Type, s.Compression),
				Entities: []report.Entity{sectionEntity(fv, i, f, path)},
			})
		})
	})
	return findings, nil
}

func checkAprioriFile(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	eachFile(c, func(fv *record.FvRecord, i int, f *record.FfsFile) {
		if f.IsApriori() {
			findings = append(findings, fileFinding(fv, i, f, report.ProhibitedAprioriFile,
				"a-priori file %v is present", f.Name))
		}
	})
	return findings, nil
}

// checkTraditionalSMM classifies by file type: MM, combined MM/DXE and
// MM core files belong to traditional SMM, the standalone MM types do not.
func checkTraditionalSMM(c *record.Capture, _ Config) ([]report.Finding, error) {
	var findings []report.Finding
	eachFile(c, func(fv *record.FvRecord, i int, f *record.FfsFile) {
		if f.IsTraditionalMM() {
			findings = append(findings, fileFinding(fv, i, f, report.UsesTraditionalSmm,
				"file type %s (%#02x) is a traditional SMM module", f.Type, f.RawType))
		}
	})
	return findings, nil
}

func checkPESectionAlignment(c *record.Capture, cfg Config) ([]report.Finding, error) {
	var findings []report.Finding
	var result *multierror.Error
	eachFile(c, func(fv *record.FvRecord, i int, f *record.FfsFile) {
		if !imageRuleApplies(f, cfg) {
			return
		}
		eachSection(f, func(s *record.Section, path string) {
			if s.Type != record.SectionPE32 {
				return
			}
			if s.PE == nil {
				result = multierror.Append(result, fmt.Errorf("file %v section %s: PE32 section without image headers", f.Name, path))
				return
			}
			required := cfg.PageSize
			if s.PE.Machine == record.MachineARM64 && s.PE.Subsystem == record.SubsystemEFIRuntimeDriver {
				required = cfg.Arm64RuntimeAlignment
			}
			align := uint64(s.PE.SectionAlignment)
			if align != 0 && align%required == 0 {
				return
			}
			findings = append(findings, report.Finding{
				Severity: report.Prohibited,
				Category: report.InvalidSectionAlignment,
				Message:  fmt.Sprintf("section alignment %#x is not a positive multiple of %#x", align, required),
				Entities: []report.Entity{sectionEntity(fv, i, f, path)},
			})
		})
	})
	return findings, result.ErrorOrNil()
}
