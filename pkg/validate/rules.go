// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
)

type checkFunc func(c *record.Capture, cfg Config) ([]report.Finding, error)

type rule struct {
	name        string
	description string
	check       checkFunc
}

func (r rule) Name() string        { return r.name }
func (r rule) Description() string { return r.description }

func (r rule) Check(c *record.Capture, cfg Config) ([]report.Finding, error) {
	return r.check(c, cfg)
}

// NewRule returns a Rule calling check.
func NewRule(name, description string, check func(c *record.Capture, cfg Config) ([]report.Finding, error)) Rule {
	return rule{name: name, description: description, check: check}
}

// DefaultRules returns the registry, in the order the rules run.
func DefaultRules() []Rule {
	return []Rule{
		rule{"address-overflow", "base plus length of a range must not overflow 64 bits", checkAddressOverflow},
		rule{"overlapping-ranges", "resource descriptors of the same version and space must not overlap", checkOverlappingRanges},
		rule{"v1-covered-by-v2", "every V1 resource range must be covered by V2 descriptors", checkV1CoveredByV2},
		rule{"attribute-consistency", "intersecting V1 and V2 descriptors must agree on type, attributes and owner", checkAttributeConsistency},
		rule{"v2-uce-attribute", "V2 descriptors must not carry EFI_MEMORY_UCE", checkV2UCE},
		rule{"v2-cacheability", "V2 memory descriptors select exactly one cacheability attribute", checkV2Cacheability},
		rule{"v2-io-attributes", "V2 I/O descriptors carry no attributes", checkV2IOAttributes},
		rule{"page-zero", "memory allocations must not describe page zero", checkPageZero},
		rule{"combined-drivers", "no combined PEIM/DXE or MM/DXE files", checkCombinedDrivers},
		rule{"lzma-sections", "no LZMA compressed sections", checkLZMASections},
		rule{"apriori-file", "no PEI or DXE a-priori file", checkAprioriFile},
		rule{"traditional-smm", "no traditional SMM modules", checkTraditionalSMM},
		rule{"pe-section-alignment", "PE32 section alignment is a positive multiple of the page size", checkPESectionAlignment},
		rule{"capture-diagnostics", "structures the capture pass could not parse", checkCaptureDiagnostics},
		rule{"empty-capture", "the capture holds HOBs and firmware volumes", checkEmptyCapture},
	}
}
