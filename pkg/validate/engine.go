// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validate runs the readiness rules over a capture.
//
// Every rule sees the whole capture read-only and returns its findings.
// Rules run in a fixed order, each exactly once, and a rule that fails
// internally produces an Info finding instead of stopping the run.
package validate

import (
	"fmt"

	"github.com/linuxboot/dxeready/pkg/log"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
)

// Defaults for Config.
const (
	DefaultPageSize              = 0x1000
	DefaultArm64RuntimeAlignment = 0x10000
)

// Config holds the platform parameters rules are evaluated against.
type Config struct {
	PageSize              uint64
	Arm64RuntimeAlignment uint64
	// DxeOnlyImageRules limits the LZMA and section alignment rules to
	// files the DXE dispatcher loads.
	DxeOnlyImageRules bool
	// Disabled lists rule names that are not run.
	Disabled []string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:              DefaultPageSize,
		Arm64RuntimeAlignment: DefaultArm64RuntimeAlignment,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Arm64RuntimeAlignment == 0 {
		c.Arm64RuntimeAlignment = DefaultArm64RuntimeAlignment
	}
	return c
}

func (c Config) disabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// Rule is one independent check.
type Rule interface {
	Name() string
	Description() string
	// Check must not modify c.
	Check(c *record.Capture, cfg Config) ([]report.Finding, error)
}

// Engine runs an ordered list of rules.
type Engine struct {
	Rules  []Rule
	Config Config
	Logger log.Logger
}

// New returns an Engine running DefaultRules.
func New(cfg Config, logger log.Logger) *Engine {
	return &Engine{Rules: DefaultRules(), Config: cfg, Logger: logger}
}

// Validate checks that every disabled rule names a registered rule.
func (e *Engine) Validate() error {
	for _, d := range e.Config.Disabled {
		found := false
		for _, r := range e.Rules {
			if r.Name() == d {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown rule %q", d)
		}
	}
	if e.Config.PageSize&(e.Config.PageSize-1) != 0 {
		return fmt.Errorf("page size %#x is not a power of two", e.Config.PageSize)
	}
	return nil
}

// Run runs every rule once, in order, and returns the report.
func (e *Engine) Run(c *record.Capture) *report.Report {
	l := log.OrDiscard(e.Logger)
	cfg := e.Config.withDefaults()
	r := &report.Report{CaptureID: c.CaptureID}

	for _, rule := range e.Rules {
		name := rule.Name()
		if cfg.disabled(name) {
			l.Infof("rule %s is disabled", name)
			r.RuleSkipped(name)
			continue
		}
		findings, err := runRule(rule, c, cfg)
		for i := range findings {
			findings[i].Rule = name
		}
		if err != nil {
			l.Errorf("rule %s failed: %v", name, err)
			findings = append(findings, report.Finding{
				Severity: report.Info,
				Category: report.RuleFailure,
				Rule:     name,
				Message:  err.Error(),
				Entities: []report.Entity{{Kind: report.EntityRule, Name: name}},
			})
		}
		l.Debugf("rule %s: %d findings", name, len(findings))
		r.Add(findings...)
		r.RuleRan(name, len(findings), err != nil)
	}
	return r
}

func runRule(rule Rule, c *record.Capture, cfg Config) (findings []report.Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			findings = nil
			err = fmt.Errorf("rule panicked: %v", p)
		}
	}()
	return rule.Check(c, cfg)
}
