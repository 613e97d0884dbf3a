// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package capture runs one capture pass: it walks the HOB list, finds and
// parses the firmware volumes it announces, and builds the canonical record
// set written to the interchange file.
package capture

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	pkgbytes "github.com/linuxboot/dxeready/pkg/bytes"
	"github.com/linuxboot/dxeready/pkg/hob"
	"github.com/linuxboot/dxeready/pkg/log"
	"github.com/linuxboot/dxeready/pkg/memrange"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
	"github.com/linuxboot/dxeready/pkg/visitors"
)

// Defaults for Options.
const (
	DefaultBudget        = 1 << 20
	DefaultMaxVolumeSize = 32 << 20
)

// Volume is a firmware volume source supplied by the platform rather than
// announced by a HOB. Data may hold several volumes; they are found by
// their signature.
type Volume struct {
	Base uint64
	Data []byte
}

// Options configures a capture pass.
type Options struct {
	// Budget bounds the size of the HOB list, in bytes.
	Budget uint64
	// MaxVolumeSize bounds the size of a volume read from memory.
	MaxVolumeSize uint64
	// Arena holds every copy of source memory. A DefaultArenaSize arena
	// is used when nil.
	Arena *Arena
	// ExtraVolumes are parsed in addition to the volumes in the HOB list.
	ExtraVolumes []Volume
	// Parse controls section decoding.
	Parse uefi.ParseOptions
	// Inspect visitors are run over every parsed volume before the
	// canonical records are built.
	Inspect []uefi.Visitor
	// CaptureID is generated when empty.
	CaptureID string
	Logger    log.Logger
}

type pass struct {
	opts  Options
	log   log.Logger
	mem   PhysicalMemory
	arena *Arena
	c     *record.Capture
	seen  map[memrange.Range]bool
	fvs   []*uefi.FirmwareVolume
}

// Run captures the HOB list starting at hobBase and the volumes it
// announces. Only an unreadable or unterminated HOB list is fatal; every
// other malformed structure is skipped and recorded in Diagnostics.
func Run(mem PhysicalMemory, hobBase uint64, opts Options) (*record.Capture, error) {
	if opts.Budget == 0 {
		opts.Budget = DefaultBudget
	}
	if opts.MaxVolumeSize == 0 {
		opts.MaxVolumeSize = DefaultMaxVolumeSize
	}
	if opts.Arena == nil {
		opts.Arena = NewArena(DefaultArenaSize)
	}
	if opts.CaptureID == "" {
		opts.CaptureID = uuid.New().String()
	}
	p := &pass{
		opts:  opts,
		log:   log.OrDiscard(opts.Logger),
		mem:   mem,
		arena: opts.Arena,
		seen:  map[memrange.Range]bool{},
		c: &record.Capture{
			SchemaVersion: record.SchemaVersion,
			CaptureID:     opts.CaptureID,
			FvList:        []record.FvRecord{},
		},
	}
	p.opts.Parse.Logger = p.log

	if err := p.walkHobs(hobBase); err != nil {
		return nil, err
	}
	p.readAnnouncedVolumes()
	p.parseExtraVolumes()
	if err := p.canonicalize(); err != nil {
		return nil, err
	}

	p.log.Infof("captured %d HOBs, %d volumes and %d diagnostics in %s of arena",
		len(p.c.HobList), len(p.c.FvList), len(p.c.Diagnostics), humanize.IBytes(p.arena.Used()))
	return p.c, nil
}

func (p *pass) diagnose(structure string, addr uint64, err error) {
	p.log.Warnf("%s at %#x: %v", structure, addr, err)
	p.c.Diagnostics = append(p.c.Diagnostics, record.Diagnostic{
		Structure: structure,
		Address:   addr,
		Message:   err.Error(),
	})
}

func (p *pass) walkHobs(base uint64) error {
	buf, err := hob.ReadList(p.mem, base, p.opts.Budget, p.arena)
	if err != nil {
		return fmt.Errorf("reading HOB list at %#x: %w", base, err)
	}
	p.log.Debugf("copied %s of HOB list from %#x", humanize.IBytes(uint64(len(buf))), base)

	w := hob.NewWalker(buf, base)
	for w.Next() {
		p.c.HobList = append(p.c.HobList, w.Record())
	}
	switch err := w.Err(); {
	case errors.Is(err, hob.ErrUnterminated):
		return fmt.Errorf("HOB list at %#x: %w", base, err)
	case err != nil:
		p.diagnose("HOB list", w.Address(), err)
	}
	if p.c.HobList == nil {
		p.c.HobList = record.HobList{}
	}
	return nil
}

func (p *pass) readAnnouncedVolumes() {
	for _, h := range p.c.HobList {
		fvh, ok := h.(*record.FirmwareVolume)
		if !ok {
			continue
		}
		r := memrange.Range{Base: fvh.BaseAddress, Length: fvh.Length}
		if p.seen[r] {
			continue
		}
		p.seen[r] = true
		if err := p.readVolume(r); err != nil {
			p.diagnose("firmware volume", r.Base, err)
		}
	}
}

func (p *pass) readVolume(r memrange.Range) error {
	if r.IsEmpty() || r.Overflows() {
		return fmt.Errorf("invalid range %#x+%#x", r.Base, r.Length)
	}
	if r.Length > p.opts.MaxVolumeSize {
		return fmt.Errorf("volume of %s exceeds the %s limit",
			humanize.IBytes(r.Length), humanize.IBytes(p.opts.MaxVolumeSize))
	}
	buf, err := p.arena.Alloc(int(r.Length))
	if err != nil {
		return err
	}
	if n, err := p.mem.ReadAt(buf, int64(r.Base)); n != len(buf) {
		return fmt.Errorf("read %d of %d bytes: %v", n, len(buf), err)
	}
	if pkgbytes.IsZeroFilled(buf) || pkgbytes.IsFilled(buf, 0xff) {
		return fmt.Errorf("announced range holds no data (filled with %#02x)", buf[0])
	}
	fv, err := uefi.NewFirmwareVolume(buf, r.Base, p.opts.Parse)
	if fv == nil {
		return err
	}
	// A partially parsed volume carries its error in fv.Err, which the
	// canonical records report.
	p.fvs = append(p.fvs, fv)
	return nil
}

func (p *pass) parseExtraVolumes() {
	for _, v := range p.opts.ExtraVolumes {
		buf, err := p.arena.Alloc(len(v.Data))
		if err != nil {
			p.diagnose("firmware volume", v.Base, err)
			continue
		}
		copy(buf, v.Data)
		fvs, err := uefi.ParseVolumes(buf, v.Base, p.opts.Parse)
		if merr, ok := err.(*multierror.Error); ok {
			for _, e := range merr.Errors {
				p.diagnose("firmware volume", v.Base, e)
			}
		}
		for _, fv := range fvs {
			r := memrange.Range{Base: fv.BaseAddress, Length: fv.Length}
			if p.seen[r] {
				p.log.Debugf("volume %v at %#x already captured", fv, fv.BaseAddress)
				continue
			}
			p.seen[r] = true
			p.fvs = append(p.fvs, fv)
		}
		if len(fvs) == 0 && err == nil {
			p.diagnose("firmware volume", v.Base, errors.New("no firmware volume signature found"))
		}
	}
}

func (p *pass) canonicalize() error {
	if len(p.opts.Inspect) > 0 {
		if err := visitors.ExecuteCLI(p.fvs, p.opts.Inspect); err != nil {
			return err
		}
	}

	canon := &visitors.Canonical{}
	for _, fv := range p.fvs {
		if dxe, err := visitors.FindDXEFV(fv); err == nil {
			p.log.Infof("DXE core found in volume %v at %#x", dxe, dxe.BaseAddress)
		}
		check := &visitors.Validate{}
		if err := check.Run(fv); err != nil {
			return err
		}
		for _, e := range check.Errors {
			p.diagnose("firmware volume check", fv.BaseAddress, e)
		}
		if err := canon.Run(fv); err != nil {
			return err
		}
	}
	p.c.FvList = append(p.c.FvList, canon.Volumes...)
	p.c.Diagnostics = append(p.c.Diagnostics, canon.Diagnostics...)
	return nil
}

// WriteInterchange serializes c to path and releases the arena the
// capture pass used.
func WriteInterchange(path string, c *record.Capture, arena *Arena) error {
	defer func() {
		if arena != nil {
			arena.Release()
		}
	}()
	return record.WriteFile(path, c)
}
