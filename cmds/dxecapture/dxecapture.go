// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// dxecapture captures the HOB list handed to DXE and the firmware volumes
// it announces, and writes them to an interchange file.
//
// Synopsis:
//
//	dxecapture --hob-image DUMP --image-base ADDR [--hob-base ADDR] [FLAGS] [COMMAND [ARGS]]...
//	dxecapture --devmem --hob-base ADDR [FLAGS] [COMMAND [ARGS]]...
//
// Examples:
//
//	# Capture from a memory dump taken at 0x80000000, HOB list at its start:
//	dxecapture --hob-image mem.bin --image-base 0x80000000 -o capture.json.zst
//
//	# Also parse the boot flash mapped below 4 GiB and print the volume tree:
//	dxecapture --devmem --hob-base 0x7f000000 --fv bios.rom@0xff000000 table
//
// Commands run over every parsed firmware volume before the records are
// written and print to stdout, or to stderr when the records go to stdout.
// `dxecapture --help` lists them.
//
// Exit status: 0 on success, 1 when the HOB list cannot be captured, 2 for
// invalid arguments and 3 when an input or output file cannot be used.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/linuxboot/dxeready/pkg/capture"
	"github.com/linuxboot/dxeready/pkg/compression"
	"github.com/linuxboot/dxeready/pkg/log"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/uefi"
	"github.com/linuxboot/dxeready/pkg/visitors"
)

const (
	exitOK = iota
	exitCapture
	exitUsage
	exitIO
)

// volumeFlag collects FILE@ADDR arguments.
type volumeFlag struct {
	args []volumeArg
}

type volumeArg struct {
	path string
	base uint64
}

func (v *volumeFlag) String() string {
	var s []string
	for _, a := range v.args {
		s = append(s, fmt.Sprintf("%s@%#x", a.path, a.base))
	}
	return strings.Join(s, ",")
}

func (v *volumeFlag) Set(value string) error {
	i := strings.LastIndex(value, "@")
	if i <= 0 {
		return fmt.Errorf("%q is not FILE@ADDR", value)
	}
	base, err := strconv.ParseUint(value[i+1:], 0, 64)
	if err != nil {
		return fmt.Errorf("bad address in %q: %w", value, err)
	}
	v.args = append(v.args, volumeArg{path: value[:i], base: base})
	return nil
}

func (v *volumeFlag) Type() string {
	return "FILE@ADDR"
}

type config struct {
	hobImage   string
	imageBase  uint64
	devMem     bool
	hobBase    uint64
	volumes    volumeFlag
	budget     uint64
	arena      uint64
	maxVolume  uint64
	decompress bool
	brotli     string
	output     string
	id         string
	verbose    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var cfg config
	fs := flag.NewFlagSet("dxecapture", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.hobImage, "hob-image", "", "memory dump holding the HOB list")
	fs.Uint64Var(&cfg.imageBase, "image-base", 0, "physical address the memory dump was taken at")
	fs.BoolVar(&cfg.devMem, "devmem", false, "read physical memory through /dev/mem")
	fs.Uint64Var(&cfg.hobBase, "hob-base", 0, "physical address of the PHIT HOB (default --image-base)")
	fs.Var(&cfg.volumes, "fv", "firmware volume image mapped at ADDR; may be repeated")
	fs.Uint64Var(&cfg.budget, "budget", capture.DefaultBudget, "maximum size of the HOB list in bytes")
	fs.Uint64Var(&cfg.arena, "arena", capture.DefaultArenaSize, "capture arena size in bytes")
	fs.Uint64Var(&cfg.maxVolume, "max-volume", capture.DefaultMaxVolumeSize, "maximum size of one firmware volume in bytes")
	fs.BoolVar(&cfg.decompress, "decompress", false, "decode GUID-defined sections that require processing")
	fs.StringVar(&cfg.brotli, "brotli", "", "brotli executable used to decode Brotli sections")
	fs.StringVarP(&cfg.output, "output", "o", "", "interchange file to write (.json, .json.zst or .json.lz4); stdout when empty")
	fs.StringVar(&cfg.id, "capture-id", "", "identifier recorded in the interchange file (default random)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every structure visited")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: dxecapture [FLAGS] [COMMAND [ARGS]]...\n\nFlags:\n%s\nCommands:\n%s",
			fs.FlagUsages(), visitors.ListCLI())
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	// The records go to stdout unless written to a file.
	inspectOut := stdout
	if cfg.output == "" {
		inspectOut = stderr
	}
	inspect, err := visitors.ParseCLI(fs.Args(), inspectOut)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	var mem capture.PhysicalMemory
	switch {
	case cfg.hobImage != "" && cfg.devMem:
		fmt.Fprintln(stderr, "--hob-image and --devmem are exclusive")
		return exitUsage
	case cfg.hobImage != "":
		img, err := capture.LoadImage(cfg.hobImage, cfg.imageBase)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitIO
		}
		mem = img
		if !fs.Changed("hob-base") {
			cfg.hobBase = cfg.imageBase
		}
	case cfg.devMem:
		if !fs.Changed("hob-base") {
			fmt.Fprintln(stderr, "--devmem needs --hob-base")
			return exitUsage
		}
		mem = capture.DevMem{}
	default:
		fs.Usage()
		return exitUsage
	}

	logger, sync, err := log.NewConsole(cfg.verbose)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer sync()

	var extra []capture.Volume
	for _, a := range cfg.volumes.args {
		data, err := os.ReadFile(a.path)
		if err != nil {
			logger.Errorf("unable to read firmware volume image: %v", err)
			return exitIO
		}
		extra = append(extra, capture.Volume{Base: a.base, Data: data})
	}

	arena := capture.NewArena(cfg.arena)
	c, err := capture.Run(mem, cfg.hobBase, capture.Options{
		Budget:        cfg.budget,
		MaxVolumeSize: cfg.maxVolume,
		Arena:         arena,
		ExtraVolumes:  extra,
		Parse: uefi.ParseOptions{
			Decompress:  cfg.decompress,
			Compression: compression.Options{BrotliPath: cfg.brotli},
		},
		Inspect:   inspect,
		CaptureID: cfg.id,
		Logger:    logger,
	})
	if err != nil {
		arena.Release()
		logger.Errorf("capture failed: %v", err)
		return exitCapture
	}

	if cfg.output == "" {
		defer arena.Release()
		if err := record.Encode(stdout, c); err != nil {
			logger.Errorf("%v", err)
			return exitIO
		}
		return exitOK
	}
	if err := capture.WriteInterchange(cfg.output, c, arena); err != nil {
		logger.Errorf("%v", err)
		return exitIO
	}
	logger.Infof("wrote capture %s to %s", c.CaptureID, cfg.output)
	return exitOK
}
