// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package visitors uses the Visitor interface to recursively apply an
// operation over parsed firmware volumes, including the conversion into
// canonical records. Also, functions are exported for using the visitors
// through the command line.
package visitors

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/linuxboot/dxeready/pkg/uefi"
)

// ErrUnknownCommand is returned by ParseCLI for an unregistered name.
var ErrUnknownCommand = errors.New("unknown command")

// CreateFunc builds a visitor from its command line arguments. Output goes
// to w.
type CreateFunc func(args []string, w io.Writer) (uefi.Visitor, error)

type command struct {
	name     string
	synopsis string
	help     string
	numArgs  int
	create   CreateFunc
}

var registry = map[string]command{}

// RegisterCLI makes a visitor available to ParseCLI under name. synopsis
// names the arguments, one word per argument.
func RegisterCLI(name, synopsis, help string, create CreateFunc) {
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("two visitors registered the same name: '%s'", name))
	}
	registry[name] = command{
		name:     name,
		synopsis: synopsis,
		help:     help,
		numArgs:  len(strings.Fields(synopsis)),
		create:   create,
	}
}

// ParseCLI constructs a list of visitors from the given CLI argument list.
// Visitors write their output to w.
func ParseCLI(args []string, w io.Writer) ([]uefi.Visitor, error) {
	var visitors []uefi.Visitor
	for len(args) > 0 {
		cmd, ok := registry[args[0]]
		if !ok {
			return nil, fmt.Errorf("%w '%s'", ErrUnknownCommand, args[0])
		}
		args = args[1:]
		if cmd.numArgs > len(args) {
			return nil, fmt.Errorf("too few arguments for command '%s', got %d, expected %d.\nSynopsis: %s",
				cmd.name, len(args), cmd.numArgs, cmd.usage())
		}
		v, err := cmd.create(args[:cmd.numArgs], w)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.name, err)
		}
		visitors = append(visitors, v)
		args = args[cmd.numArgs:]
	}
	return visitors, nil
}

// ExecuteCLI applies each Visitor over every firmware volume in sequence.
func ExecuteCLI(fvs []*uefi.FirmwareVolume, v []uefi.Visitor) error {
	for i := range v {
		for _, fv := range fvs {
			if err := v[i].Run(fv); err != nil {
				return fmt.Errorf("%T on volume %v at %#x: %w", v[i], fv, fv.BaseAddress, err)
			}
		}
	}
	return nil
}

func (c command) usage() string {
	return strings.TrimSpace(c.name + " " + c.synopsis)
}

// ListCLI returns one line per registered visitor, sorted by name, in the
// form "name ARGS: help".
func ListCLI() string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		c := registry[n]
		fmt.Fprintf(&b, "  %-22s: %s\n", c.usage(), c.help)
	}
	return b.String()
}
