// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// dxevalidate checks a capture of the DXE hand-off state against the
// readiness rules.
//
// Synopsis:
//
//	dxevalidate check -f CAPTURE [options]
//	dxevalidate rules
//
// An example:
//
//	dxevalidate check -f capture.json.zst --format yaml --disable empty-capture
//	dxevalidate --config platform.ini check -f capture.json
//
// The INI file holds a [check] section whose keys are the long option
// names; options given on the command line take precedence.
//
// Exit status:
//
//	0  no prohibited finding
//	1  one or more prohibited findings
//	2  malformed interchange file
//	3  interchange schema version mismatch
//	4  interchange file unreadable
//	5  invalid arguments
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/linuxboot/dxeready/cmds/dxevalidate/commands"
	"github.com/linuxboot/dxeready/cmds/dxevalidate/commands/check"
	"github.com/linuxboot/dxeready/cmds/dxevalidate/commands/rules"
	"github.com/linuxboot/dxeready/pkg/record"
)

// Exit codes.
const (
	exitOK = iota
	exitProhibited
	exitMalformed
	exitSchema
	exitIO
	exitUsage
)

type globalOptions struct {
	Config string `long:"config" description:"INI file with option defaults" value-name:"FILE"`
}

func knownCommands() map[string]commands.Command {
	return map[string]commands.Command{
		"check": &check.Command{},
		"rules": &rules.Command{},
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts globalOptions
	flagsParser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	for commandName, command := range knownCommands() {
		command.SetOutput(stdout)
		_, err := flagsParser.AddCommand(commandName, command.ShortDescription(), command.LongDescription(), command)
		if err != nil {
			panic(err)
		}
	}

	if path := configPath(args); path != "" {
		if err := flags.NewIniParser(flagsParser).ParseFile(path); err != nil {
			fmt.Fprintf(stderr, "unable to read config '%s': %v\n", path, err)
			return exitUsage
		}
	}

	// parse arguments and execute the appropriate command
	_, err := flagsParser.ParseArgs(args)
	code := exitCode(err)
	switch {
	case err == nil, errors.Is(err, commands.ErrProhibited):
	case code == exitOK:
		fmt.Fprintln(stdout, err)
	default:
		fmt.Fprintln(stderr, err)
	}
	return code
}

// configPath finds --config before the command is parsed, so the INI
// defaults are in place when the command line overrides them.
func configPath(args []string) string {
	var opts globalOptions
	p := flags.NewParser(&opts, flags.IgnoreUnknown|flags.PassDoubleDash)
	if _, err := p.ParseArgs(args); err != nil {
		return ""
	}
	return opts.Config
}

func exitCode(err error) int {
	var flagsErr *flags.Error
	var argsErr commands.ErrArgs
	var ioErr *record.IOError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &flagsErr):
		if flagsErr.Type == flags.ErrHelp {
			return exitOK
		}
		return exitUsage
	case errors.As(err, &argsErr):
		return exitUsage
	case errors.Is(err, commands.ErrProhibited):
		return exitProhibited
	case errors.Is(err, record.ErrSchemaVersionMismatch):
		return exitSchema
	case errors.As(err, &ioErr):
		return exitIO
	case errors.Is(err, record.ErrMalformedInput):
		return exitMalformed
	}
	return exitMalformed
}
