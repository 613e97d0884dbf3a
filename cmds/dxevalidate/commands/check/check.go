// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/text/transform"

	"github.com/linuxboot/dxeready/cmds/dxevalidate/commands"
	"github.com/linuxboot/dxeready/pkg/guid2english"
	"github.com/linuxboot/dxeready/pkg/log"
	"github.com/linuxboot/dxeready/pkg/record"
	"github.com/linuxboot/dxeready/pkg/report"
	"github.com/linuxboot/dxeready/pkg/validate"
)

var _ commands.Command = (*Command)(nil)

// Command validates one interchange file.
type Command struct {
	Input                 string   `short:"f" long:"file" description:"path to the interchange file (.json, .json.zst or .json.lz4)" ini-name:"file"`
	Format                string   `long:"format" description:"report format" choice:"text" choice:"json" choice:"yaml" default:"text" ini-name:"format"`
	PageSize              uint64   `long:"page-size" description:"platform page size in bytes" default:"4096" ini-name:"page-size"`
	Arm64RuntimeAlignment uint64   `long:"arm64-runtime-alignment" description:"section alignment required of ARM64 runtime drivers" default:"65536" ini-name:"arm64-runtime-alignment"`
	DxeOnly               bool     `long:"dxe-only" description:"apply the LZMA and section alignment rules to DXE phase files only" ini-name:"dxe-only"`
	Disable               []string `long:"disable" description:"skip the named rule; may be repeated" ini-name:"disable"`
	NoColor               bool     `long:"no-color" description:"do not color the text report" ini-name:"no-color"`
	Quiet                 bool     `short:"q" long:"quiet" description:"print the rules that ran on one line instead of a table" ini-name:"quiet"`
	GUIDNames             bool     `long:"guid-names" description:"append the name of well-known GUIDs in the text report" ini-name:"guid-names"`
	Verbose               bool     `short:"v" long:"verbose" description:"log each rule as it runs"`

	out io.Writer
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "validates an interchange file"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "Reads the HOB and firmware volume records captured before DXE and runs every\n" +
		"readiness rule over them. The exit status is non-zero when a prohibited\n" +
		"finding is reported."
}

// SetOutput sets where the report is written.
func (cmd *Command) SetOutput(w io.Writer) {
	cmd.out = w
}

// Execute is the main function here. It is responsible to
// start the execution of the command.
//
// `args` are the arguments left unused by verb itself and options.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	if cmd.Input == "" {
		return commands.ErrArgs{Err: fmt.Errorf("the interchange file is required (-f)")}
	}
	out := cmd.out
	if out == nil {
		out = os.Stdout
	}

	logger, sync, err := log.NewConsole(cmd.Verbose)
	if err != nil {
		return fmt.Errorf("unable to set up logging: %w", err)
	}
	defer sync()

	engine := validate.New(validate.Config{
		PageSize:              cmd.PageSize,
		Arm64RuntimeAlignment: cmd.Arm64RuntimeAlignment,
		DxeOnlyImageRules:     cmd.DxeOnly,
		Disabled:              cmd.Disable,
	}, logger)
	if err := engine.Validate(); err != nil {
		return commands.ErrArgs{Err: err}
	}

	capture, err := record.ReadFile(cmd.Input)
	if err != nil {
		return fmt.Errorf("unable to load '%s': %w", cmd.Input, err)
	}
	logger.Debugf("capture %s: schema %s, %d HOBs, %d volumes, %d diagnostics", capture.CaptureID,
		capture.SchemaVersion, len(capture.HobList), len(capture.FvList), len(capture.Diagnostics))

	r := engine.Run(capture)
	if err := cmd.render(out, r, logger); err != nil {
		return fmt.Errorf("unable to write the report: %w", err)
	}
	if r.HasProhibited() {
		return commands.ErrProhibited
	}
	return nil
}

func (cmd *Command) render(out io.Writer, r *report.Report, logger log.Logger) error {
	format := report.Format(cmd.Format)
	opts := report.TextOptions{NoColor: cmd.NoColor, Quiet: cmd.Quiet}
	if !cmd.GUIDNames || format != report.FormatText {
		return r.Render(out, format, opts)
	}
	w := transform.NewWriter(out, guid2english.NewAnnotator(logger))
	if err := r.Render(w, format, opts); err != nil {
		return err
	}
	return w.Close()
}
