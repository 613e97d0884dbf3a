// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rules

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/linuxboot/dxeready/cmds/dxevalidate/commands"
	"github.com/linuxboot/dxeready/pkg/validate"
)

var _ commands.Command = (*Command)(nil)

// Command lists the rule registry.
type Command struct {
	out io.Writer
}

// ShortDescription explains what this command does in one line
func (cmd *Command) ShortDescription() string {
	return "lists the rules in the order they run"
}

// LongDescription explains what this verb does (without limitation in amount of lines)
func (cmd *Command) LongDescription() string {
	return "The names printed are accepted by 'check --disable'."
}

// SetOutput sets where the list is written.
func (cmd *Command) SetOutput(w io.Writer) {
	cmd.out = w
}

// Execute prints the registry.
func (cmd *Command) Execute(args []string) error {
	if len(args) != 0 {
		return commands.ErrArgs{Err: fmt.Errorf("there are extra arguments")}
	}
	out := cmd.out
	if out == nil {
		out = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Rule", "Description"})
	for i, r := range validate.DefaultRules() {
		t.AppendRow(table.Row{i + 1, r.Name(), r.Description()})
	}
	t.Render()
	return nil
}
