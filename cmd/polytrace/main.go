/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/anonymouse64/polytrace/internal/config"
	"github.com/anonymouse64/polytrace/internal/files"
	"github.com/anonymouse64/polytrace/internal/logging"
	"github.com/anonymouse64/polytrace/internal/provenance"
	"github.com/anonymouse64/polytrace/internal/tracer"
)

type cmdTrace struct {
	Output string `short:"o" long:"output" description:"Write the provenance payload here instead of stdout"`

	Args struct {
		Program string   `description:"Program to run" required:"yes"`
		Rest    []string `description:"Arguments to the program"`
	} `positional-args:"yes" required:"yes"`
}

var parser = flags.NewParser(&struct {
	Trace cmdTrace `command:"trace" description:"Run a program under the platform tracer and record its file provenance"`
}{}, flags.Default)

func main() {
	logging.Configure(os.Getenv("POLYTRACE_DEBUG") != "")
	tracer.Debug = os.Getenv("POLYTRACE_DEBUG") != ""

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func (x *cmdTrace) Execute(args []string) error {
	argv := append([]string{x.Args.Program}, x.Args.Rest...)

	sup, err := newSupervisor()
	if err != nil {
		return err
	}

	logging.L().WithField("argv", argv).Debug("starting trace")
	result, err := sup.Run(argv)
	if err != nil {
		return errors.Wrap(err, "running traced program")
	}

	payload := provenance.Assemble(result.Store, argv, result.StartedAt, result.EndedAt, result.TargetPID)

	w := os.Stdout
	if x.Output != "" {
		f, err := files.EnsureExistsAndOpen(x.Output, true)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return errors.Wrap(err, "encoding provenance payload")
	}

	if tracer.Debug {
		summarize(payload)
	}

	return nil
}

// summarize prints a short human-readable digest to stderr. It's never
// part of the JSON payload; POLYTRACE_DEBUG is the only thing that turns
// it on.
func summarize(p provenance.Payload) {
	inputs, outputs, processes := 0, 0, 0
	for _, e := range p.Entities {
		switch e.Role {
		case provenance.RoleInput:
			inputs++
		case provenance.RoleOutput:
			outputs++
		case provenance.RoleProcess:
			processes++
		}
	}
	durationMs := p.Activity.EndedAt - p.Activity.StartedAt
	fmt.Fprintln(os.Stderr, color.CyanString("polytrace summary"))
	fmt.Fprintf(os.Stderr, "  %s entities (%d input, %d output, %d process)\n",
		humanize.Comma(int64(len(p.Entities))), inputs, outputs, processes)
	fmt.Fprintf(os.Stderr, "  ran for %dms\n", durationMs)
	fmt.Fprintln(os.Stderr, "  upload config:", uploadConfigStatus())
}

// uploadConfigStatus reports whether an upload collaborator's credentials
// are present, without ever reading them into the engine's own decisions.
func uploadConfigStatus() string {
	cfg, err := config.Load()
	if err != nil {
		return color.YellowString("unreadable (%s)", err)
	}
	if cfg == nil {
		return color.YellowString("absent")
	}
	return color.GreenString("present (%s)", cfg.UploadURL)
}
