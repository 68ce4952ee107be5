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

package strace

import (
	"os/exec"

	"github.com/pkg/errors"

	"github.com/anonymouse64/polytrace/internal/commands"
)

// buildCommand returns the strace invocation that captures file accesses
// for argv, writing per-process output to files named by outputPattern
// plus a ".PID" suffix.
func buildCommand(outputPattern string, argv []string) (*exec.Cmd, error) {
	stracePath, err := exec.LookPath("strace")
	if err != nil {
		return nil, errors.Wrap(err, "strace not found on PATH")
	}

	args := []string{
		stracePath,
		// split tracer output per-process: avoids ever having to match an
		// interrupted syscall split across two lines
		"-ff",
		// maximum timing accuracy, in case downstream consumers care
		"-ttt",
		// annotate file descriptor arguments with the path they refer to
		"-y",
		"-e", "trace=file",
		// long enough that paths are never truncated
		"-s", "4096",
		"-o", outputPattern,
		"--",
	}
	args = append(args, argv...)

	cmd := &exec.Cmd{Path: stracePath, Args: args}
	if err := commands.AddSudoIfNeeded(cmd, "-E"); err != nil {
		return nil, err
	}
	return cmd, nil
}
