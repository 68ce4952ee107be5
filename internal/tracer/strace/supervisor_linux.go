//go:build linux

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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/anonymouse64/polytrace/internal/files"
	"github.com/anonymouse64/polytrace/internal/logging"
	"github.com/anonymouse64/polytrace/internal/provenance"
	"github.com/anonymouse64/polytrace/internal/tracer"
)

// Supervisor is the Linux tracer: strace is forked/exec'd as the parent of
// the target, so every syscall the target issues is observed with no
// attach race.
type Supervisor struct{}

// NewSupervisor returns a ready-to-use Linux supervisor.
func NewSupervisor() *Supervisor { return &Supervisor{} }

// Run implements tracer.Supervisor.
func (s *Supervisor) Run(argv []string) (*tracer.Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("no target program given")
	}

	base := filepath.Join(os.TempDir(), fmt.Sprintf("strace_output_%s", uuid.New().String()))
	cmd, err := buildCommand(base, argv)
	if err != nil {
		return nil, err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "spawning strace")
	}
	if waitErr := cmd.Wait(); waitErr != nil {
		logging.L().WithError(waitErr).Debug("strace (and/or traced target) exited with non-zero status")
	}
	ended := time.Now()

	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return nil, errors.Wrap(err, "enumerating strace output files")
	}

	store := provenance.NewStore()
	targetExe := provenance.Normalize(argv[0])
	targetPID := 0

	for _, f := range matches {
		pid := pidFromSuffix(f)
		sawTarget, err := parseFile(f, pid, store, targetExe)
		if err != nil {
			logging.L().WithError(err).WithField("file", f).Debug("failed reading strace output file")
		}
		if sawTarget && targetPID == 0 {
			targetPID = pid
		}
		if !tracer.Debug {
			if err := files.EnsureFileIsDeleted(f); err != nil {
				logging.L().WithError(err).WithField("file", f).Debug("failed removing strace output file")
			}
		}
	}
	if targetPID == 0 && len(matches) > 0 {
		targetPID = pidFromSuffix(matches[0])
	}

	return &tracer.Result{Store: store, StartedAt: started, EndedAt: ended, TargetPID: targetPID}, nil
}

// parseFile parses every line of one per-process strace output file,
// attributing events to pid, and reports whether it saw the target
// executable's own execve.
func parseFile(path string, pid int, store *provenance.Store, targetExe string) (sawTarget bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Text(), pid)
		if !ok {
			continue
		}
		role := provenance.ClassifyEvent(ev)
		evPath := provenance.Normalize(ev.Path)

		var meta map[string]interface{}
		if len(ev.ExecveArgv) > 0 {
			meta = map[string]interface{}{"execve_argv": ev.ExecveArgv}
		}
		store.Record(evPath, provenance.FileAccess{Role: role, PID: ev.PID, Metadata: meta}, targetExe)

		if role == provenance.RoleProcess && provenance.PathsEqual(evPath, targetExe) {
			sawTarget = true
		}
	}
	return sawTarget, scanner.Err()
}

func pidFromSuffix(path string) int {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return 0
	}
	pid, err := strconv.Atoi(path[idx+1:])
	if err != nil {
		return 0
	}
	return pid
}
