//go:build darwin

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

package fsusage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/anonymouse64/polytrace/internal/commands"
	"github.com/anonymouse64/polytrace/internal/files"
	"github.com/anonymouse64/polytrace/internal/logging"
	"github.com/anonymouse64/polytrace/internal/provenance"
	"github.com/anonymouse64/polytrace/internal/tracer"
)

// Defaults for the two bounded sleeps and the shutdown signal budget;
// exposed as package-level vars rather than constants so tests can shrink
// them.
var (
	AttachDelay   = 1000 * time.Millisecond
	PostExitDelay = 100 * time.Millisecond
	TermGrace     = 500 * time.Millisecond
)

// Supervisor is the macOS tracer. Unlike strace, fs_usage can't be scoped
// to a single process: it emits system-wide, so this supervisor attaches
// it before the target starts, captures everything, and filters the
// result down to the target's process tree afterwards (see filter.go).
type Supervisor struct{}

// NewSupervisor returns a ready-to-use macOS supervisor.
func NewSupervisor() *Supervisor { return &Supervisor{} }

// Run implements tracer.Supervisor.
func (s *Supervisor) Run(argv []string) (*tracer.Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("no target program given")
	}

	fsUsagePath, err := exec.LookPath("fs_usage")
	if err != nil {
		return nil, errors.Wrap(err, "fs_usage not found on PATH")
	}

	suffix := uuid.New().String()
	rawPath := fmt.Sprintf("fs_usage_output_%s.raw", suffix)
	cookedPath := fmt.Sprintf("fs_usage_output_%s.txt", suffix)

	rawFile, err := os.Create(rawPath)
	if err != nil {
		return nil, errors.Wrap(err, "creating raw tracer output file")
	}
	defer func() {
		rawFile.Close()
		if !tracer.Debug {
			if err := files.EnsureFileIsDeleted(rawPath); err != nil {
				logging.L().WithError(err).WithField("file", rawPath).Debug("failed removing raw tracer output file")
			}
		}
	}()

	tracerCmd := &exec.Cmd{Path: fsUsagePath, Args: []string{fsUsagePath, "-w", "-f", "filesys"}}
	tracerCmd.Stdout = rawFile
	tracerCmd.Stderr = rawFile
	if err := commands.AddSudoIfNeeded(tracerCmd); err != nil {
		return nil, err
	}
	if err := tracerCmd.Start(); err != nil {
		return nil, errors.Wrap(err, "spawning fs_usage")
	}
	logging.L().WithField("pid", tracerCmd.Process.Pid).Debug("fs_usage attached")

	time.Sleep(AttachDelay)

	targetCmd := exec.Command(argv[0], argv[1:]...)
	targetCmd.Stdin = os.Stdin
	targetCmd.Stdout = os.Stdout
	targetCmd.Stderr = os.Stderr

	started := time.Now()
	if err := targetCmd.Start(); err != nil {
		killTracer(tracerCmd)
		return nil, errors.Wrap(err, "spawning target")
	}
	targetPID := targetCmd.Process.Pid

	if waitErr := targetCmd.Wait(); waitErr != nil {
		logging.L().WithError(waitErr).Debug("target exited with non-zero status")
	}
	ended := time.Now()

	time.Sleep(PostExitDelay)
	shutdownTracer(tracerCmd)

	cookedFile, err := os.Create(cookedPath)
	if err != nil {
		return nil, errors.Wrap(err, "creating filtered tracer output file")
	}
	defer func() {
		cookedFile.Close()
		if !tracer.Debug {
			if err := files.EnsureFileIsDeleted(cookedPath); err != nil {
				logging.L().WithError(err).WithField("file", cookedPath).Debug("failed removing filtered tracer output file")
			}
		}
	}()

	if _, err := rawFile.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "rewinding raw tracer output")
	}
	targetBasename := filepath.Base(argv[0])
	total, kept, err := FilterStream(rawFile, cookedFile, targetPID, targetBasename)
	if err != nil {
		return nil, err
	}
	logging.L().WithFields(map[string]interface{}{"total": total, "kept": kept}).Debug("filtered fs_usage output")

	store := provenance.NewStore()
	targetExe := provenance.Normalize(argv[0])

	if kept > 0 {
		if _, err := cookedFile.Seek(0, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "rewinding filtered tracer output")
		}
		parseStream(cookedFile, store, targetExe, -1)
	} else {
		// Falls back to the raw stream with a strict pid filter: the
		// target may have exited before fs_usage finished attaching, so
		// an empty cooked stream is accepted rather than fatal.
		if _, err := rawFile.Seek(0, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "rewinding raw tracer output")
		}
		parseStream(rawFile, store, targetExe, targetPID)
	}

	return &tracer.Result{Store: store, StartedAt: started, EndedAt: ended, TargetPID: targetPID}, nil
}

func killTracer(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(cmd.Process.Pid, unix.SIGKILL)
	_ = cmd.Wait()
}

// shutdownTracer sends SIGINT, gives the tracer TermGrace to exit, and
// escalates to SIGTERM if it hasn't. fs_usage is never force-killed here;
// SIGKILL is reserved for the spawn-failure recovery path above.
func shutdownTracer(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(cmd.Process.Pid, unix.SIGINT)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(TermGrace):
		_ = unix.Kill(cmd.Process.Pid, unix.SIGTERM)
		<-done
	}
}

func parseStream(r io.Reader, store *provenance.Store, targetExe string, strictPID int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if strictPID >= 0 && ev.PID != strictPID {
			continue
		}
		role := provenance.ClassifyEvent(ev)
		path := provenance.Normalize(ev.Path)
		store.Record(path, provenance.FileAccess{Role: role, PID: ev.PID}, targetExe)
	}
}
