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

package strace_test

import (
	"testing"

	"github.com/anonymouse64/polytrace/internal/provenance"
	"github.com/anonymouse64/polytrace/internal/tracer/strace"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type grammarTestSuite struct{}

var _ = check.Suite(&grammarTestSuite{})

func (s *grammarTestSuite) TestParseLineOpen(c *check.C) {
	line := `1234567890.123456 openat(AT_FDCWD, "/etc/passwd", O_RDONLY) = 3</etc/passwd>`
	ev, ok := strace.ParseLine(line, 42)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Operation, check.Equals, "openat")
	c.Check(ev.Path, check.Equals, "/etc/passwd")
	c.Check(ev.PID, check.Equals, 42)
}

func (s *grammarTestSuite) TestParseLineWriteFlagsSurviveAsTokens(c *check.C) {
	line := `1234567890.123456 openat(AT_FDCWD, "/tmp/out.txt", O_WRONLY|O_CREAT|O_TRUNC, 0644) = 4</tmp/out.txt>`
	ev, ok := strace.ParseLine(line, 42)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Path, check.Equals, "/tmp/out.txt")
	c.Check(provenance.ClassifyEvent(ev), check.Equals, provenance.RoleOutput)
}

func (s *grammarTestSuite) TestParseLineExecveCapturesArgv(c *check.C) {
	line := `1234567890.123456 execve("/bin/ls", ["ls", "-l"], 0x7ffd /* 20 vars */) = 0`
	ev, ok := strace.ParseLine(line, 7)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Operation, check.Equals, "execve")
	c.Check(ev.Path, check.Equals, "/bin/ls")
	c.Check(ev.ExecveArgv, check.DeepEquals, []string{"ls", "-l"})
	c.Check(provenance.ClassifyEvent(ev), check.Equals, provenance.RoleProcess)
}

func (s *grammarTestSuite) TestParseLineRenameTakesDestination(c *check.C) {
	line := `1234567890.123456 rename("/tmp/a", "/tmp/b") = 0`
	ev, ok := strace.ParseLine(line, 1)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Path, check.Equals, "/tmp/b")
}

func (s *grammarTestSuite) TestParseLineDiscardsFailedCalls(c *check.C) {
	line := `1234567890.123456 openat(AT_FDCWD, "/nonexistent", O_RDONLY) = -1 ENOENT (No such file or directory)`
	_, ok := strace.ParseLine(line, 1)
	c.Check(ok, check.Equals, false)
}

func (s *grammarTestSuite) TestParseLineSkipsUnfinishedAndBanners(c *check.C) {
	tt := []string{
		`1234567890.123456 read(3,  <unfinished ...>`,
		`1234567890.123456 <... read resumed>"hello", 5) = 5`,
		`--- SIGCHLD {si_signo=SIGCHLD, si_code=CLD_EXITED, si_pid=123, si_status=0} ---`,
		`+++ exited with 0 +++`,
	}
	for _, line := range tt {
		_, ok := strace.ParseLine(line, 1)
		c.Check(ok, check.Equals, false, check.Commentf(line))
	}
}

func (s *grammarTestSuite) TestParseLinePIDPrefixOverridesFilePID(c *check.C) {
	line := `[pid  1234] 1234567890.123456 openat(AT_FDCWD, "/etc/passwd", O_RDONLY) = 3</etc/passwd>`
	ev, ok := strace.ParseLine(line, 42)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.PID, check.Equals, 1234)
}

func (s *grammarTestSuite) TestParseLineFallsBackToFDAnnotation(c *check.C) {
	line := `1234567890.123456 close(3</etc/passwd>) = 0`
	ev, ok := strace.ParseLine(line, 1)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Path, check.Equals, "/etc/passwd")
}

func (s *grammarTestSuite) TestParseLineUnrecognizedOpWithoutPathIsSkipped(c *check.C) {
	line := `1234567890.123456 getpid() = 123`
	_, ok := strace.ParseLine(line, 1)
	c.Check(ok, check.Equals, false)
}
