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

package fsusage_test

import (
	"bytes"
	"testing"

	"github.com/anonymouse64/polytrace/internal/provenance"
	"github.com/anonymouse64/polytrace/internal/tracer/fsusage"

	"gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type grammarTestSuite struct{}

var _ = check.Suite(&grammarTestSuite{})

func (s *grammarTestSuite) TestParseLineOpenWithPath(c *check.C) {
	line := `12:00:00.000001  open    /etc/passwd                              0.000012 W   cat.1234`
	ev, ok := fsusage.ParseLine(line)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Operation, check.Equals, "open")
	c.Check(ev.Path, check.Equals, "/etc/passwd")
	c.Check(ev.PID, check.Equals, 1234)
}

func (s *grammarTestSuite) TestParseLineNormalizesWriteFlag(c *check.C) {
	line := `12:00:00.000001  open F=3 (W)  /tmp/out.txt      0.000012 W   cat.1234`
	ev, ok := fsusage.ParseLine(line)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Path, check.Equals, "/tmp/out.txt")
	c.Check(provenance.ClassifyEvent(ev), check.Equals, provenance.RoleOutput)
}

func (s *grammarTestSuite) TestParseLineIgnoresNumericFieldsWhenLookingForPath(c *check.C) {
	line := `12:00:00.000001  stat    0.000012        1234.5678  /usr/lib/libfoo.dylib    cat.1234`
	ev, ok := fsusage.ParseLine(line)
	c.Assert(ok, check.Equals, true)
	c.Check(ev.Path, check.Equals, "/usr/lib/libfoo.dylib")
}

func (s *grammarTestSuite) TestParseLineTooFewFieldsIsSkipped(c *check.C) {
	_, ok := fsusage.ParseLine("short line")
	c.Check(ok, check.Equals, false)
}

func (s *grammarTestSuite) TestParseLineNoPathIsSkipped(c *check.C) {
	line := `12:00:00.000001  getpid                                           0.000002        cat.1234`
	_, ok := fsusage.ParseLine(line)
	c.Check(ok, check.Equals, false)
}

func (s *grammarTestSuite) TestFilterStreamKeepsTargetDropsUnrelated(c *check.C) {
	raw := `12:00:00.000001  open    /etc/passwd                              0.000012        cat.100
12:00:00.000002  open    /tmp/unrelated.txt                       0.000012        other.200
12:00:00.000003  stat    /etc/hostname                            0.000012        cat.100
`
	var cooked bytes.Buffer
	total, kept, err := fsusage.FilterStream(bytes.NewBufferString(raw), &cooked, 100, "cat")
	c.Assert(err, check.IsNil)
	c.Check(total, check.Equals, 3)
	c.Check(kept, check.Equals, 2)
}

func (s *grammarTestSuite) TestFilterStreamAdoptsMatchingProcessName(c *check.C) {
	raw := `12:00:00.000001  open    /etc/passwd                              0.000012        cat.999
`
	var cooked bytes.Buffer
	_, kept, err := fsusage.FilterStream(bytes.NewBufferString(raw), &cooked, 100, "cat")
	c.Assert(err, check.IsNil)
	c.Check(kept, check.Equals, 1, check.Commentf("loose name match should adopt pid 999 even though the target pid is 100"))
}
