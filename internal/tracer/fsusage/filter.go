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
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	processColumnRE = regexp.MustCompile(`\s{2,}(\S+)\s*$`)
	waitPrefixRE    = regexp.MustCompile(`^\d+\s+W\s+(.*)$`)
)

// processColumn extracts the trailing process column: the last run of
// printable characters separated from the rest of the line by two or more
// whitespace characters.
func processColumn(line string) (string, bool) {
	m := processColumnRE.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stripWaitPrefix removes a numeric wait-marker prefix ("123  W  ") that
// fs_usage prepends to some process columns.
func stripWaitPrefix(col string) string {
	if m := waitPrefixRE.FindStringSubmatch(col); m != nil {
		return m[1]
	}
	return col
}

// processNameMatches preserves the original's loose either-direction
// prefix match: an executable named "foo" also matches an unrelated
// process "foobar", and vice versa. This is flagged as likely unintended
// in SPEC_FULL.md's Open Questions but preserved rather than tightened.
func processNameMatches(name, targetBasename string) bool {
	if name == targetBasename {
		return true
	}
	return strings.HasPrefix(name, targetBasename) || strings.HasPrefix(targetBasename, name)
}

// FilterStream copies lines from raw attributable to the target process
// tree into cooked, maintaining a growing set of accepted thread ids
// seeded with the target pid. Returns (total, kept) line counts for
// diagnostics.
func FilterStream(raw io.Reader, cooked io.Writer, targetPID int, targetBasename string) (total, kept int, err error) {
	threadIDs := map[int]bool{targetPID: true}

	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		total++
		line := scanner.Text()

		col, ok := processColumn(line)
		if !ok {
			continue
		}
		name, pid, ok := extractPID(col)
		if !ok {
			continue
		}

		keep := threadIDs[pid]
		if !keep && processNameMatches(name, targetBasename) {
			keep = true
			threadIDs[pid] = true
		}
		if !keep {
			continue
		}

		kept++
		if _, err := fmt.Fprintln(cooked, line); err != nil {
			return total, kept, errors.Wrap(err, "writing filtered tracer output")
		}
	}
	if err := scanner.Err(); err != nil {
		return total, kept, errors.Wrap(err, "reading raw tracer output")
	}
	return total, kept, nil
}
