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

package provenance

import (
	"path/filepath"
	"strings"
)

// Normalize puts a tracer-reported path into lexical form. Tracer output is
// not guaranteed to be absolute (a relative argv[0], a cwd-relative open());
// this cleans what we have rather than guessing at a working directory we
// don't reliably know.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// PathsEqual compares two normalized paths for the "is this the target
// executable" check, falling back to a basename comparison since argv[0] is
// frequently a bare or PATH-resolved name while the tracer reports the
// resolved absolute path (or vice versa).
func PathsEqual(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return filepath.Base(a) == filepath.Base(b)
}

// IsSuppressed reports whether path is infrastructure the traced program
// links against rather than data it produces, per the active platform's
// suppression set (chosen at build time, see suppress_*.go).
func IsSuppressed(path string) bool {
	for _, prefix := range suppressedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if strings.Contains(path, "/CMakeFiles/Progress/") {
		return true
	}
	return strings.HasSuffix(path, ".so")
}
