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

package provenance

// suppressedPrefixes is the macOS-style suppression set: paths under these
// prefixes are system/shared-object dependencies, not program output.
var suppressedPrefixes = []string{
	"/System/",
	"/Library/",
	"/usr/",
	"/bin/",
	"/sbin/",
	"/private/var/",
	"/dev/",
	"/etc/",
	"/tmp/",
	"/var/",
}
