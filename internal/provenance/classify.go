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

import "strings"

// openFlagTokens are the raw-line tokens that mark an open/openat/creat as
// a write access. The fs_usage grammar normalizes its own W/A/C/T tokens
// into these before classification so this list applies uniformly across
// both dialects.
var openFlagTokens = []string{"O_WRONLY", "O_RDWR", "O_CREAT", "O_TRUNC", "O_APPEND"}

// outputOperationSubstrings are operation-name substrings that mark a
// syscall as an output access regardless of flags.
var outputOperationSubstrings = []string{
	"write", "pwrite", "pwrite64", "pwritev", "pwritev_nocancel",
	"create", "rename", "link", "unlink", "mkdir", "rmdir",
	"truncate", "ftruncate", "symlink", "chmod", "chown", "fchmod",
	"fchown", "setattr", "setxattr", "removexattr",
}

// ClassifyEvent maps a SyscallEvent to a role, in the order specified:
// execve/posix_spawn is always process; an output-marking flag token or a
// creat always output; an output-ish operation name output; everything
// else input.
func ClassifyEvent(ev SyscallEvent) Role {
	op := strings.ToLower(ev.Operation)

	if op == "execve" || op == "posix_spawn" {
		return RoleProcess
	}

	if op == "creat" {
		return RoleOutput
	}
	for _, tok := range openFlagTokens {
		if strings.Contains(ev.FlagTokens, tok) {
			return RoleOutput
		}
	}

	for _, sub := range outputOperationSubstrings {
		if strings.Contains(op, sub) {
			return RoleOutput
		}
	}

	return RoleInput
}
