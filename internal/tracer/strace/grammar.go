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

// Package strace implements the Linux tracer dialect: a line grammar for
// `strace -ff -ttt -y -e trace=file` output and the supervisor that drives
// it (see supervisor_linux.go).
package strace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/anonymouse64/polytrace/internal/provenance"
)

var (
	// lineRE matches "<ts> <syscall>(<args>) = <rv>[<trailing>]", the
	// shape every recognized strace line has once any "[pid N] " prefix
	// has been stripped.
	lineRE = regexp.MustCompile(`^\d+\.\d+\s+([A-Za-z_][A-Za-z0-9_]*)\((.*)\)\s*=\s*(-?\d+|\?)(.*)$`)

	pidPrefixRE   = regexp.MustCompile(`^\[pid\s+(\d+)\]\s*`)
	quotedRE      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	fdPathSuffix  = regexp.MustCompile(`<([^<>]*)>`)
	bannerPrefix  = []string{"---", "+++"}
	unfinishedTok = "<unfinished"
	resumedTok    = "resumed>"
)

// twoPathOps extract their path from the *last* quoted argument (the
// "AT_FDCWD, \"src\", AT_FDCWD, \"dst\"" shape): the destination, or the
// only path for a single-path op such as mkdirat.
var twoPathOps = map[string]bool{
	"link": true, "linkat": true, "rename": true, "renameat": true,
	"renameat2": true, "mkdirat": true,
}

var execOps = map[string]bool{"execve": true, "posix_spawn": true}

// singlePathOps take their path from the first quoted argument.
var singlePathOps = map[string]bool{
	"open": true, "openat": true, "creat": true,
	"stat": true, "lstat": true, "fstat": true, "access": true,
	"readlink": true, "symlink": true, "mkdir": true, "rmdir": true,
	"unlink": true, "chmod": true, "chown": true, "fchmod": true,
	"fchown": true, "truncate": true, "ftruncate": true,
	"setxattr": true, "removexattr": true,
}

// ParseLine parses one strace output line, attributing it to filePID unless
// the line itself carries a "[pid N]" prefix. It returns ok=false for
// banners, continuation lines, and any syscall this grammar doesn't
// recognize as path-bearing; no line shape is a parse error.
func ParseLine(line string, filePID int) (provenance.SyscallEvent, bool) {
	trimmed := strings.TrimSpace(line)
	for _, p := range bannerPrefix {
		if strings.HasPrefix(trimmed, p) {
			return provenance.SyscallEvent{}, false
		}
	}
	if strings.Contains(trimmed, unfinishedTok) || strings.Contains(trimmed, resumedTok) {
		return provenance.SyscallEvent{}, false
	}

	pid := filePID
	if m := pidPrefixRE.FindStringSubmatch(trimmed); m != nil {
		trimmed = trimmed[len(m[0]):]
		if n, err := strconv.Atoi(m[1]); err == nil {
			pid = n
		}
	}

	m := lineRE.FindStringSubmatch(trimmed)
	if m == nil {
		return provenance.SyscallEvent{}, false
	}
	op, args, rv, trailing := m[1], m[2], m[3], m[4]

	if rv == "-1" {
		return provenance.SyscallEvent{}, false
	}

	quoted := extractQuoted(args)
	lowerOp := strings.ToLower(op)

	ev := provenance.SyscallEvent{
		Operation:   op,
		PID:         pid,
		FlagTokens:  args,
		ReturnValue: rv,
	}

	switch {
	case execOps[lowerOp]:
		if len(quoted) == 0 {
			return provenance.SyscallEvent{}, false
		}
		ev.Path = quoted[0]
		if body, ok := extractBracket(args); ok {
			ev.ExecveArgv = extractQuoted(body)
		}
	case twoPathOps[lowerOp]:
		if len(quoted) == 0 {
			return provenance.SyscallEvent{}, false
		}
		ev.Path = quoted[len(quoted)-1]
	case singlePathOps[lowerOp]:
		if len(quoted) > 0 {
			ev.Path = quoted[0]
		} else if p, ok := lastFDPath(args); ok {
			ev.Path = p
		} else {
			return provenance.SyscallEvent{}, false
		}
	default:
		// Not in the recognized-operations table; still accept it if
		// strace's "-y" fd annotation gives us a path, since that's how
		// write/pwrite/close-style syscalls surface a path at all.
		if p, ok := lastFDPath(args); ok {
			ev.Path = p
		} else if p, ok := lastFDPath(trailing); ok {
			ev.Path = p
		} else {
			return provenance.SyscallEvent{}, false
		}
	}

	// open/openat/creat can also have their path overridden by a returned
	// fd-path annotation, which strace emits on the return value itself.
	if singlePathOps[lowerOp] {
		if p, ok := lastFDPath(trailing); ok {
			ev.Path = p
		}
	}

	return ev, true
}

func extractQuoted(s string) []string {
	matches := quotedRE.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// lastFDPath finds the last "<path>" fd annotation in s, as produced by
// strace's -y option.
func lastFDPath(s string) (string, bool) {
	matches := fdPathSuffix.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

// extractBracket returns the content of the first balanced [...] group in
// s, used to pull an execve argv list out without also grabbing envp.
func extractBracket(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start+1 : i], true
			}
		}
	}
	return "", false
}
