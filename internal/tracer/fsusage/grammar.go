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

// Package fsusage implements the macOS tracer dialect: a line grammar for
// `fs_usage -w -f filesys` output, the process-column filter/reconciler
// (filter.go), and the supervisor that drives both (supervisor_darwin.go).
package fsusage

import (
	"strconv"
	"strings"

	"github.com/anonymouse64/polytrace/internal/provenance"
)

// pathExpectingOps is the fallback set: operations that always act on a
// path even when no field in the line obviously "looks like" one.
var pathExpectingOps = map[string]bool{
	"open": true, "stat": true, "lstat": true, "access": true,
	"creat": true, "write": true, "pwrite": true, "rename": true,
	"link": true, "unlink": true, "mkdir": true, "rmdir": true,
	"truncate": true, "chmod": true, "chown": true, "symlink": true,
	"readlink": true, "setxattr": true, "removexattr": true,
}

// ParseLine parses one fs_usage line of the form
// "<timestamp> <operation> <fields...> <duration> [W] <process.pid>".
// It returns ok=false for any line it can't extract both an operation and a
// path from; no line shape is a parse error.
func ParseLine(line string) (provenance.SyscallEvent, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return provenance.SyscallEvent{}, false
	}

	op := strings.ToLower(fields[1])
	name, pid, ok := extractPID(fields[len(fields)-1])
	if !ok {
		return provenance.SyscallEvent{}, false
	}
	_ = name

	var path string
	var flagTokens strings.Builder
	middle := fields[2 : len(fields)-1]

	for _, f := range middle {
		tok := strings.Trim(f, "[]\"")
		if strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")") {
			normalizeFlags(tok, &flagTokens)
			continue
		}
		if path == "" && looksLikePath(tok) {
			path = tok
		}
	}

	if path == "" && pathExpectingOps[op] {
		for _, f := range middle {
			tok := strings.Trim(f, "[]\"")
			if isNumberLike(tok) || isFlagLike(tok) || tok == "" {
				continue
			}
			path = tok
			break
		}
	}

	if path == "" {
		return provenance.SyscallEvent{}, false
	}

	return provenance.SyscallEvent{
		Operation:  op,
		Path:       path,
		PID:        pid,
		FlagTokens: strings.TrimSpace(flagTokens.String()),
	}, true
}

// normalizeFlags maps fs_usage's W/A/C/T open-flag tokens, found inside a
// parenthesized segment like "(W)" or "(R,W)", onto the O_* tokens the
// shared event classifier already knows how to look for.
func normalizeFlags(paren string, out *strings.Builder) {
	inner := strings.Trim(paren, "()")
	for _, tok := range strings.Split(inner, ",") {
		switch strings.TrimSpace(tok) {
		case "W":
			out.WriteString(" O_WRONLY")
		case "A":
			out.WriteString(" O_APPEND")
		case "C":
			out.WriteString(" O_CREAT")
		case "T":
			out.WriteString(" O_TRUNC")
		}
	}
}

// looksLikePath reports whether tok contains / or ., isn't purely numeric,
// and isn't a flag-like UPPER_SNAKE token.
func looksLikePath(tok string) bool {
	if tok == "" || isNumberLike(tok) || isFlagLike(tok) {
		return false
	}
	return strings.ContainsAny(tok, "/.")
}

func isNumberLike(tok string) bool {
	if tok == "" {
		return false
	}
	for _, c := range tok {
		if (c < '0' || c > '9') && c != '.' && c != '-' {
			return false
		}
	}
	return true
}

func isFlagLike(tok string) bool {
	if tok == "" {
		return false
	}
	for _, c := range tok {
		if !(c >= 'A' && c <= 'Z') && c != '_' {
			return false
		}
	}
	return true
}

// extractPID splits a trailing "name.pid" process column, after stripping
// any numeric wait-prefix ("123  W  name.pid").
func extractPID(col string) (name string, pid int, ok bool) {
	col = stripWaitPrefix(col)
	idx := strings.LastIndex(col, ".")
	if idx < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(col[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return col[:idx], n, true
}
