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

// Package provenance holds the platform-neutral data model shared by both
// tracer dialects: the syscall event produced by a line grammar, the
// per-path access record it accumulates into, and the final entity/activity
// payload an assembler builds from them.
package provenance

// Role is the per-access or per-entity classification of a file access.
type Role string

const (
	RoleInput   Role = "input"
	RoleOutput  Role = "output"
	RoleProcess Role = "process"
)

// roleRank orders the lattice input < process < output used to join an
// entity's role from its accesses (see JoinRole).
func roleRank(r Role) int {
	switch r {
	case RoleOutput:
		return 2
	case RoleProcess:
		return 1
	default:
		return 0
	}
}

// JoinRole computes an entity's derived role as the monotonic join over its
// accesses: any output promotes to output; otherwise any process promotes
// to process; otherwise input. Modeled as a pure function over the access
// slice rather than mutated in place as accesses arrive.
func JoinRole(accesses []FileAccess) Role {
	joined := RoleInput
	for _, a := range accesses {
		if roleRank(a.Role) > roleRank(joined) {
			joined = a.Role
		}
	}
	return joined
}

// SyscallEvent is the transient record a line grammar produces for one
// recognized tracer line. It is never retained past classification.
type SyscallEvent struct {
	Operation   string
	Path        string
	PID         int
	FlagTokens  string
	ExecveArgv  []string
	ReturnValue string
}

// FileAccess is one persistent access recorded against a path.
type FileAccess struct {
	Path     string                 `json:"-"`
	Role     Role                   `json:"role"`
	PID      int                    `json:"pid"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// FileRecord is the ordered sequence of accesses recorded against one
// normalized path. Accesses are appended in arrival order and never
// reordered or removed.
type FileRecord struct {
	Accesses []FileAccess
}
