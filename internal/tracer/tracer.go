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

// Package tracer defines the common capability both dialect-specific
// supervisors implement: spawn a target under a kernel tracer, and return
// the file accesses it captured together with the run's wall-clock window.
package tracer

import (
	"time"

	"github.com/anonymouse64/polytrace/internal/provenance"
)

// Debug switches on retention of temporary tracer output (cmd/polytrace
// also uses it to print its stderr summary). Set once by cmd/polytrace from
// the POLYTRACE_DEBUG environment variable before a Supervisor runs; the
// log level is raised separately, by logging.Configure.
var Debug bool

// Result is what a Supervisor returns after a traced run completes.
type Result struct {
	Store     *provenance.Store
	StartedAt time.Time
	EndedAt   time.Time
	TargetPID int
}

// Supervisor runs a target program under a kernel tracer, attributing the
// tracer's output to the target's process tree.
type Supervisor interface {
	Run(argv []string) (*Result, error)
}
