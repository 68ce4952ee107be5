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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entity is one payload leaf: a file observed during the run.
type Entity struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Role     Role           `json:"role"`
	Metadata EntityMetadata `json:"metadata"`
	// ModifiedAt is the file's last-write time; the JSON field name
	// "createdAt" is preserved from the original payload even though the
	// value is really a modification time (see SPEC_FULL.md Open Question 2).
	ModifiedAt int64 `json:"createdAt"`
}

// EntityMetadata carries the normalized path and the raw access log.
type EntityMetadata struct {
	Path     string       `json:"path"`
	Accesses []FileAccess `json:"accesses"`
}

// Activity is the payload root sibling describing the run itself.
type Activity struct {
	ID        string           `json:"id"`
	Label     string           `json:"label"`
	StartedAt int64            `json:"startedAt"`
	EndedAt   int64            `json:"endedAt"`
	Metadata  ActivityMetadata `json:"metadata"`
}

// ActivityMetadata carries the traced command and any paths that could not
// be hashed.
type ActivityMetadata struct {
	Command          []string `json:"command"`
	FilesWithoutHash []string `json:"filesWithoutHash,omitempty"`
}

// Payload is the full provenance document: a graph of entities and the one
// activity that produced them.
type Payload struct {
	Entities []Entity `json:"entities"`
	Activity Activity `json:"activity"`
}

// Assemble joins store with file hashes and the run's wall-clock window
// into the final payload, per the four-step contract:
//  1. synthesize a process entry for the target if none was observed,
//  2. hash and classify every recorded path into an Entity (skipping
//     suppressed paths; a path that can't be hashed still gets an Entity,
//     with an empty id, and is listed in filesWithoutHash),
//  3. build the Activity record,
//  4. return the pair.
func Assemble(store *Store, argv []string, startedAt, endedAt time.Time, targetPID int) Payload {
	targetExe := Normalize(argv[0])

	if rec, ok := store.Get(targetExe); !ok || !hasProcessAccess(rec) {
		store.Record(targetExe, FileAccess{
			Role:     RoleProcess,
			PID:      targetPID,
			Metadata: map[string]interface{}{"execve_argv": argv[1:]},
		}, targetExe)
	}

	var entities []Entity
	var filesWithoutHash []string

	for _, path := range store.Paths() {
		if IsSuppressed(path) {
			continue
		}
		rec, _ := store.Get(path)

		info, err := os.Lstat(path)
		regular := err == nil && info.Mode().IsRegular()

		var id string
		var modifiedAt int64
		if !regular {
			filesWithoutHash = append(filesWithoutHash, path)
		} else {
			id = HashFile(path)
			modifiedAt = info.ModTime().UnixNano() / int64(time.Millisecond)
			if id == "" {
				filesWithoutHash = append(filesWithoutHash, path)
			}
		}
		if modifiedAt == 0 {
			modifiedAt = time.Now().UnixNano() / int64(time.Millisecond)
		}

		entities = append(entities, Entity{
			ID:    id,
			Label: label(path),
			Role:  JoinRole(rec.Accesses),
			Metadata: EntityMetadata{
				Path:     path,
				Accesses: rec.Accesses,
			},
			ModifiedAt: modifiedAt,
		})
	}

	sort.Strings(filesWithoutHash)

	activity := Activity{
		ID:        activityID(argv, startedAt, endedAt),
		Label:     "Run " + argv[0],
		StartedAt: startedAt.UnixNano() / int64(time.Millisecond),
		EndedAt:   endedAt.UnixNano() / int64(time.Millisecond),
		Metadata: ActivityMetadata{
			Command:          argv,
			FilesWithoutHash: filesWithoutHash,
		},
	}

	return Payload{Entities: entities, Activity: activity}
}

func hasProcessAccess(rec *FileRecord) bool {
	for _, a := range rec.Accesses {
		if a.Role == RoleProcess {
			return true
		}
	}
	return false
}

func label(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return path
	}
	return base
}

// activityID hashes the space-joined target argv (program and its
// arguments) plus a trailing space, concatenated directly with
// the two millisecond timestamps, with no separator between them. This is
// almost certainly a bug (see SPEC_FULL.md Open Question 3: it permits
// collisions between e.g. (start=12, end=34) and (start=1, end=234)) but
// the id is opaque to consumers and must be preserved for payload-id
// compatibility with anything already keyed on it.
func activityID(argv []string, startedAt, endedAt time.Time) string {
	startedMs := startedAt.UnixNano() / int64(time.Millisecond)
	endedMs := endedAt.UnixNano() / int64(time.Millisecond)
	input := strings.Join(argv, " ") + " " + strconv.FormatInt(startedMs, 10) + strconv.FormatInt(endedMs, 10)
	return HashString(input)
}
