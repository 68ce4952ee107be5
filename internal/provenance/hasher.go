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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// hashBufSize is the streaming read buffer size; 8 KiB is sufficient and
// keeps memory use flat regardless of file size.
const hashBufSize = 8 * 1024

// HashFile streams path through SHA-256 and returns the lowercase hex
// digest. It never aborts the run: any open or read failure yields the
// empty string, which the assembler treats as "unable to hash."
func HashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashString returns the lowercase hex SHA-256 digest of input, used for
// the activity id (see Assemble).
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
