// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package guid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// rawLength is the identifier size in bytes; the textual form is twice
// that in hex characters.
const rawLength = 16

// Guid identifies one running bus server instance. The zero value is
// not a valid identifier; obtain one from [Parse] or [Generate].
type Guid struct {
	value string
}

// Parse validates and wraps the textual form of an identifier: exactly
// 32 hex characters. Uppercase hex is rejected — the wire form is
// defined as lowercase and the identifier is compared textually.
func Parse(s string) (Guid, error) {
	if len(s) != 2*rawLength {
		return Guid{}, fmt.Errorf("bus guid must be %d characters, got %d", 2*rawLength, len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Guid{}, fmt.Errorf("bus guid contains non-hex character %q at index %d", c, i)
		}
	}
	return Guid{value: s}, nil
}

// Generate creates a fresh identifier: 12 random bytes followed by the
// current Unix time as 4 big-endian bytes.
func Generate() Guid {
	var raw [rawLength]byte
	if _, err := rand.Read(raw[:12]); err != nil {
		// crypto/rand on supported platforms does not fail; treat a
		// failure as unrecoverable rather than handing out a guessable
		// identifier.
		panic(fmt.Sprintf("reading random bytes for bus guid: %v", err))
	}
	binary.BigEndian.PutUint32(raw[12:], uint32(time.Now().Unix()))
	return Guid{value: hex.EncodeToString(raw[:])}
}

// String returns the canonical 32-character textual form.
func (g Guid) String() string {
	return g.value
}

// IsZero reports whether g is the zero value rather than a parsed or
// generated identifier.
func (g Guid) IsZero() bool {
	return g.value == ""
}
