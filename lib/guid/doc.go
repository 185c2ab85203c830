// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// Package guid implements the opaque identifier a message-bus server
// hands to clients during the authentication handshake. A client keeps
// the identifier so it can tell which server instance it reached; the
// bytes themselves carry no meaning for the client.
//
// The textual form is 32 lowercase hex characters encoding 16 bytes.
// [Generate] fills the first 12 bytes from crypto/rand and the last 4
// with the big-endian Unix timestamp at generation time, matching the
// reference bus implementation so identifiers from either side
// interoperate.
package guid
