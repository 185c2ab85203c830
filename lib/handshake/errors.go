// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ProtocolError reports input that breaks the handshake grammar
// irrecoverably: a non-NUL first byte, an unparsable AUTH or UNIX_FD
// reply, a BEGIN before authentication. It is always fatal — the state
// machine makes no attempt to recover and the caller should tear down
// the connection. Callers can extract it with errors.As:
//
//	var protocolErr *ProtocolError
//	if errors.As(err, &protocolErr) { ... }
//
// Authentication rejection and unsupported commands on the server side
// are not protocol errors; they are legal retry branches of the
// exchange and never surface from Advance at all.
type ProtocolError struct {
	// Reason is the human-readable description of the violation.
	Reason string
}

func (e *ProtocolError) Error() string {
	return "handshake: " + e.Reason
}

// protocolErrorf builds a *ProtocolError from a format string.
func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is (or wraps) a fatal handshake
// protocol violation, as opposed to a transport failure.
func IsProtocolError(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}

// IsWouldBlock reports whether err is the non-blocking socket "no
// progress possible right now" condition rather than a real failure.
// The blocking drivers inspect it to decide between a readiness wait
// and aborting; callers running their own event loop do the same.
// EWOULDBLOCK aliases EAGAIN on every platform the bus runs on.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}
