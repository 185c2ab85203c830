// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package rawconn

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Direction selects which readiness condition [Wait] blocks on.
type Direction int

const (
	// Readable waits until a read would make progress.
	Readable Direction = iota
	// Writable waits until a write would make progress.
	Writable
)

// String names the direction for error messages.
func (d Direction) String() string {
	switch d {
	case Readable:
		return "readable"
	case Writable:
		return "writable"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Wait blocks on poll(2) until fd is ready in the given direction,
// with no timeout. EINTR is returned, not retried: a caller blocked in
// a handshake must get to decide whether a signal aborts the wait.
func Wait(fd int, direction Direction) error {
	events := int16(unix.POLLIN)
	if direction == Writable {
		events = unix.POLLOUT
	}
	descriptors := []unix.PollFd{{Fd: int32(fd), Events: events}}
	if _, err := unix.Poll(descriptors, -1); err != nil {
		return fmt.Errorf("polling fd %d for %s: %w", fd, direction, err)
	}
	return nil
}
