// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"testing"

	"golang.org/x/sys/unix"
)

// memorySocket is one end of an in-memory loopback pair implementing
// rawconn.Socket. It models a non-blocking socket: reads on an empty
// inbox and writes while blocked report EAGAIN. Tests drive both ends
// from a single goroutine, so no locking is needed.
type memorySocket struct {
	peer *memorySocket

	// inbox holds bytes sent by the peer and not yet read.
	inbox []byte

	// sent records every payload byte the socket ever accepted, in
	// order. A byte appears here exactly once per accepted write, so
	// comparing sent against the expected wire transcript catches both
	// duplicated and dropped bytes across would-block resumptions.
	sent []byte

	// writeLimit caps how many bytes one Sendmsg call accepts,
	// forcing partial writes. Zero means unlimited.
	writeLimit int

	// writeBlocked makes every Sendmsg report EAGAIN until cleared.
	writeBlocked bool
}

// newLoopbackPair returns two connected memory sockets.
func newLoopbackPair() (*memorySocket, *memorySocket) {
	a := &memorySocket{}
	b := &memorySocket{}
	a.peer, b.peer = b, a
	return a, b
}

func (s *memorySocket) Sendmsg(payload []byte, fds []int) (int, error) {
	if s.writeBlocked {
		return 0, unix.EAGAIN
	}
	accepted := len(payload)
	if s.writeLimit > 0 && accepted > s.writeLimit {
		accepted = s.writeLimit
	}
	s.sent = append(s.sent, payload[:accepted]...)
	s.peer.inbox = append(s.peer.inbox, payload[:accepted]...)
	return accepted, nil
}

func (s *memorySocket) Recvmsg(buffer []byte) (int, []int, error) {
	if len(s.inbox) == 0 {
		return 0, nil, unix.EAGAIN
	}
	read := copy(buffer, s.inbox)
	s.inbox = s.inbox[read:]
	return read, nil, nil
}

// Fd panics: memory sockets are for cooperative single-goroutine
// tests, which never reach the poll-based blocking driver.
func (s *memorySocket) Fd() int {
	panic("memorySocket has no pollable descriptor")
}

// takeInbox drains and returns everything the peer has sent so far.
func (s *memorySocket) takeInbox() string {
	data := string(s.inbox)
	s.inbox = nil
	return data
}

// advanceUntilBlocked calls Advance and requires it to stop on
// would-block (the machine is waiting for the remote end).
func advanceUntilBlocked(t *testing.T, advance func() error) {
	t.Helper()
	err := advance()
	if err == nil {
		t.Fatal("Advance completed; expected it to block waiting for the peer")
	}
	if !IsWouldBlock(err) {
		t.Fatalf("Advance failed: %v", err)
	}
}

// driveToCompletion alternates Advance on both machines of a loopback
// pair until both report success, failing on any non-would-block error.
func driveToCompletion(t *testing.T, client *ClientHandshake, server *ServerHandshake) {
	t.Helper()
	for range 100 {
		clientErr := client.Advance()
		serverErr := server.Advance()
		if clientErr == nil && serverErr == nil {
			return
		}
		for _, err := range []error{clientErr, serverErr} {
			if err != nil && !IsWouldBlock(err) {
				t.Fatalf("handshake failed: %v", err)
			}
		}
	}
	t.Fatal("handshake did not complete after 100 rounds")
}
