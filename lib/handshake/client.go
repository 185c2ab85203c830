// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/wirebus/wirebus/lib/guid"
	"github.com/wirebus/wirebus/lib/rawconn"
)

// clientStep is the client machine's program counter. Every step is
// statically either a "compose then send" or an "await one line" step;
// that static classification is what lets BlockingFinish pick the poll
// direction after a would-block.
type clientStep int

const (
	clientInit clientStep = iota
	clientSendingAuth
	clientWaitAuthReply
	clientSendingNegotiateFd
	clientWaitNegotiateFdReply
	clientSendingBegin
	clientDone
)

// ClientHandshake drives the connecting peer's half of the
// authentication exchange. Construct with [NewClient], call Advance
// until it returns nil (or loop through BlockingFinish), then convert
// with TryFinish. A ClientHandshake is owned by a single goroutine;
// it performs no locking.
type ClientHandshake struct {
	socket     rawconn.Socket
	buffer     []byte
	step       clientStep
	serverGuid guid.Guid
	capUnixFd  bool
}

// InitializedClient is the result of a completed client handshake.
type InitializedClient struct {
	// Conn is the authenticated connection, now owning the socket.
	// The stream past this point is binary message frames.
	Conn *rawconn.Connection

	// ServerGuid identifies the server instance the client reached.
	ServerGuid guid.Guid

	// CapUnixFd reports whether the server agreed to carry file
	// descriptors alongside message bytes.
	CapUnixFd bool
}

// NewClient starts a client handshake on the given socket. The
// handshake authenticates as the current process's uid, which is the
// identity the transport already vouches for on a Unix domain socket.
func NewClient(socket rawconn.Socket) *ClientHandshake {
	return &ClientHandshake{
		socket: socket,
		step:   clientInit,
	}
}

// Advance runs the state machine as far as the socket allows. It
// returns nil once the handshake is complete (and is a no-op success
// thereafter). On a non-blocking socket it may instead return a
// would-block error — see [IsWouldBlock] — with all progress
// preserved, so calling Advance again later resumes mid-step. Any
// other error is fatal: a *ProtocolError for grammar violations or
// the transport failure from the socket.
func (h *ClientHandshake) Advance() error {
	for {
		switch h.step {
		case clientInit:
			// The NUL byte is the mandatory first byte of the
			// connection; it travels in front of the AUTH line so
			// both flush together.
			uid := encodeUid(uint32(os.Getuid()))
			h.buffer = []byte("\x00AUTH EXTERNAL " + uid + "\r\n")
			h.step = clientSendingAuth

		case clientSendingAuth:
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = clientWaitAuthReply

		case clientWaitAuthReply:
			if err := readLine(h.socket, &h.buffer); err != nil {
				return err
			}
			reply := firstLine(h.buffer)
			words := strings.Fields(reply)
			if len(words) != 2 || words[0] != "OK" {
				return protocolErrorf("unexpected AUTH reply %q", reply)
			}
			serverGuid, err := guid.Parse(words[1])
			if err != nil {
				return protocolErrorf("server guid in AUTH reply: %v", err)
			}
			h.serverGuid = serverGuid
			h.buffer = []byte("NEGOTIATE_UNIX_FD\r\n")
			h.step = clientSendingNegotiateFd

		case clientSendingNegotiateFd:
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = clientWaitNegotiateFdReply

		case clientWaitNegotiateFdReply:
			if err := readLine(h.socket, &h.buffer); err != nil {
				return err
			}
			// A bare ERROR here means "fd passing declined", not a
			// failure; the server's other ERROR lines mean something
			// else entirely and are handled by the server machine.
			switch {
			case bytes.HasPrefix(h.buffer, []byte("AGREE_UNIX_FD")):
				h.capUnixFd = true
			case bytes.HasPrefix(h.buffer, []byte("ERROR")):
				h.capUnixFd = false
			default:
				return protocolErrorf("unexpected UNIX_FD negotiation reply %q", firstLine(h.buffer))
			}
			h.buffer = []byte("BEGIN\r\n")
			h.step = clientSendingBegin

		case clientSendingBegin:
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = clientDone

		case clientDone:
			return nil
		}
	}
}

// TryFinish converts a completed handshake into its result,
// transferring socket ownership into the returned connection. If the
// machine has not reached its terminal step, it reports false and the
// handshake remains usable — keep calling Advance. The conversion
// happens at most once; subsequent calls report false.
func (h *ClientHandshake) TryFinish() (*InitializedClient, bool) {
	if h.step != clientDone || h.socket == nil {
		return nil, false
	}
	initialized := &InitializedClient{
		Conn:       rawconn.Wrap(h.socket),
		ServerGuid: h.serverGuid,
		CapUnixFd:  h.capUnixFd,
	}
	h.socket = nil
	return initialized, true
}

// BlockingFinish drives the handshake to completion even on a
// non-blocking socket, parking the calling goroutine in poll(2)
// whenever Advance reports would-block. A failed readiness wait
// (including EINTR) aborts and surfaces to the caller. Any error other
// than would-block aborts immediately.
func (h *ClientHandshake) BlockingFinish() (*InitializedClient, error) {
	for {
		err := h.Advance()
		if err == nil {
			initialized, ok := h.TryFinish()
			if !ok {
				return nil, fmt.Errorf("client handshake already finalized")
			}
			return initialized, nil
		}
		if !IsWouldBlock(err) {
			return nil, err
		}

		var direction rawconn.Direction
		switch h.step {
		case clientSendingAuth, clientSendingNegotiateFd, clientSendingBegin:
			direction = rawconn.Writable
		case clientWaitAuthReply, clientWaitNegotiateFdReply:
			direction = rawconn.Readable
		default:
			// Init performs no I/O and Done never fails; neither can
			// be current when Advance reports would-block.
			panic(fmt.Sprintf("client handshake blocked in step %d", h.step))
		}
		if err := rawconn.Wait(h.socket.Fd(), direction); err != nil {
			return nil, err
		}
	}
}
