// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"fmt"
	"strings"

	"github.com/wirebus/wirebus/lib/guid"
	"github.com/wirebus/wirebus/lib/rawconn"
)

// serverStep is the server machine's program counter. The server has
// states the client never needs: rejection replies loop back to the
// waiting states instead of completing or failing, because a client is
// allowed to retry authentication for as long as it keeps the
// connection open.
type serverStep int

const (
	serverWaitingForNull serverStep = iota
	serverWaitingForAuth
	serverSendingAuthOk
	serverSendingAuthError
	serverWaitingForBegin
	serverSendingBeginReply
	serverDone
)

// ServerHandshake drives the accepting peer's half of the
// authentication exchange. Construct with [NewServer] — supplying the
// server's own guid and the uid the transport layer has established
// for the peer (SO_PEERCRED on a Unix socket) — then drive it like a
// [ClientHandshake]: Advance until nil, TryFinish, or BlockingFinish.
type ServerHandshake struct {
	socket      rawconn.Socket
	buffer      []byte
	step        serverStep
	serverGuid  guid.Guid
	capUnixFd   bool
	expectedUid uint32
}

// InitializedServer is the result of a completed server handshake.
type InitializedServer struct {
	// Conn is the authenticated connection, now owning the socket.
	Conn *rawconn.Connection

	// ServerGuid is this server's own identifier, as sent to the
	// client in the OK reply.
	ServerGuid guid.Guid

	// CapUnixFd reports whether the client asked for (and was
	// granted) file descriptor passing.
	CapUnixFd bool
}

// NewServer starts a server handshake on the given socket.
// expectedUid is the identity the client must authenticate as; a
// client claiming any other uid is rejected and may retry.
func NewServer(socket rawconn.Socket, serverGuid guid.Guid, expectedUid uint32) *ServerHandshake {
	return &ServerHandshake{
		socket:      socket,
		step:        serverWaitingForNull,
		serverGuid:  serverGuid,
		expectedUid: expectedUid,
	}
}

// Advance runs the state machine as far as the socket allows, with the
// same contract as [ClientHandshake.Advance]: nil means complete,
// would-block means suspended with all progress preserved, anything
// else is fatal. Rejected or malformed authentication is not an error;
// the machine replies and loops back to wait for another attempt.
func (h *ServerHandshake) Advance() error {
	for {
		switch h.step {
		case serverWaitingForNull:
			// The one read in the protocol that is not a line: the
			// connection's mandatory first byte.
			var first [1]byte
			if _, _, err := h.socket.Recvmsg(first[:]); err != nil {
				return err
			}
			if first[0] != 0 {
				return protocolErrorf("first byte from client is %#x, not NUL", first[0])
			}
			h.step = serverWaitingForAuth

		case serverWaitingForAuth:
			if err := readLine(h.socket, &h.buffer); err != nil {
				return err
			}
			words := strings.Fields(firstLine(h.buffer))
			switch {
			case len(words) == 3 && words[0] == "AUTH" && words[1] == "EXTERNAL":
				uid, err := decodeUid(words[2])
				if err != nil {
					return protocolErrorf("AUTH EXTERNAL: %v", err)
				}
				if uid == h.expectedUid {
					h.buffer = []byte("OK " + h.serverGuid.String() + "\r\n")
					h.step = serverSendingAuthOk
				} else {
					h.buffer = []byte("REJECTED EXTERNAL\r\n")
					h.step = serverSendingAuthError
				}
			case len(words) >= 1 && (words[0] == "AUTH" || words[0] == "ERROR"):
				// A malformed AUTH or a client-side ERROR: reject and
				// let the client try again.
				h.buffer = []byte("REJECTED EXTERNAL\r\n")
				h.step = serverSendingAuthError
			case len(words) == 1 && words[0] == "BEGIN":
				return protocolErrorf("received BEGIN before authentication completed")
			default:
				h.buffer = []byte("ERROR Unsupported command\r\n")
				h.step = serverSendingAuthError
			}

		case serverSendingAuthError:
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = serverWaitingForAuth

		case serverSendingAuthOk:
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = serverWaitingForBegin

		case serverWaitingForBegin:
			if err := readLine(h.socket, &h.buffer); err != nil {
				return err
			}
			words := strings.Fields(firstLine(h.buffer))
			switch {
			case len(words) == 1 && words[0] == "BEGIN":
				// No reply: BEGIN ends the text phase on the spot.
				h.step = serverDone
			case len(words) == 1 && words[0] == "CANCEL":
				h.buffer = []byte("REJECTED EXTERNAL\r\n")
				h.step = serverSendingAuthError
			case len(words) >= 1 && words[0] == "ERROR":
				h.buffer = []byte("REJECTED EXTERNAL\r\n")
				h.step = serverSendingAuthError
			case len(words) == 1 && words[0] == "NEGOTIATE_UNIX_FD":
				h.capUnixFd = true
				h.buffer = []byte("AGREE_UNIX_FD\r\n")
				h.step = serverSendingBeginReply
			default:
				h.buffer = []byte("ERROR Unsupported command\r\n")
				h.step = serverSendingBeginReply
			}

		case serverSendingBeginReply:
			// Back to waiting: the client may still send BEGIN (or
			// more negotiation) after a UNIX_FD reply.
			if err := flushOutbound(h.socket, &h.buffer); err != nil {
				return err
			}
			h.step = serverWaitingForBegin

		case serverDone:
			return nil
		}
	}
}

// TryFinish converts a completed handshake into its result,
// transferring socket ownership into the returned connection. Before
// the terminal step it reports false and leaves the machine usable.
// The conversion happens at most once.
func (h *ServerHandshake) TryFinish() (*InitializedServer, bool) {
	if h.step != serverDone || h.socket == nil {
		return nil, false
	}
	initialized := &InitializedServer{
		Conn:       rawconn.Wrap(h.socket),
		ServerGuid: h.serverGuid,
		CapUnixFd:  h.capUnixFd,
	}
	h.socket = nil
	return initialized, true
}

// BlockingFinish drives the handshake to completion even on a
// non-blocking socket, with the same contract as
// [ClientHandshake.BlockingFinish].
func (h *ServerHandshake) BlockingFinish() (*InitializedServer, error) {
	for {
		err := h.Advance()
		if err == nil {
			initialized, ok := h.TryFinish()
			if !ok {
				return nil, fmt.Errorf("server handshake already finalized")
			}
			return initialized, nil
		}
		if !IsWouldBlock(err) {
			return nil, err
		}

		var direction rawconn.Direction
		switch h.step {
		case serverSendingAuthOk, serverSendingAuthError, serverSendingBeginReply:
			direction = rawconn.Writable
		case serverWaitingForNull, serverWaitingForAuth, serverWaitingForBegin:
			direction = rawconn.Readable
		default:
			// Done never returns would-block.
			panic(fmt.Sprintf("server handshake blocked in step %d", h.step))
		}
		if err := rawconn.Wait(h.socket.Fd(), direction); err != nil {
			return nil, err
		}
	}
}
