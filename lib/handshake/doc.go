// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// Package handshake implements the line-oriented authentication
// exchange that precedes binary message framing on a bus connection.
//
// Two independent state machines drive the two ends of the protocol:
// [ClientHandshake] for the connecting peer and [ServerHandshake] for
// the accepting peer. Each is an explicit step enumeration over a
// single reusable byte buffer, which is what makes the machines safe
// to suspend and resume: when the underlying socket is non-blocking,
// Advance returns the platform would-block error with the current step
// and buffer exactly as needed to continue later — partial writes have
// drained the front of the buffer, partial reads have accumulated into
// it, and no byte is ever dropped or repeated across the suspension.
//
// The exchange authenticates the client with the EXTERNAL mechanism
// (the uid the transport already vouches for, re-stated in hex-of-
// decimal-digits form), hands the client the server's bus guid, and
// optionally negotiates file descriptor passing. The server tolerates
// rejected and malformed authentication indefinitely — REJECTED and
// "ERROR Unsupported command" replies loop back to the waiting state —
// while a non-NUL first byte or a BEGIN before authentication is a
// fatal [ProtocolError].
//
// Callers on a blocking socket use [ClientHandshake.BlockingFinish] or
// [ServerHandshake.BlockingFinish], which loop Advance with poll-based
// readiness waits. Non-blocking callers loop Advance themselves,
// consulting [IsWouldBlock], and call TryFinish once Advance succeeds
// to convert the machine into its [InitializedClient] or
// [InitializedServer] result, transferring socket ownership into a
// [rawconn.Connection].
//
// The package never closes the socket: on a fatal error ownership
// stays with the caller, and on success it moves into the result.
package handshake
