// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// Package rawconn provides the byte-level socket capability the
// handshake and framing layers are written against, plus its production
// Unix domain socket implementation.
//
// [Socket] is the capability interface: send and receive with optional
// file descriptors as ancillary data, plus a pollable descriptor for
// readiness waits. The handshake package depends only on this
// interface, so tests can substitute an in-memory loopback pair.
//
// [UnixSocket] implements Socket over a raw AF_UNIX stream descriptor
// using golang.org/x/sys/unix: sendmsg/recvmsg with SCM_RIGHTS for fd
// passing. [DialUnix], [Socketpair], and [UnixListener] cover the ways
// a descriptor enters the process. [UnixSocket.PeerCredentials] reads
// SO_PEERCRED so an accepting server knows which uid to expect from
// the authentication exchange.
//
// [Wait] blocks on poll(2) until a descriptor is readable or writable.
// It is the readiness primitive behind the handshake package's blocking
// driver. EINTR is returned to the caller, not retried: whether a
// signal should abort or resume an operation is the caller's policy.
//
// [Connection] is the thin post-handshake wrapper that takes ownership
// of the socket once authentication completes; the binary message
// framing layer builds on it.
package rawconn
