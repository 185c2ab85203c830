// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package rawconn

// Connection is an authenticated bus connection. The handshake layer
// creates one — transferring ownership of the socket into it — the
// moment the line-oriented authentication exchange ends and the stream
// switches to binary message framing. The framing layer reads and
// writes through [Connection.Socket].
type Connection struct {
	socket Socket
}

// Wrap takes ownership of socket and returns the connection around it.
func Wrap(socket Socket) *Connection {
	return &Connection{socket: socket}
}

// Socket returns the underlying socket capability.
func (c *Connection) Socket() Socket {
	return c.socket
}
