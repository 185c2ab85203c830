// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package rawconn

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// listenBacklog is the pending-connection queue depth for Unix domain
// listeners. A bus server accepts promptly; a short queue suffices.
const listenBacklog = 16

// UnixListener accepts connections on a Unix domain socket path.
type UnixListener struct {
	fd   int
	path string
}

// ListenUnix binds and listens on the Unix domain socket at path. The
// path must not already exist; stale socket files are the caller's
// problem to detect and remove, since unlinking blindly could steal a
// live server's address.
func ListenUnix(path string) (*UnixListener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating unix socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding to %s: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return &UnixListener{fd: fd, path: path}, nil
}

// Accept waits for and returns the next inbound connection.
func (l *UnixListener) Accept() (*UnixSocket, error) {
	fd, _, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("accepting on %s: %w", l.path, err)
	}
	return &UnixSocket{fd: fd}, nil
}

// Fd returns the listening descriptor for polling.
func (l *UnixListener) Fd() int {
	return l.fd
}

// Close stops the listener and removes the socket file.
func (l *UnixListener) Close() error {
	err := unix.Close(l.fd)
	if removeErr := os.Remove(l.path); err == nil {
		err = removeErr
	}
	return err
}
