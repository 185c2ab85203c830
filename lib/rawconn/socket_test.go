// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package rawconn

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// newTestSocketpair returns a connected pair with cleanup registered.
func newTestSocketpair(t *testing.T) (*UnixSocket, *UnixSocket) {
	t.Helper()
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// TestUnixSocket_Roundtrip sends payload bytes one way and reads them
// back on the other end.
func TestUnixSocket_Roundtrip(t *testing.T) {
	a, b := newTestSocketpair(t)

	payload := []byte("\x00AUTH EXTERNAL 31303030\r\n")
	written, err := a.Sendmsg(payload, nil)
	if err != nil {
		t.Fatalf("Sendmsg: %v", err)
	}
	if written != len(payload) {
		t.Fatalf("short write: %d of %d bytes", written, len(payload))
	}

	buffer := make([]byte, 64)
	read, fds, err := b.Recvmsg(buffer)
	if err != nil {
		t.Fatalf("Recvmsg: %v", err)
	}
	if !bytes.Equal(buffer[:read], payload) {
		t.Errorf("received %q, want %q", buffer[:read], payload)
	}
	if len(fds) != 0 {
		t.Errorf("received %d unexpected fds", len(fds))
	}
}

// TestUnixSocket_FdPassing passes an open file descriptor as ancillary
// data and reads the original file's content through the received
// descriptor.
func TestUnixSocket_FdPassing(t *testing.T) {
	a, b := newTestSocketpair(t)

	path := filepath.Join(t.TempDir(), "payload")
	content := []byte("ancillary cargo")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing payload file: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening payload file: %v", err)
	}
	defer file.Close()

	if _, err := a.Sendmsg([]byte{'F'}, []int{int(file.Fd())}); err != nil {
		t.Fatalf("Sendmsg with fd: %v", err)
	}

	buffer := make([]byte, 8)
	_, fds, err := b.Recvmsg(buffer)
	if err != nil {
		t.Fatalf("Recvmsg: %v", err)
	}
	if len(fds) != 1 {
		t.Fatalf("received %d fds, want 1", len(fds))
	}
	received := os.NewFile(uintptr(fds[0]), "received")
	defer received.Close()

	got, err := io.ReadAll(received)
	if err != nil {
		t.Fatalf("reading through received fd: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("read %q through received fd, want %q", got, content)
	}
}

// TestUnixSocket_EOF verifies that a closed peer surfaces as io.EOF,
// not a zero-byte success.
func TestUnixSocket_EOF(t *testing.T) {
	a, b, err := Socketpair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	a.Close()
	buffer := make([]byte, 16)
	if _, _, err := b.Recvmsg(buffer); !errors.Is(err, io.EOF) {
		t.Errorf("Recvmsg after peer close: %v, want io.EOF", err)
	}
}

// TestUnixSocket_NonblockEmptyRead verifies the would-block errno on
// an empty non-blocking socket.
func TestUnixSocket_NonblockEmptyRead(t *testing.T) {
	_, b := newTestSocketpair(t)
	if err := b.SetNonblock(true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}

	buffer := make([]byte, 16)
	if _, _, err := b.Recvmsg(buffer); !errors.Is(err, unix.EAGAIN) {
		t.Errorf("Recvmsg on empty nonblocking socket: %v, want EAGAIN", err)
	}
}

// TestUnixSocket_PeerCredentials verifies SO_PEERCRED reports this
// process's own identity across a socketpair.
func TestUnixSocket_PeerCredentials(t *testing.T) {
	a, _ := newTestSocketpair(t)

	credentials, err := a.PeerCredentials()
	if err != nil {
		t.Fatalf("PeerCredentials: %v", err)
	}
	if credentials.Uid != uint32(os.Getuid()) {
		t.Errorf("peer uid = %d, want %d", credentials.Uid, os.Getuid())
	}
	if credentials.Gid != uint32(os.Getgid()) {
		t.Errorf("peer gid = %d, want %d", credentials.Gid, os.Getgid())
	}
	if credentials.Pid != int32(os.Getpid()) {
		t.Errorf("peer pid = %d, want %d", credentials.Pid, os.Getpid())
	}
}

// TestConnection_Wrap verifies ownership transfer into the
// post-handshake connection wrapper.
func TestConnection_Wrap(t *testing.T) {
	a, _ := newTestSocketpair(t)
	connection := Wrap(a)
	if connection.Socket() != Socket(a) {
		t.Error("Connection does not return the wrapped socket")
	}
}
