// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package rawconn

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// Compile-time interface check.
var _ Socket = (*UnixSocket)(nil)

// maxFdsPerMessage bounds how many file descriptors a single recvmsg
// accepts as ancillary data. The handshake never carries descriptors;
// the framing layer sends a handful at most per message.
const maxFdsPerMessage = 16

// Socket is the byte-stream capability the handshake and framing
// layers are written against. Implementations carry optional file
// descriptors alongside payload bytes and expose a descriptor for
// readiness polling.
//
// On a non-blocking socket, Sendmsg and Recvmsg return the platform
// would-block errno (classified by handshake.IsWouldBlock) when the
// operation cannot make progress.
type Socket interface {
	// Sendmsg writes payload bytes, attaching fds as ancillary data.
	// Returns the number of payload bytes written, which may be less
	// than len(payload).
	Sendmsg(payload []byte, fds []int) (int, error)

	// Recvmsg reads into buffer and collects any file descriptors
	// received as ancillary data. Returns io.EOF when the peer has
	// closed the stream.
	Recvmsg(buffer []byte) (int, []int, error)

	// Fd returns the descriptor to poll for readiness.
	Fd() int
}

// UnixSocket implements [Socket] over a raw AF_UNIX stream descriptor.
// It owns the descriptor: Close releases it.
type UnixSocket struct {
	fd int
}

// NewUnixSocket wraps an existing connected AF_UNIX stream descriptor.
// Ownership of the descriptor transfers to the returned socket.
func NewUnixSocket(fd int) *UnixSocket {
	return &UnixSocket{fd: fd}
}

// DialUnix connects to the Unix domain socket at path.
func DialUnix(path string) (*UnixSocket, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating unix socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return &UnixSocket{fd: fd}, nil
}

// Socketpair returns two connected AF_UNIX stream sockets. The pair is
// the loopback transport used by integration tests and by callers that
// hand one end to a child process.
func Socketpair() (*UnixSocket, *UnixSocket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return &UnixSocket{fd: fds[0]}, &UnixSocket{fd: fds[1]}, nil
}

// Sendmsg writes payload, encoding fds as an SCM_RIGHTS control
// message when present.
func (s *UnixSocket) Sendmsg(payload []byte, fds []int) (int, error) {
	var control []byte
	if len(fds) > 0 {
		control = unix.UnixRights(fds...)
	}
	n, err := unix.SendmsgN(s.fd, payload, control, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("sendmsg: %w", err)
	}
	return n, nil
}

// Recvmsg reads into buffer and decodes any SCM_RIGHTS control
// messages into descriptors. Received descriptors have close-on-exec
// set. A zero-byte read on a non-empty buffer reports io.EOF.
func (s *UnixSocket) Recvmsg(buffer []byte) (int, []int, error) {
	control := make([]byte, unix.CmsgSpace(maxFdsPerMessage*4))
	n, controlLen, _, _, err := unix.Recvmsg(s.fd, buffer, control, unix.MSG_CMSG_CLOEXEC)
	if err != nil {
		return 0, nil, fmt.Errorf("recvmsg: %w", err)
	}
	if n == 0 && len(buffer) > 0 {
		return 0, nil, io.EOF
	}

	var fds []int
	if controlLen > 0 {
		messages, err := unix.ParseSocketControlMessage(control[:controlLen])
		if err != nil {
			return n, nil, fmt.Errorf("parsing control messages: %w", err)
		}
		for _, message := range messages {
			rights, err := unix.ParseUnixRights(&message)
			if err != nil {
				// Not SCM_RIGHTS (e.g. credentials); skip.
				continue
			}
			fds = append(fds, rights...)
		}
	}
	return n, fds, nil
}

// Fd returns the underlying descriptor for polling.
func (s *UnixSocket) Fd() int {
	return s.fd
}

// SetNonblock switches the descriptor between blocking and
// non-blocking mode.
func (s *UnixSocket) SetNonblock(nonblock bool) error {
	if err := unix.SetNonblock(s.fd, nonblock); err != nil {
		return fmt.Errorf("setting nonblock=%v: %w", nonblock, err)
	}
	return nil
}

// Close releases the descriptor.
func (s *UnixSocket) Close() error {
	return unix.Close(s.fd)
}

// Credentials identifies the process on the other end of a Unix
// domain socket, as reported by the kernel. The kernel fills these in
// at connect time; the peer cannot forge them.
type Credentials struct {
	Pid int32
	Uid uint32
	Gid uint32
}

// PeerCredentials reads the connected peer's credentials via
// SO_PEERCRED. This is how an accepting server learns which uid the
// authentication handshake must verify against.
func (s *UnixSocket) PeerCredentials() (Credentials, error) {
	ucred, err := unix.GetsockoptUcred(s.fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return Credentials{}, fmt.Errorf("getsockopt SO_PEERCRED: %w", err)
	}
	return Credentials{Pid: ucred.Pid, Uid: ucred.Uid, Gid: ucred.Gid}, nil
}
