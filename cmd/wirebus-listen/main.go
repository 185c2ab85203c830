// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// wirebus-listen binds a Unix socket, accepts connections, and serves
// the bus authentication handshake on each. The expected identity for
// each connection comes from the kernel's SO_PEERCRED, so only the
// connecting process's real uid authenticates. Connections are served
// one at a time; each completed or failed handshake is reported on
// stdout. Intended for protocol debugging against wirebus-probe or any
// bus client.
//
// Usage:
//
//	wirebus-listen --socket /run/wirebus/bus.sock [--once]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/wirebus/wirebus/lib/guid"
	"github.com/wirebus/wirebus/lib/handshake"
	"github.com/wirebus/wirebus/lib/rawconn"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var socketPath string
	var once bool

	flagSet := pflag.NewFlagSet("wirebus-listen", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket path to listen on")
	flagSet.BoolVar(&once, "once", false, "exit after the first connection")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if socketPath == "" {
		return fmt.Errorf("--socket is required")
	}

	listener, err := rawconn.ListenUnix(socketPath)
	if err != nil {
		return err
	}
	defer listener.Close()

	serverGuid := guid.Generate()
	fmt.Printf("listening on %s as %s\n", socketPath, serverGuid)

	for {
		socket, err := listener.Accept()
		if err != nil {
			return err
		}
		serveConnection(socket, serverGuid)
		if once {
			return nil
		}
	}
}

// serveConnection runs one handshake to completion and reports the
// outcome. A handshake failure only tears down this connection, never
// the listener.
func serveConnection(socket *rawconn.UnixSocket, serverGuid guid.Guid) {
	defer socket.Close()

	credentials, err := socket.PeerCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rejecting connection: %v\n", err)
		return
	}

	initialized, err := handshake.NewServer(socket, serverGuid, credentials.Uid).BlockingFinish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake with pid %d failed: %v\n", credentials.Pid, err)
		return
	}

	fmt.Printf("authenticated uid %d (pid %d), fd passing: %v\n",
		credentials.Uid, credentials.Pid, initialized.CapUnixFd)
}
