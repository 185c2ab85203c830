// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// wirebus-probe connects to a bus server's Unix socket, authenticates
// with the EXTERNAL mechanism as the current user, and reports the
// outcome of the handshake: the server's guid and whether file
// descriptor passing was negotiated.
//
// Usage:
//
//	wirebus-probe --socket /run/wirebus/bus.sock
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

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

	flagSet := pflag.NewFlagSet("wirebus-probe", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "path to the bus server's Unix socket")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if socketPath == "" {
		return fmt.Errorf("--socket is required")
	}

	socket, err := rawconn.DialUnix(socketPath)
	if err != nil {
		return err
	}
	defer socket.Close()

	initialized, err := handshake.NewClient(socket).BlockingFinish()
	if err != nil {
		return fmt.Errorf("handshake with %s: %w", socketPath, err)
	}

	fmt.Printf("authenticated to %s\n", socketPath)
	fmt.Printf("server guid: %s\n", initialized.ServerGuid)
	fmt.Printf("fd passing:  %v\n", initialized.CapUnixFd)
	return nil
}
