// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"os"
	"testing"
	"time"

	"github.com/wirebus/wirebus/lib/guid"
	"github.com/wirebus/wirebus/lib/rawconn"
	"github.com/wirebus/wirebus/lib/testutil"
)

// TestBlockingFinish_Socketpair drives both blocking drivers over a
// real non-blocking socketpair, exercising the poll-based readiness
// waits end to end.
func TestBlockingFinish_Socketpair(t *testing.T) {
	clientSocket, serverSocket, err := rawconn.Socketpair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		clientSocket.Close()
		serverSocket.Close()
	})
	for _, socket := range []*rawconn.UnixSocket{clientSocket, serverSocket} {
		if err := socket.SetNonblock(true); err != nil {
			t.Fatalf("setting nonblock: %v", err)
		}
	}

	serverGuid := guid.Generate()
	clientResults := make(chan *InitializedClient, 1)
	serverResults := make(chan *InitializedServer, 1)
	failures := make(chan error, 2)

	go func() {
		initialized, err := NewClient(clientSocket).BlockingFinish()
		if err != nil {
			failures <- err
			return
		}
		clientResults <- initialized
	}()
	go func() {
		initialized, err := NewServer(serverSocket, serverGuid, uint32(os.Getuid())).BlockingFinish()
		if err != nil {
			failures <- err
			return
		}
		serverResults <- initialized
	}()

	var initializedClient *InitializedClient
	var initializedServer *InitializedServer
	for initializedClient == nil || initializedServer == nil {
		select {
		case initializedClient = <-clientResults:
		case initializedServer = <-serverResults:
		case err := <-failures:
			t.Fatalf("blocking handshake failed: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("blocking handshake did not complete")
		}
	}

	if initializedClient.ServerGuid.String() != serverGuid.String() {
		t.Errorf("client guid %q, want %q", initializedClient.ServerGuid, serverGuid)
	}
	if !initializedClient.CapUnixFd || !initializedServer.CapUnixFd {
		t.Errorf("fd passing: client %v, server %v, want both true",
			initializedClient.CapUnixFd, initializedServer.CapUnixFd)
	}
}

// TestBlockingFinish_WrongUid verifies the failure path through the
// blocking driver: a server expecting a different uid keeps rejecting,
// and the client, which treats rejection as fatal, surfaces a protocol
// violation.
func TestBlockingFinish_WrongUid(t *testing.T) {
	clientSocket, serverSocket, err := rawconn.Socketpair()
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		clientSocket.Close()
		serverSocket.Close()
	})

	// An expected uid the client cannot match: the current uid plus
	// one, so AUTH EXTERNAL from this process is always rejected.
	go func() {
		// The server loops on rejection until the client gives up and
		// the socket closes; the error (EOF after client teardown) is
		// irrelevant here.
		server := NewServer(serverSocket, guid.Generate(), uint32(os.Getuid()+1))
		server.BlockingFinish()
	}()

	clientErrors := make(chan error, 1)
	go func() {
		_, err := NewClient(clientSocket).BlockingFinish()
		clientErrors <- err
	}()

	err = testutil.RequireReceive(t, clientErrors, 5*time.Second, "waiting for client failure")
	if err == nil {
		t.Fatal("client completed against a rejecting server")
	}
	if !IsProtocolError(err) {
		t.Errorf("client error %v is not a protocol violation", err)
	}
}
