// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Wirebus packages.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that tests coordinating
// goroutines over channels do not hang forever when the thing under
// test deadlocks.
//
// [SocketDir] creates a short-pathed temporary directory in /tmp for
// Unix domain socket files, since sun_path caps socket paths at 108
// bytes and test runners can nest TEST_TMPDIR well past that.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
