// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package test provides privilege toggling helpers for tests that must run
// both as a regular user and as root.
package test

import (
	"os"
	"runtime"
	"syscall"
	"testing"
)

const (
	nobodyUID = 65534
	nobodyGID = 65534
)

var origUID, origGID = os.Getuid(), os.Getgid()

// DropPrivilege drops effective privileges to an unprivileged user when the
// test runs as root. The calling goroutine is pinned to its OS thread until
// ResetPrivilege is called.
func DropPrivilege(t *testing.T) {
	t.Helper()

	if origUID != 0 {
		return
	}

	runtime.LockOSThread()

	if err := syscall.Setegid(nobodyGID); err != nil {
		t.Fatalf("failed to set effective GID: %v", err)
	}
	if err := syscall.Seteuid(nobodyUID); err != nil {
		t.Fatalf("failed to set effective UID: %v", err)
	}
}

// ResetPrivilege restores the privileges dropped by DropPrivilege.
func ResetPrivilege(t *testing.T) {
	t.Helper()

	if origUID != 0 {
		return
	}

	if err := syscall.Seteuid(origUID); err != nil {
		t.Fatalf("failed to restore effective UID: %v", err)
	}
	if err := syscall.Setegid(origGID); err != nil {
		t.Fatalf("failed to restore effective GID: %v", err)
	}

	runtime.UnlockOSThread()
}

// EnsurePrivilege skips the test when not running as root.
func EnsurePrivilege(t *testing.T) {
	t.Helper()

	if os.Getuid() != 0 {
		t.Skip("test requires root privileges")
	}
}
