// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package require implements test requirements that skip a test when the
// host cannot satisfy them.
package require

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/moby/sys/userns"
)

// Root skips the current test when not running as root.
func Root(t *testing.T) {
	t.Helper()

	if os.Getuid() != 0 {
		t.Skip("test requires root privileges")
	}
}

// UserNamespace skips the current test when user namespaces cannot be
// created by an unprivileged process on this host.
func UserNamespace(t *testing.T) {
	t.Helper()

	if _, err := os.Stat("/proc/self/ns/user"); err != nil {
		t.Skip("kernel lacks user namespace support")
	}

	if b, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(b))); err == nil && n == 0 {
			t.Skip("user namespaces administratively disabled")
		}
	}

	// Debian-style toggle.
	if b, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if strings.TrimSpace(string(b)) == "0" && os.Getuid() != 0 {
			t.Skip("unprivileged user namespace creation disabled")
		}
	}

	if userns.RunningInUserNS() {
		t.Skip("already running in a user namespace")
	}
}

// MountNamespace skips the current test when the process cannot obtain a
// mount namespace with mount privileges, either as root or through a user
// namespace.
func MountNamespace(t *testing.T) {
	t.Helper()

	if os.Getuid() == 0 {
		return
	}
	UserNamespace(t)
}
