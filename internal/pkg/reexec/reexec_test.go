// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package reexec

import (
	"testing"
)

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("test-entry", func() {})

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	Register("test-entry", func() {})
}

func TestCommand(t *testing.T) {
	cmd := Command("some-entry", "a", "b")

	if cmd.Path != "/proc/self/exe" {
		t.Errorf("command path = %q, want /proc/self/exe", cmd.Path)
	}
	if len(cmd.Args) != 3 || cmd.Args[0] != "some-entry" || cmd.Args[2] != "b" {
		t.Errorf("unexpected args %v", cmd.Args)
	}
}

func TestInitNoMatch(t *testing.T) {
	// The test binary's argv[0] is not a registered entry, so Init must
	// decline to dispatch.
	if Init() {
		t.Error("Init dispatched without a matching registration")
	}
}
