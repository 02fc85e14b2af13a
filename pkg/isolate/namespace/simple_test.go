// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespace

import (
	"testing"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

func TestSimpleNamespaces(t *testing.T) {
	tests := []struct {
		name string
		ns   Namespace
		flag uintptr
	}{
		{"cgroup", NewControlGroup(), unix.CLONE_NEWCGROUP},
		{"ipc", NewIpc(), unix.CLONE_NEWIPC},
		{"pid", NewPid(), unix.CLONE_NEWPID},
		{"uts", NewUts(), unix.CLONE_NEWUTS},
		{"network", NewNetwork(), unix.CLONE_NEWNET},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ns.CloneFlag(), tt.flag)
			assert.NilError(t, tt.ns.Prepare())

			ext, in := tt.ns.Split()
			assert.Assert(t, ext == nil)
			assert.Assert(t, in == nil)
		})
	}
}
