// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package payload

import (
	"bytes"
	"testing"

	"github.com/sylabs/isolate/pkg/isolate/namespace"
	"gotest.tools/v3/assert"
)

func TestPayloadRoundTrip(t *testing.T) {
	internals := []namespace.InternalConfig{
		namespace.RecursiveBind("/proc", "/tmp/jail/proc").MakeTargetDir().UnmountOnCleanup(),
		namespace.NewMount("tmp", "/tmp/jail/tmp", "tmpfs"),
	}

	p, err := New("jail", "run-shell", []string{"-l"}, 8192, internals)
	assert.NilError(t, err)

	buf := &bytes.Buffer{}
	assert.NilError(t, p.Write(buf))

	decoded, err := Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, decoded.Name, "jail")
	assert.Equal(t, decoded.Entry, "run-shell")
	assert.DeepEqual(t, decoded.Args, []string{"-l"})
	assert.Equal(t, decoded.StackSize, uint64(8192))

	configs, err := decoded.InternalConfigs()
	assert.NilError(t, err)
	assert.Equal(t, len(configs), 2)

	// Order and content survive the crossing.
	first, ok := configs[0].(*namespace.Mount)
	assert.Assert(t, ok)
	assert.Equal(t, first.Target, "/tmp/jail/proc")
	assert.Assert(t, first.MakeDir)
	assert.Assert(t, first.Unmount)

	second, ok := configs[1].(*namespace.Mount)
	assert.Assert(t, ok)
	assert.Equal(t, second.Fstype, "tmpfs")
}

func TestPayloadVersionMismatch(t *testing.T) {
	_, err := Read(bytes.NewBufferString(`{"version": 99, "name": "x", "entry": "y"}`))
	assert.ErrorContains(t, err, "unsupported spawn payload version")
}
