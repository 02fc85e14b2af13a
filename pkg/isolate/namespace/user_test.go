// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

const testPid = 1234

// fakeProc redirects the /proc writes into a temporary tree and returns
// the directory standing in for /proc/<testPid>.
func fakeProc(t *testing.T, files ...string) string {
	t.Helper()

	orig := procfsRoot
	procfsRoot = t.TempDir()
	t.Cleanup(func() { procfsRoot = orig })

	pidDir := filepath.Join(procfsRoot, strconv.Itoa(testPid))
	assert.NilError(t, os.MkdirAll(pidDir, 0o755))
	for _, name := range files {
		assert.NilError(t, os.WriteFile(filepath.Join(pidDir, name), nil, 0o644))
	}

	return pidDir
}

func readProcFile(t *testing.T, pidDir, name string) string {
	t.Helper()

	b, err := os.ReadFile(filepath.Join(pidDir, name))
	assert.NilError(t, err)
	return string(b)
}

func TestUserCloneFlag(t *testing.T) {
	assert.Equal(t, NewUser().CloneFlag(), uintptr(unix.CLONE_NEWUSER))
}

func TestUserConfigure(t *testing.T) {
	pidDir := fakeProc(t, "uid_map", "setgroups", "gid_map")

	ext, in := NewUser().MapRootUser().MapRootGroup().Split()
	assert.Assert(t, in == nil)

	assert.NilError(t, ext.Configure(testPid))

	assert.Equal(t, readProcFile(t, pidDir, "uid_map"), fmt.Sprintf("0 %d 1\n", os.Getuid()))
	assert.Equal(t, readProcFile(t, pidDir, "setgroups"), "deny\n")
	assert.Equal(t, readProcFile(t, pidDir, "gid_map"), fmt.Sprintf("0 %d 1\n", os.Getgid()))

	assert.NilError(t, ext.Cleanup())
}

func TestUserConfigureOnce(t *testing.T) {
	fakeProc(t, "uid_map", "setgroups", "gid_map")

	ext, _ := NewUser().MapRootUser().Split()
	assert.NilError(t, ext.Configure(testPid))

	err := ext.Configure(testPid)
	procErr := &ProcWriteError{}
	assert.Assert(t, errors.As(err, &procErr))
	assert.Equal(t, procErr.Op, ProcOpAgain)
}

func TestUserSetgroupsBeforeGidMap(t *testing.T) {
	// Without a setgroups file the deny write fails, and the gid map must
	// not have been attempted.
	pidDir := fakeProc(t, "uid_map", "gid_map")

	ext, _ := NewUser().MapRootGroup().Split()

	err := ext.Configure(testPid)
	procErr := &ProcWriteError{}
	assert.Assert(t, errors.As(err, &procErr))
	assert.Equal(t, procErr.Op, ProcOpOpen)
	assert.Equal(t, filepath.Base(procErr.Path), "setgroups")

	assert.Equal(t, readProcFile(t, pidDir, "gid_map"), "")
}

func TestUserUnmappedSplit(t *testing.T) {
	pidDir := fakeProc(t, "uid_map", "setgroups", "gid_map")

	// No mappings requested: the configurator exists but writes nothing.
	ext, _ := NewUser().Split()
	assert.NilError(t, ext.Configure(testPid))

	assert.Equal(t, readProcFile(t, pidDir, "uid_map"), "")
	assert.Equal(t, readProcFile(t, pidDir, "setgroups"), "")
	assert.Equal(t, readProcFile(t, pidDir, "gid_map"), "")
}

func TestFormatIDMap(t *testing.T) {
	mappings := []specs.LinuxIDMapping{
		{ContainerID: 0, HostID: 1000, Size: 1},
		{ContainerID: 1, HostID: 100000, Size: 65536},
	}
	assert.Equal(t, formatIDMap(mappings), "0 1000 1\n1 100000 65536\n")
}

func TestUserPrepare(t *testing.T) {
	// Prepare is idempotent; whether it succeeds depends on the host
	// configuration, but two calls must agree.
	first := NewUser().Prepare()
	second := NewUser().Prepare()

	if first == nil {
		assert.NilError(t, second)
	} else {
		assert.ErrorContains(t, second, "user namespaces are disabled")
	}
}
