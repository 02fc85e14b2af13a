// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package isolate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/sylabs/isolate/internal/pkg/test/tool/require"
	"github.com/sylabs/isolate/internal/pkg/util/fs"
	"github.com/sylabs/isolate/pkg/isolate/namespace"
	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

func TestMain(m *testing.M) {
	if Init() {
		return
	}
	os.Exit(m.Run())
}

func init() {
	RegisterEntry("test-noop", func([]string) error {
		return nil
	})
	RegisterEntry("test-fail", func([]string) error {
		return errors.New("deliberate failure")
	})
	RegisterEntry("test-write-marker", func(args []string) error {
		return os.WriteFile(args[0], []byte("42"), 0o644)
	})
	RegisterEntry("test-write-uid", func(args []string) error {
		return os.WriteFile(args[0], []byte(strconv.Itoa(os.Getuid())), 0o644)
	})
	RegisterEntry("test-write-pid", func(args []string) error {
		return os.WriteFile(args[0], []byte(strconv.Itoa(os.Getpid())), 0o644)
	})
	RegisterEntry("test-check-proc", func(args []string) error {
		b, err := os.ReadFile(filepath.Join(args[0], "self", "status"))
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return errors.New("bound proc status is empty")
		}
		return os.WriteFile(args[1], []byte("ok"), 0o644)
	})
}

func spawnAndWait(t *testing.T, c *Context, entry string, args ...string) unix.WaitStatus {
	t.Helper()

	child, err := c.Spawn(entry, args...)
	assert.NilError(t, err)
	defer child.Close()

	ws, err := child.Wait()
	assert.NilError(t, err)

	return unix.WaitStatus(ws)
}

func TestSpawnEmptyContext(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")

	ws := spawnAndWait(t, New(), "test-write-marker", marker)
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 0)

	b, err := os.ReadFile(marker)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "42")
}

func TestSpawnEntryError(t *testing.T) {
	ws := spawnAndWait(t, New(), "test-fail")
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 1)
}

func TestSpawnUnknownEntry(t *testing.T) {
	child, err := New().Spawn("test-not-registered")
	assert.NilError(t, err)
	defer child.Close()

	// The child aborts once it fails to resolve the entry name.
	ws, err := child.Wait()
	assert.NilError(t, err)
	assert.Assert(t, unix.WaitStatus(ws).Signaled())
}

func TestWaitTwice(t *testing.T) {
	child, err := New().Spawn("test-noop")
	assert.NilError(t, err)
	defer child.Close()

	_, err = child.Wait()
	assert.NilError(t, err)

	_, err = child.Wait()
	assert.ErrorContains(t, err, "already waited")
}

func TestSpawnUserNamespace(t *testing.T) {
	require.UserNamespace(t)

	out := filepath.Join(t.TempDir(), "uid")

	c := New().With(namespace.NewUser().MapRootUser().MapRootGroup())
	ws := spawnAndWait(t, c, "test-write-uid", out)
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 0)

	b, err := os.ReadFile(out)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "0")
}

func TestSpawnPidNamespace(t *testing.T) {
	require.UserNamespace(t)

	out := filepath.Join(t.TempDir(), "pid")

	c := New().
		With(namespace.NewUser().MapRootUser().MapRootGroup()).
		With(namespace.NewPid())
	ws := spawnAndWait(t, c, "test-write-pid", out)
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 0)

	b, err := os.ReadFile(out)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "1")
}

func TestSpawnProcBind(t *testing.T) {
	require.UserNamespace(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "proc")
	out := filepath.Join(tmp, "out")

	c := New().
		With(namespace.NewUser().MapRootUser().MapRootGroup()).
		With(namespace.RecursiveBind("/proc", target).MakeTargetDir().UnmountOnCleanup())

	ws := spawnAndWait(t, c, "test-check-proc", target, out)
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 0)

	b, err := os.ReadFile(out)
	assert.NilError(t, err)
	assert.Equal(t, string(b), "ok")

	// The mount lived and died with the child's mount namespace.
	assert.Assert(t, fs.IsDir(target))
	mounted, err := fs.IsMountPoint(target)
	assert.NilError(t, err)
	assert.Assert(t, !mounted)
}

func TestSpawnMountFailure(t *testing.T) {
	require.UserNamespace(t)

	target := filepath.Join(t.TempDir(), "x")

	c := New().
		With(namespace.NewUser().MapRootUser().MapRootGroup()).
		With(namespace.NewMount("/does/not/exist", target, "ext4").MakeTargetDir())

	// The mount failure happens inside the child: spawn succeeds, the
	// child aborts.
	child, err := c.Spawn("test-noop")
	assert.NilError(t, err)
	defer child.Close()

	ws, err := child.Wait()
	assert.NilError(t, err)
	assert.Assert(t, unix.WaitStatus(ws).Signaled())
}

func TestSpawnStackSize(t *testing.T) {
	c := New().WithStackSize(16 * 1024 * 1024)

	ws := spawnAndWait(t, c, "test-noop")
	assert.Assert(t, ws.Exited())
	assert.Equal(t, ws.ExitStatus(), 0)
}

func ExampleContext_Spawn() {
	// Entries must be registered at init time, and main must call Init
	// first; see RegisterEntry and Init.
	c := New().With(namespace.NewUser().MapRootUser())

	child, err := c.Spawn("my-entry", "arg")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer child.Close()

	if _, err := child.Wait(); err != nil {
		fmt.Println(err)
	}
}
