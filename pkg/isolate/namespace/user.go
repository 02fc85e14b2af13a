// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moby/sys/userns"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/samber/lo"
	"github.com/sylabs/isolate/pkg/sylog"
	"golang.org/x/sys/unix"
)

// procfsRoot is the procfs location the external configurator writes
// through. It is a variable so tests can redirect the writes.
var procfsRoot = "/proc"

const maxUserNamespacesPath = "/proc/sys/user/max_user_namespaces"

// User places the child in a new user namespace. The child initially runs
// with an unmapped (nobody) identity; MapRootUser and MapRootGroup arrange
// for the parent to map uid/gid 0 in the namespace onto the spawning user
// before the child executes any identity-dependent instruction.
type User struct {
	mapRootUser  bool
	mapRootGroup bool
}

// NewUser configures a new user namespace for creation.
func NewUser() *User {
	return &User{}
}

// MapRootUser maps the root user of the namespace to the spawning user.
func (u *User) MapRootUser() *User {
	u.mapRootUser = true
	return u
}

// MapRootGroup maps the root group of the namespace to the spawning user's
// group.
func (u *User) MapRootGroup() *User {
	u.mapRootGroup = true
	return u
}

// CloneFlag returns CLONE_NEWUSER.
func (u *User) CloneFlag() uintptr {
	return unix.CLONE_NEWUSER
}

// Prepare fails when user namespace creation is administratively disabled
// on the host.
func (u *User) Prepare() error {
	if b, err := os.ReadFile(maxUserNamespacesPath); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(b))); err == nil && n == 0 {
			return fmt.Errorf("user namespaces are disabled (%s is 0)", maxUserNamespacesPath)
		}
	}

	if userns.RunningInUserNS() {
		sylog.Debugf("Spawning from inside a user namespace, nested mappings apply")
	}

	return nil
}

// Split yields the parent-side identity mapping configurator. There is
// nothing to do inside the child.
func (u *User) Split() (ExternalConfig, InternalConfig) {
	return &userConfig{
		mapRootUser:  u.mapRootUser,
		mapRootGroup: u.mapRootGroup,
	}, nil
}

// userConfig writes the child's identity maps from the parent. The kernel
// accepts a single write to each map file, so a configurator instance can
// be applied exactly once.
type userConfig struct {
	mapRootUser  bool
	mapRootGroup bool
	configured   bool
}

func (c *userConfig) Configure(pid int) error {
	if c.configured {
		return &ProcWriteError{
			Path: filepath.Join(procfsRoot, strconv.Itoa(pid), "uid_map"),
			Op:   ProcOpAgain,
		}
	}
	c.configured = true

	if c.mapRootUser {
		uidMap := []specs.LinuxIDMapping{
			{ContainerID: 0, HostID: uint32(os.Getuid()), Size: 1},
		}
		if err := writeProcFile(pid, "uid_map", formatIDMap(uidMap)); err != nil {
			return err
		}
	}

	if c.mapRootGroup {
		// setgroups must be denied before a gid map can be written by a
		// process without CAP_SETGID in the parent user namespace.
		if err := writeProcFile(pid, "setgroups", "deny\n"); err != nil {
			return err
		}

		gidMap := []specs.LinuxIDMapping{
			{ContainerID: 0, HostID: uint32(os.Getgid()), Size: 1},
		}
		if err := writeProcFile(pid, "gid_map", formatIDMap(gidMap)); err != nil {
			return err
		}
	}

	return nil
}

func (c *userConfig) Cleanup() error {
	// Identity maps live and die with the namespace.
	return nil
}

// formatIDMap renders mappings in the line format the kernel map files
// expect.
func formatIDMap(mappings []specs.LinuxIDMapping) string {
	lines := lo.Map(mappings, func(m specs.LinuxIDMapping, _ int) string {
		return fmt.Sprintf("%d %d %d\n", m.ContainerID, m.HostID, m.Size)
	})
	return strings.Join(lines, "")
}

func writeProcFile(pid int, name string, content string) error {
	path := filepath.Join(procfsRoot, strconv.Itoa(pid), name)

	sylog.Debugf("Writing %q to %s", strings.TrimSuffix(content, "\n"), path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return &ProcWriteError{Path: path, Op: ProcOpOpen, Err: err}
	}
	defer f.Close()

	if _, err := f.Write([]byte(content)); err != nil {
		return &ProcWriteError{Path: path, Op: ProcOpWrite, Err: err}
	}

	return nil
}
