// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespace

import (
	"encoding/json"

	"github.com/sylabs/isolate/internal/pkg/util/fs"
	"github.com/sylabs/isolate/pkg/sylog"
	"golang.org/x/sys/unix"
)

const mountKind = "mount"

func init() {
	RegisterInternal(mountKind, func(data json.RawMessage) (InternalConfig, error) {
		m := &Mount{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
		return m, nil
	})
}

// Mount requests a new mount namespace and, unless constructed with
// EmptyMount, performs one mount(2) inside the child once the namespace
// exists. A Mount value is both the namespace description and the
// child-side configurator; it crosses the spawn boundary in the payload.
type Mount struct {
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Fstype string `json:"fstype,omitempty"`
	Flags  uint64 `json:"flags,omitempty"`

	MakeDir bool `json:"makeTargetDir,omitempty"`
	Unmount bool `json:"unmount,omitempty"`

	// mountedPath holds the canonicalized target while a mount performed
	// by this value is in place. It never crosses the spawn boundary.
	mountedPath string
}

// EmptyMount requests a mount namespace without performing any mount.
func EmptyMount() *Mount {
	return &Mount{}
}

// NewMount mounts a filesystem of an explicit type.
//
//	namespace.NewMount("proc", "/tmp/jail/proc", "proc")
func NewMount(source, target, fstype string) *Mount {
	return &Mount{Source: source, Target: target, Fstype: fstype}
}

// Remount updates the mount flags on an existing mount point.
func Remount(target string) *Mount {
	return &Mount{Target: target, Flags: unix.MS_REMOUNT}
}

// Bind re-exposes a directory at a second path.
func Bind(source, target string) *Mount {
	return &Mount{Source: source, Target: target, Flags: unix.MS_BIND}
}

// RecursiveBind re-exposes a directory and every mount in its subtree at a
// second path.
func RecursiveBind(source, target string) *Mount {
	return &Mount{Source: source, Target: target, Flags: unix.MS_BIND | unix.MS_REC}
}

// Shared marks an existing mount point shared, so mount and unmount events
// under it propagate to its peers.
func Shared(target string) *Mount {
	return &Mount{Target: target, Flags: unix.MS_SHARED}
}

// Private marks an existing mount point private, so mount and unmount
// events under it do not propagate.
func Private(target string) *Mount {
	return &Mount{Target: target, Flags: unix.MS_PRIVATE}
}

// Slave marks an existing mount point a slave: events propagate into its
// subtree but never out of it.
func Slave(target string) *Mount {
	return &Mount{Target: target, Flags: unix.MS_SLAVE}
}

// Unbindable marks an existing mount point private and refuses bind mounts
// of it; recursive binds prune unbindable subtrees.
func Unbindable(target string) *Mount {
	return &Mount{Target: target, Flags: unix.MS_UNBINDABLE}
}

// Relocate atomically moves a mount from an existing mount point to a new
// one.
func Relocate(source, target string) *Mount {
	return &Mount{Source: source, Target: target, Flags: unix.MS_MOVE}
}

// AsBind adds the bind flag to a mount constructed some other way, which
// is useful when remounting bind mounts.
func (m *Mount) AsBind() *Mount { return m.flag(unix.MS_BIND) }

// SynchronousDirectories makes directory changes on the filesystem
// synchronous.
func (m *Mount) SynchronousDirectories() *Mount { return m.flag(unix.MS_DIRSYNC) }

// LazyAccessTime maintains inode timestamps in memory only, flushing them
// on inode eviction, sync or after 24 hours.
func (m *Mount) LazyAccessTime() *Mount { return m.flag(unix.MS_LAZYTIME) }

// MandatoryLocking permits mandatory locking on files of this mount.
func (m *Mount) MandatoryLocking() *Mount { return m.flag(unix.MS_MANDLOCK) }

// NoAccessTime stops access time updates for all files on this mount.
func (m *Mount) NoAccessTime() *Mount { return m.flag(unix.MS_NOATIME) }

// NoDevices refuses access to device special files on this mount.
func (m *Mount) NoDevices() *Mount { return m.flag(unix.MS_NODEV) }

// NoDirectoryAccessTime stops access time updates for directories on this
// mount.
func (m *Mount) NoDirectoryAccessTime() *Mount { return m.flag(unix.MS_NODIRATIME) }

// NoExecute refuses program execution from this mount.
func (m *Mount) NoExecute() *Mount { return m.flag(unix.MS_NOEXEC) }

// NoSetuid ignores set-user-ID and set-group-ID bits and file capabilities
// when executing programs from this mount.
func (m *Mount) NoSetuid() *Mount { return m.flag(unix.MS_NOSUID) }

// ReadOnly mounts read-only.
func (m *Mount) ReadOnly() *Mount { return m.flag(unix.MS_RDONLY) }

// RelativeAccessTime updates access times only when older than the
// modification or status change time.
func (m *Mount) RelativeAccessTime() *Mount { return m.flag(unix.MS_RELATIME) }

// Silent suppresses certain kernel warning messages for this mount.
func (m *Mount) Silent() *Mount { return m.flag(unix.MS_SILENT) }

// StrictAccessTime always updates the last access time.
func (m *Mount) StrictAccessTime() *Mount { return m.flag(unix.MS_STRICTATIME) }

// Synchronous makes writes on this mount synchronous.
func (m *Mount) Synchronous() *Mount { return m.flag(unix.MS_SYNCHRONOUS) }

// MakeTargetDir creates the target directory tree before mounting.
func (m *Mount) MakeTargetDir() *Mount {
	m.MakeDir = true
	return m
}

// UnmountOnCleanup unmounts the canonicalized target during child-side
// cleanup, restoring the namespace's mount table before the child exits.
func (m *Mount) UnmountOnCleanup() *Mount {
	m.Unmount = true
	return m
}

func (m *Mount) flag(f uint64) *Mount {
	m.Flags |= f
	return m
}

// CloneFlag returns CLONE_NEWNS.
func (m *Mount) CloneFlag() uintptr {
	return unix.CLONE_NEWNS
}

// Prepare rejects paths that cannot be passed to mount(2).
func (m *Mount) Prepare() error {
	return checkPath(m.Source, m.Target, m.Fstype)
}

// Split yields the Mount itself as the child-side configurator. There is
// nothing to do on the parent side.
func (m *Mount) Split() (ExternalConfig, InternalConfig) {
	return nil, m
}

// Kind identifies Mount entries in the spawn payload.
func (m *Mount) Kind() string {
	return mountKind
}

// Configure performs the mount inside the child. A Mount performs at most
// one successful mount over its lifetime.
func (m *Mount) Configure() error {
	if m.Target == "" {
		return nil
	}
	if m.mountedPath != "" {
		return &MountError{Mount: *m, Op: "mount", Err: unix.EBUSY}
	}

	if err := checkPath(m.Source, m.Target, m.Fstype); err != nil {
		return err
	}

	if m.MakeDir {
		if err := fs.EnsureDir(m.Target); err != nil {
			return &MountError{Mount: *m, Op: "mkdir", Err: err}
		}
	}

	if err := unix.Mount(m.Source, m.Target, m.Fstype, uintptr(m.Flags), ""); err != nil {
		return &MountError{Mount: *m, Op: "mount", Err: err}
	}

	mounted, err := fs.Canonical(m.Target)
	if err != nil {
		return &MountError{Mount: *m, Op: "resolve", Err: err}
	}
	m.mountedPath = mounted

	sylog.Debugf("Mounted %s (flags 0x%x)", m.mountedPath, m.Flags)

	return nil
}

// Cleanup unmounts the canonicalized target if requested. An unmount
// failure is reported but does not interrupt the remaining cleanup.
func (m *Mount) Cleanup() error {
	if !m.Unmount || m.mountedPath == "" {
		return nil
	}

	if err := unix.Unmount(m.mountedPath, 0); err != nil {
		sylog.Warningf("Failed to unmount %s: %v", m.mountedPath, err)
		return nil
	}
	m.mountedPath = ""

	return nil
}
