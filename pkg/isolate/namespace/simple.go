// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package namespace

import (
	"golang.org/x/sys/unix"
)

// flagOnly backs the namespaces that contribute nothing but a clone flag.
type flagOnly uintptr

func (f flagOnly) CloneFlag() uintptr                    { return uintptr(f) }
func (flagOnly) Prepare() error                          { return nil }
func (flagOnly) Split() (ExternalConfig, InternalConfig) { return nil, nil }

// ControlGroup places the child in a new cgroup namespace, so that its view
// of the cgroup hierarchy is rooted at its own cgroup.
type ControlGroup struct{ flagOnly }

// NewControlGroup configures a new cgroup namespace for creation.
func NewControlGroup() *ControlGroup {
	return &ControlGroup{flagOnly(unix.CLONE_NEWCGROUP)}
}

// Ipc places the child in a new IPC namespace, isolating System V IPC
// objects and POSIX message queues.
type Ipc struct{ flagOnly }

// NewIpc configures a new IPC namespace for creation.
func NewIpc() *Ipc {
	return &Ipc{flagOnly(unix.CLONE_NEWIPC)}
}

// Pid places the child in a new PID namespace. The child becomes pid 1 of
// the namespace and cannot observe processes outside it.
type Pid struct{ flagOnly }

// NewPid configures a new PID namespace for creation.
func NewPid() *Pid {
	return &Pid{flagOnly(unix.CLONE_NEWPID)}
}

// Uts places the child in a new UTS namespace, giving it a hostname and
// domain name that can be changed without affecting the host.
type Uts struct{ flagOnly }

// NewUts configures a new UTS namespace for creation.
func NewUts() *Uts {
	return &Uts{flagOnly(unix.CLONE_NEWUTS)}
}

// Network places the child in a new network namespace with its own
// interfaces, routing tables and firewall rules. No interface plumbing is
// performed; the namespace starts with only an unconfigured loopback.
type Network struct{ flagOnly }

// NewNetwork configures a new network namespace for creation.
func NewNetwork() *Network {
	return &Network{flagOnly(unix.CLONE_NEWNET)}
}
