// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package isolate

import (
	"errors"
	"os/exec"
	"syscall"

	"github.com/sylabs/isolate/pkg/isolate/namespace"
	"github.com/sylabs/isolate/pkg/sylog"
)

// Child is the handle to a spawned process. It owns the parent-side
// configurators and the child's lifecycle: exactly one of Wait or Close
// reaps the process, and Close additionally tears down anything the
// external configurators installed.
type Child struct {
	name      string
	cmd       *exec.Cmd
	externals []namespace.ExternalConfig

	reaped bool
	status syscall.WaitStatus
	closed bool
}

// Pid returns the process id of the child.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Name returns the name of the context the child was spawned from.
func (c *Child) Name() string {
	return c.name
}

// Wait blocks until the child has exited and returns its wait status. It
// may be called at most once; Close afterwards is still required to
// release the parent-side configurators.
func (c *Child) Wait() (syscall.WaitStatus, error) {
	if c.reaped {
		return c.status, errors.New("child already waited for")
	}

	err := c.cmd.Wait()
	c.reaped = true

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, &WaitError{Pid: c.Pid(), Err: err}
	}

	ws, ok := c.cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, &WaitError{Pid: c.Pid(), Err: errors.New("no wait status available")}
	}
	c.status = ws

	sylog.Debugf("Child %s (pid %d) finished: %s", c.name, c.Pid(), c.cmd.ProcessState)

	return ws, nil
}

// Close releases the child: the external configurators are cleaned up in
// reverse order and the process is reaped if Wait has not already done so.
// Cleanup failures are reported, never fatal. Close is idempotent.
func (c *Child) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	for i := len(c.externals) - 1; i >= 0; i-- {
		if err := c.externals[i].Cleanup(); err != nil {
			sylog.Warningf("Failed to clean up after child %s: %v", c.name, err)
		}
	}

	if !c.reaped {
		if _, err := c.Wait(); err != nil {
			sylog.Warningf("Failed to reap child %s: %v", c.name, err)
		}
	}

	return nil
}
