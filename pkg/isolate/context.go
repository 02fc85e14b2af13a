// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package isolate spawns a child process inside a configurable set of Linux
// kernel namespaces. A Context collects namespace descriptions, Spawn
// re-executes the current binary with the matching clone flags and drives
// the parent/child rendezvous that splits configuration duties between the
// two processes, and the returned Child owns the parent side of the spawned
// process's lifecycle.
//
// Because the child is a re-execution of the current binary, the function
// it runs must be registered under a name at init time with RegisterEntry,
// and main (or TestMain) must call Init before doing anything else.
package isolate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"syscall"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sylabs/isolate/internal/pkg/reexec"
	"github.com/sylabs/isolate/internal/pkg/runtime/child"
	"github.com/sylabs/isolate/internal/pkg/runtime/payload"
	"github.com/sylabs/isolate/pkg/isolate/namespace"
	"github.com/sylabs/isolate/pkg/sylog"
	"golang.org/x/sys/unix"
)

// DefaultStackSize is the stack reservation applied to spawned children
// unless overridden with WithStackSize.
const DefaultStackSize = 8 * 1024 * 1024

// EntryFunc is a function a spawned child can run as its body.
type EntryFunc = child.Func

// RegisterEntry makes fn spawnable under the given name. Call it from an
// init function (or otherwise before Init) so the registration exists in
// both the parent and the re-executed child.
func RegisterEntry(name string, fn EntryFunc) {
	child.RegisterEntry(name, fn)
}

// Init dispatches into the child runtime when the current process is a
// spawned child, and reports whether it did so. It must be the first call
// in main and in TestMain; a true return means the caller should return
// immediately (the child lifecycle exits the process itself, so in
// practice Init only ever returns false).
func Init() bool {
	return reexec.Init()
}

// Context is a process execution context constructed of namespaces.
type Context struct {
	name       string
	namespaces []namespace.Namespace
	stackSize  uint64
}

// New creates an empty context: a child spawned from it runs in the same
// namespaces as the parent, distinguished only by being a new process.
func New() *Context {
	return &Context{
		name:      "isolate-" + uuid.NewString(),
		stackSize: DefaultStackSize,
	}
}

// WithName overrides the generated context name. The name shows up in the
// child's process title and in log messages.
func (c *Context) WithName(name string) *Context {
	c.name = name
	return c
}

// WithStackSize overrides the child's default stack reservation. The size
// is rounded up to a whole number of pages at spawn time.
func (c *Context) WithStackSize(size uint64) *Context {
	c.stackSize = size
	return c
}

// With appends a namespace to the context.
func (c *Context) With(ns namespace.Namespace) *Context {
	c.Push(ns)
	return c
}

// Push appends a namespace to the context.
func (c *Context) Push(ns namespace.Namespace) {
	c.namespaces = append(c.namespaces, ns)
}

// Name returns the context name.
func (c *Context) Name() string {
	return c.name
}

// CloneFlags returns the union of the clone bits contributed by the
// context's namespaces. SIGCHLD is not part of the union; the runtime ORs
// it into the clone call itself.
func (c *Context) CloneFlags() uintptr {
	var flags uintptr
	for _, ns := range c.namespaces {
		flags |= ns.CloneFlag()
	}
	return flags
}

// Spawn creates the child process and runs the two-sided configuration
// protocol. The entry names a function registered with RegisterEntry; it
// runs in the child once every configurator has been applied.
//
// The returned Child must be released with Close after Wait (or instead
// of it).
func (c *Context) Spawn(entry string, args ...string) (*Child, error) {
	for _, ns := range c.namespaces {
		if err := ns.Prepare(); err != nil {
			return nil, &PrepareError{Namespace: namespaceName(ns), Err: err}
		}
	}

	stackSize, err := roundStack(c.stackSize)
	if err != nil {
		return nil, err
	}

	var (
		externals []namespace.ExternalConfig
		internals []namespace.InternalConfig
	)
	for _, ns := range c.namespaces {
		ext, in := ns.Split()
		if ext != nil {
			externals = append(externals, ext)
		}
		if in != nil {
			internals = append(internals, in)
		}
	}

	p, err := payload.New(c.name, entry, args, stackSize, internals)
	if err != nil {
		return nil, err
	}

	rd, wr, err := os.Pipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create payload pipe")
	}
	defer wr.Close()

	cmd := reexec.Command(child.ProcTitle, c.name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{rd}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: c.CloneFlags(),
	}

	sylog.Debugf("Spawning %s with clone flags 0x%x", c.name, c.CloneFlags())

	if err := cmd.Start(); err != nil {
		rd.Close()
		return nil, cloneError(err)
	}
	rd.Close()

	pid := cmd.Process.Pid

	if err := p.Write(wr); err != nil {
		return nil, abandonChild(cmd, err)
	}
	wr.Close()

	for _, ext := range externals {
		if err := ext.Configure(pid); err != nil {
			return nil, abandonChild(cmd, err)
		}
	}

	if err := waitStopped(pid); err != nil {
		return nil, err
	}

	if err := unix.Kill(pid, unix.SIGCONT); err != nil {
		return nil, abandonChild(cmd, &ContinueError{Pid: pid, Err: err})
	}

	return &Child{
		name:      c.name,
		cmd:       cmd,
		externals: externals,
	}, nil
}

// roundStack rounds a requested stack size up to a whole number of pages
// and rejects sizes the kernel cannot represent.
func roundStack(size uint64) (uint64, error) {
	pageSize := uint64(unix.Getpagesize())

	if size == 0 {
		return pageSize, nil
	}

	rounded := (size + pageSize - 1) / pageSize * pageSize
	if rounded < size {
		return 0, &StackError{Size: size, Err: errors.New("size overflows page rounding")}
	}
	if _, err := safecast.ToInt64(rounded); err != nil {
		return 0, &StackError{Size: size, Err: err}
	}

	return rounded, nil
}

// waitStopped blocks until the child has entered the stopped state of the
// rendezvous. A child that terminates instead never reached the rendezvous.
func waitStopped(pid int) error {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &WaitError{Pid: pid, Err: err}
		}
		if wpid != pid {
			continue
		}
		break
	}

	if ws.Exited() || ws.Signaled() {
		return &WaitError{Pid: pid, Err: fmt.Errorf("child terminated before configuration (status %d)", ws)}
	}

	return nil
}

// abandonChild tears down a child that failed mid-spawn: it is killed
// (SIGKILL terminates stopped processes without a resume) and reaped, and
// the causing error is returned.
func abandonChild(cmd *exec.Cmd, cause error) error {
	if err := cmd.Process.Kill(); err != nil {
		sylog.Warningf("Failed to kill abandoned child %d: %v", cmd.Process.Pid, err)
	}
	if err := cmd.Wait(); err != nil {
		sylog.Debugf("Reaped abandoned child %d: %v", cmd.Process.Pid, err)
	}
	return cause
}

// cloneError maps a failed process start onto the error taxonomy,
// extracting the errno when one is present.
func cloneError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &CloneError{Errno: errno, Err: err}
	}
	return &CloneError{Err: err}
}

// namespaceName derives a printable name for error reporting.
func namespaceName(ns namespace.Namespace) string {
	t := reflect.TypeOf(ns)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
