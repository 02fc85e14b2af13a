// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package isolate

import (
	"fmt"
	"syscall"
)

// StackError reports an unusable stack size request.
type StackError struct {
	Size uint64
	Err  error
}

func (e *StackError) Error() string {
	return fmt.Sprintf("cannot reserve %d byte stack: %v", e.Size, e.Err)
}

func (e *StackError) Unwrap() error { return e.Err }

// CloneError reports that the child process could not be created. It
// carries the errno returned by the failed clone when one is available.
type CloneError struct {
	Errno syscall.Errno
	Err   error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone child process: %v", e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// WaitError reports a failed wait on the child.
type WaitError struct {
	Pid int
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("failed to wait on child %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// ContinueError reports that the stopped child could not be resumed.
type ContinueError struct {
	Pid int
	Err error
}

func (e *ContinueError) Error() string {
	return fmt.Sprintf("failed to resume child %d: %v", e.Pid, e.Err)
}

func (e *ContinueError) Unwrap() error { return e.Err }

// PrepareError reports a namespace whose preparation failed before any
// child was created.
type PrepareError struct {
	Namespace string
	Err       error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("failed to prepare %s namespace: %v", e.Namespace, e.Err)
}

func (e *PrepareError) Unwrap() error { return e.Err }
