// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package child implements the in-child half of a spawn. The process this
// code runs in was created with the requested CLONE_NEW* flags, so the
// namespaces already exist; what remains is the rendezvous with the parent,
// the in-namespace configuration, the user entry function, and cleanup.
package child

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sylabs/isolate/internal/pkg/reexec"
	"github.com/sylabs/isolate/internal/pkg/runtime/payload"
	"github.com/sylabs/isolate/pkg/sylog"
	"github.com/sylabs/isolate/pkg/util/rlimit"
	"golang.org/x/sys/unix"
)

// ProcTitle is the argv[0] a spawned child carries. The reexec dispatcher
// keys on it to branch into Run instead of main.
const ProcTitle = "isolate-init"

// PayloadFD is the file descriptor the parent leaves the payload pipe on.
const PayloadFD = 3

func init() {
	reexec.Register(ProcTitle, Run)
}

// Func is the signature of a spawn entry function.
type Func func(args []string) error

var entries = make(map[string]Func)

// RegisterEntry associates an entry function with a name. Registration
// must happen at init time so both sides of the spawn know the same set of
// names.
func RegisterEntry(name string, fn Func) {
	if _, exists := entries[name]; exists {
		panic(fmt.Sprintf("spawn entry %q already registered", name))
	}
	entries[name] = fn
}

// Run executes the child lifecycle and never returns. Failures in
// configuration or cleanup abort the process so the parent observes a
// signaled wait status rather than a half-configured child pretending to
// have run.
func Run() {
	// A panic must not unwind into the runtime dispatch frames; convert
	// it into an abort the parent can observe.
	defer func() {
		if r := recover(); r != nil {
			abort("child panic: %v", r)
		}
	}()

	f := os.NewFile(uintptr(PayloadFD), "spawn-payload")
	p, err := payload.Read(f)
	f.Close()
	if err != nil {
		abort("%v", err)
	}

	// Rendezvous: stop until the parent has finished external
	// configuration and sends SIGCONT.
	if err := unix.Kill(unix.Getpid(), unix.SIGSTOP); err != nil {
		abort("failed to stop for parent configuration: %v", err)
	}

	internals, err := p.InternalConfigs()
	if err != nil {
		abort("%v", err)
	}

	fn, exists := entries[p.Entry]
	if !exists {
		abort("no spawn entry registered under %q", p.Entry)
	}

	if p.StackSize > 0 {
		if _, err := rlimit.EnsureStack(p.StackSize); err != nil {
			sylog.Warningf("Could not reserve %d byte stack: %v", p.StackSize, err)
		}
	}

	for _, config := range internals {
		if err := config.Configure(); err != nil {
			abort("failed to configure %s: %v", config.Kind(), err)
		}
	}

	entryErr := fn(p.Args)

	for i := len(internals) - 1; i >= 0; i-- {
		if err := internals[i].Cleanup(); err != nil {
			abort("failed to clean up %s: %v", internals[i].Kind(), err)
		}
	}

	if entryErr != nil {
		sylog.Errorf("Spawn entry %q: %v", p.Entry, entryErr)
		os.Exit(1)
	}

	os.Exit(0)
}

// abort reports a terminal child-side failure and raises SIGABRT, giving
// the parent a signaled wait status. Errors cannot cross the spawn
// boundary any other way.
func abort(format string, a ...interface{}) {
	sylog.Errorf(format, a...)

	// The Go runtime catches SIGABRT and by default exits with status 2;
	// the crash traceback mode makes it terminate by the signal instead.
	debug.SetTraceback("crash")

	if err := unix.Kill(unix.Getpid(), unix.SIGABRT); err == nil {
		// Give the signal time to land.
		select {}
	}
	os.Exit(2)
}
