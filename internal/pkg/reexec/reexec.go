// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package reexec lets a process re-execute its own binary as a child and
// branch into a registered entry point instead of main. Entry points are
// selected by argv[0], so a registered name must be set as the first
// argument of the re-executed command.
package reexec

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const self = "/proc/self/exe"

var registered = make(map[string]func())

// Register associates an entry point function with a name. It panics when
// the name is already taken, as that indicates two packages competing for
// the same child identity.
func Register(name string, entry func()) {
	if _, exists := registered[name]; exists {
		panic(fmt.Sprintf("reexec entry point %q already registered", name))
	}
	registered[name] = entry
}

// Init branches into a registered entry point if argv[0] matches one, and
// reports whether it did so. Call it at the top of main (and of TestMain);
// a true return means the entry point has run and the caller should return
// immediately.
func Init() bool {
	entry, exists := registered[filepath.Base(os.Args[0])]
	if !exists {
		return false
	}
	entry()
	return true
}

// Command returns a command that re-executes the current binary with
// argv[0] set to name, dispatching into the matching registered entry
// point once the child calls Init.
func Command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(self)
	cmd.Args = append([]string{name}, args...)
	return cmd
}
