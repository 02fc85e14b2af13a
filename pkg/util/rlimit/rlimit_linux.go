// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package rlimit manipulates process resource limits by symbolic name.
package rlimit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

var resource = map[string]int{
	"RLIMIT_CPU":        unix.RLIMIT_CPU,
	"RLIMIT_FSIZE":      unix.RLIMIT_FSIZE,
	"RLIMIT_DATA":       unix.RLIMIT_DATA,
	"RLIMIT_STACK":      unix.RLIMIT_STACK,
	"RLIMIT_CORE":       unix.RLIMIT_CORE,
	"RLIMIT_RSS":        unix.RLIMIT_RSS,
	"RLIMIT_NPROC":      unix.RLIMIT_NPROC,
	"RLIMIT_NOFILE":     unix.RLIMIT_NOFILE,
	"RLIMIT_MEMLOCK":    unix.RLIMIT_MEMLOCK,
	"RLIMIT_AS":         unix.RLIMIT_AS,
	"RLIMIT_LOCKS":      unix.RLIMIT_LOCKS,
	"RLIMIT_SIGPENDING": unix.RLIMIT_SIGPENDING,
	"RLIMIT_MSGQUEUE":   unix.RLIMIT_MSGQUEUE,
	"RLIMIT_NICE":       unix.RLIMIT_NICE,
	"RLIMIT_RTPRIO":     unix.RLIMIT_RTPRIO,
	"RLIMIT_RTTIME":     unix.RLIMIT_RTTIME,
}

// Set sets the soft and hard resource limit identified by name.
func Set(res string, cur uint64, max uint64) error {
	id, ok := resource[res]
	if !ok {
		return fmt.Errorf("%s is not a valid resource limit", res)
	}

	rlim := unix.Rlimit{Cur: cur, Max: max}
	if err := unix.Setrlimit(id, &rlim); err != nil {
		return fmt.Errorf("while setting resource limit %s: %s", res, err)
	}

	return nil
}

// Get returns the current soft and hard resource limit identified by name.
func Get(res string) (cur uint64, max uint64, err error) {
	var rlim unix.Rlimit

	id, ok := resource[res]
	if !ok {
		return cur, max, fmt.Errorf("%s is not a valid resource limit", res)
	}

	if err := unix.Getrlimit(id, &rlim); err != nil {
		return cur, max, fmt.Errorf("while getting resource limit %s: %s", res, err)
	}

	return rlim.Cur, rlim.Max, nil
}

// EnsureStack raises the soft stack limit to at least size bytes, capped at
// the hard limit. It returns the limit that is effectively in place.
func EnsureStack(size uint64) (uint64, error) {
	cur, max, err := Get("RLIMIT_STACK")
	if err != nil {
		return 0, err
	}

	if cur >= size && cur <= max {
		return cur, nil
	}

	want := size
	if max != unix.RLIM_INFINITY && want > max {
		want = max
	}
	if err := Set("RLIMIT_STACK", want, max); err != nil {
		return 0, err
	}

	return want, nil
}
