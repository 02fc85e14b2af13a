// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package fs provides small filesystem helpers shared by the library.
package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// Canonical resolves path to an absolute, symlink-free form.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// IsMountPoint reports whether path is the root of a mount, by comparing
// its device with that of its parent directory.
func IsMountPoint(path string) (bool, error) {
	canonical, err := Canonical(path)
	if err != nil {
		return false, err
	}
	if canonical == "/" {
		return true, nil
	}

	var st, parent unix.Stat_t
	if err := unix.Stat(canonical, &st); err != nil {
		return false, err
	}
	if err := unix.Stat(filepath.Dir(canonical), &parent); err != nil {
		return false, err
	}

	return st.Dev != parent.Dev, nil
}
