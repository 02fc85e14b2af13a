// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package namespace models the Linux namespaces a spawned child can be
// placed into. Each namespace value contributes a clone flag, a preparation
// step that runs in the parent before the child exists, and a pair of
// configurators split between the two sides of the spawn: the external
// configurator runs in the parent and addresses the child by pid, while the
// internal configurator is serialized into the child and runs there once
// the namespaces exist.
package namespace

import (
	"encoding/json"
	"fmt"
)

// Namespace describes one namespace (or purely behavioral addition) that a
// spawn context composes.
type Namespace interface {
	// CloneFlag returns the CLONE_NEW* bit requesting the namespace, or 0
	// when the value only contributes behavior.
	CloneFlag() uintptr

	// Prepare validates the host environment in the parent before the
	// child is created. It must be idempotent.
	Prepare() error

	// Split divides the value into its parent-side and child-side
	// configurators. Either side may be nil.
	Split() (ExternalConfig, InternalConfig)
}

// ExternalConfig is applied in the parent while the freshly spawned child
// is stopped, before the child runs any of its own configuration.
type ExternalConfig interface {
	Configure(pid int) error
	Cleanup() error
}

// InternalConfig is applied inside the child after the parent has released
// it. Implementations must round-trip through JSON, as they cross the
// process boundary in the spawn payload.
type InternalConfig interface {
	// Kind identifies the configurator type in the spawn payload.
	Kind() string

	Configure() error
	Cleanup() error
}

// InternalFactory reconstructs an InternalConfig from its payload form.
type InternalFactory func(data json.RawMessage) (InternalConfig, error)

var internalKinds = make(map[string]InternalFactory)

// RegisterInternal associates a payload kind with its factory. Packages
// providing internal configurators register themselves at init time so the
// decoder is populated on both sides of the spawn.
func RegisterInternal(kind string, fn InternalFactory) {
	if _, exists := internalKinds[kind]; exists {
		panic(fmt.Sprintf("internal configurator kind %q already registered", kind))
	}
	internalKinds[kind] = fn
}

// DecodeInternal reconstructs the internal configurator carried by a
// payload entry.
func DecodeInternal(kind string, data json.RawMessage) (InternalConfig, error) {
	fn, exists := internalKinds[kind]
	if !exists {
		return nil, fmt.Errorf("unknown internal configurator kind %q", kind)
	}
	return fn(data)
}
