// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package payload defines the configuration document the parent hands to a
// spawned child. The parent serializes it into a pipe before releasing the
// child; the child decodes it before performing any in-namespace
// configuration. The payload is the only channel crossing the spawn
// boundary, so everything the child needs must be in it.
package payload

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sylabs/isolate/pkg/isolate/namespace"
)

// Version guards against a parent and child disagreeing about the wire
// format. Both sides run the same binary, so a mismatch means the payload
// was corrupted or misdirected.
const Version = 1

// InternalEntry carries one child-side configurator in serialized form.
type InternalEntry struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config"`
}

// Payload is the complete child configuration.
type Payload struct {
	Version int    `json:"version"`
	Name    string `json:"name"`

	// Entry names the registered function to run as the child's body,
	// with its arguments.
	Entry string   `json:"entry"`
	Args  []string `json:"args,omitempty"`

	// StackSize is the page-rounded stack reservation to apply in the
	// child before user code runs.
	StackSize uint64 `json:"stackSize,omitempty"`

	Internals []InternalEntry `json:"internals,omitempty"`
}

// New assembles a payload from the split internal configurators, keeping
// their insertion order.
func New(name, entry string, args []string, stackSize uint64, internals []namespace.InternalConfig) (*Payload, error) {
	p := &Payload{
		Version:   Version,
		Name:      name,
		Entry:     entry,
		Args:      args,
		StackSize: stackSize,
	}

	for _, config := range internals {
		data, err := json.Marshal(config)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to serialize %s configurator", config.Kind())
		}
		p.Internals = append(p.Internals, InternalEntry{Kind: config.Kind(), Config: data})
	}

	return p, nil
}

// InternalConfigs reconstructs the child-side configurators in payload
// order.
func (p *Payload) InternalConfigs() ([]namespace.InternalConfig, error) {
	configs := make([]namespace.InternalConfig, 0, len(p.Internals))
	for _, entry := range p.Internals {
		config, err := namespace.DecodeInternal(entry.Kind, entry.Config)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s configurator", entry.Kind)
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// Write serializes the payload into w.
func (p *Payload) Write(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(p); err != nil {
		return errors.Wrap(err, "failed to write spawn payload")
	}
	return nil
}

// Read decodes a payload from r and checks its version.
func Read(r io.Reader) (*Payload, error) {
	p := &Payload{}
	if err := json.NewDecoder(r).Decode(p); err != nil {
		return nil, errors.Wrap(err, "failed to read spawn payload")
	}
	if p.Version != Version {
		return nil, fmt.Errorf("unsupported spawn payload version %d", p.Version)
	}
	return p, nil
}
