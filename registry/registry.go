// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package registry resolves persisted type identities back to live objects.
//
// The original reconstruction path for a stored artifact is "load the code,
// call the constructor named in the record". This package makes that an
// explicit capability: a Registry maps fully-qualified type identities to
// constructor functions, and a ResolutionContext carries any recovered-code
// search paths for the duration of a single restore call. Nothing here
// mutates process-wide state; when the context is closed the recovered code
// is no longer resolvable.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownType is returned when a type identity has no registered
// constructor.
var ErrUnknownType = errors.New("registry: unknown type identity")

// Constructor builds a live object from merged constructor arguments and
// caller-supplied reference arguments. Reference arguments are live objects
// that were never persisted; they are handed in again at reconstruction
// time.
type Constructor func(args map[string]any, refArgs map[string]any) (any, error)

// Registry constructs live objects from persisted type identities.
type Registry interface {
	// Construct builds an instance of the named type. The resolution
	// context carries code search paths recovered for this call; compiled-in
	// registries may ignore it.
	Construct(rctx *ResolutionContext, typeIdentity string, args, refArgs map[string]any) (any, error)
}

// MapRegistry is a compiled-in Registry backed by an explicit map of type
// identities to constructor functions. Safe for concurrent use.
type MapRegistry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewMapRegistry creates an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{constructors: make(map[string]Constructor)}
}

// Register binds a type identity to a constructor, replacing any previous
// binding.
func (r *MapRegistry) Register(typeIdentity string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeIdentity] = fn
}

// Construct builds an instance of the named type.
func (r *MapRegistry) Construct(_ *ResolutionContext, typeIdentity string, args, refArgs map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.constructors[typeIdentity]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeIdentity)
	}

	instance, err := fn(args, refArgs)
	if err != nil {
		return nil, fmt.Errorf("constructor %s failed: %w", typeIdentity, err)
	}
	return instance, nil
}

// ResolutionContext is a per-call module-resolution scope. Recovered code
// directories are added for the duration of a single restore call and torn
// down with Close; the context never leaks into process-wide state.
type ResolutionContext struct {
	mu     sync.Mutex
	paths  []string
	closed bool
}

// NewResolutionContext creates an empty resolution context.
func NewResolutionContext() *ResolutionContext {
	return &ResolutionContext{}
}

// AddSearchPath makes dir resolvable for the remainder of this context's
// lifetime. Adding to a closed context is an error.
func (c *ResolutionContext) AddSearchPath(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("resolution context is closed")
	}
	c.paths = append(c.paths, dir)
	return nil
}

// SearchPaths returns the directories added so far, in insertion order.
func (c *ResolutionContext) SearchPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

// Close tears down the context. Search paths added during the call are
// discarded; Close is idempotent.
func (c *ResolutionContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.paths = nil
	c.closed = true
	return nil
}
