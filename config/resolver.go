// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package config provides the configuration-lookup collaborator used to
// resolve deferred constructor arguments at restore time.
//
// A persisted descriptor can declare config_args: argument name -> lookup
// key. The values are intentionally not persisted; they are resolved against
// the deployment's configuration when the object is reconstructed, so the
// same record restores correctly in different environments. The resolver is
// passed explicitly into the restore call, never read from a hidden global.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrUnknownKey is returned when a lookup key has no configured value.
var ErrUnknownKey = errors.New("config: unknown key")

// valuesSection is the configuration section holding resolvable values.
const valuesSection = "values"

// envPrefix namespaces the environment variables layered over the file.
// MODELVAULT_VALUES_LEARNING_RATE overrides values.learning_rate.
const envPrefix = "MODELVAULT_"

// Resolver looks up configuration values by key at restore time.
type Resolver interface {
	// Lookup returns the configured value for key, or ErrUnknownKey.
	Lookup(key string) (any, error)
}

// KoanfResolver resolves keys against a yaml config file with environment
// variables layered on top (env wins).
type KoanfResolver struct {
	k *koanf.Koanf
}

// NewKoanfResolver loads the yaml file at path and layers MODELVAULT_*
// environment variables over it. An empty path skips the file layer and
// resolves purely from the environment.
func NewKoanfResolver(path string) (*KoanfResolver, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// MODELVAULT_VALUES_BATCH_SIZE -> values.batch_size
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.Replace(s, "_", ".", 1))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &KoanfResolver{k: k}, nil
}

// Lookup returns the value configured under values.<key>.
func (r *KoanfResolver) Lookup(key string) (any, error) {
	path := valuesSection + "." + key
	if !r.k.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return r.k.Get(path), nil
}

// StaticResolver resolves keys from a fixed in-memory map. Useful for tests
// and for callers that assemble configuration elsewhere.
type StaticResolver map[string]any

// Lookup returns the mapped value for key, or ErrUnknownKey.
func (r StaticResolver) Lookup(key string) (any, error) {
	v, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v, nil
}
