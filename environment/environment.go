// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package environment captures and persists the software environment a
// model was saved from, so a recovered model can be checked against the
// runtime it is reconstructed in.
package environment

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/modelvault/modelvault/persistence"
)

// KindEnvironment is the record kind for environment snapshots.
const KindEnvironment = "environment"

// Record field names. Frozen for cross-version compatibility.
const (
	fieldSystemInfo = "system_info"
	fieldGoVersion  = "go_version"
	fieldLibraries  = "libraries"
)

// Environment is a snapshot of the host and toolchain a model was
// persisted from.
type Environment struct {
	// StoreID is the record id assigned by the last Persist or Load.
	StoreID string

	// SystemInfo holds host-level facts (OS, platform, kernel, arch).
	SystemInfo map[string]string

	// GoVersion is the runtime version the snapshot was taken under.
	GoVersion string

	// Libraries maps dependency module paths to their versions.
	Libraries map[string]string
}

// Track captures the current process environment. Host probing failures
// degrade to a partial snapshot rather than an error, since environment
// capture must never block a model save.
func Track(ctx context.Context) *Environment {
	env := &Environment{
		SystemInfo: map[string]string{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
		},
		GoVersion: runtime.Version(),
		Libraries: map[string]string{},
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		env.SystemInfo["hostname"] = info.Hostname
		env.SystemInfo["platform"] = info.Platform
		env.SystemInfo["platform_version"] = info.PlatformVersion
		env.SystemInfo["kernel_version"] = info.KernelVersion
		env.SystemInfo["kernel_arch"] = info.KernelArch
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range build.Deps {
			env.Libraries[dep.Path] = dep.Version
		}
	}

	return env
}

// Persist writes the snapshot as a record and returns its fresh id.
func (e *Environment) Persist(ctx context.Context, _ persistence.BlobStore, records persistence.RecordStore) (string, error) {
	rec := persistence.Record{
		fieldSystemInfo: e.SystemInfo,
		fieldGoVersion:  e.GoVersion,
		fieldLibraries:  e.Libraries,
	}

	id, err := records.SaveDict(ctx, rec, KindEnvironment, "")
	if err != nil {
		return "", fmt.Errorf("failed to save environment record: %w", err)
	}

	e.StoreID = id
	return id, nil
}

// LoadEnvironment rebuilds a snapshot from a stored record.
func LoadEnvironment(ctx context.Context, id string, records persistence.RecordStore) (*Environment, error) {
	rec, err := records.RecoverDict(ctx, id, KindEnvironment)
	if err != nil {
		return nil, err
	}

	env := &Environment{StoreID: id}
	if env.SystemInfo, err = stringMap(rec, fieldSystemInfo); err != nil {
		return nil, err
	}
	if env.Libraries, err = stringMap(rec, fieldLibraries); err != nil {
		return nil, err
	}
	if v, ok := rec[fieldGoVersion].(string); ok {
		env.GoVersion = v
	}

	return env, nil
}

// SizeInBytes reports the stored record size from store metadata.
func (e *Environment) SizeInBytes(ctx context.Context, _ persistence.BlobStore, records persistence.RecordStore) (int64, error) {
	if e.StoreID == "" {
		return 0, fmt.Errorf("environment has not been persisted")
	}
	return records.DictSize(ctx, e.StoreID, KindEnvironment)
}

func stringMap(rec persistence.Record, key string) (map[string]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("environment field %s has type %T, expected mapping", key, v)
	}

	out := make(map[string]string, len(raw))
	for k, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("environment field %s[%s] has type %T, expected string", key, k, item)
		}
		out[k] = s
	}
	return out, nil
}
