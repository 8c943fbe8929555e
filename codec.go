// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"
)

// WeightCodec reads and writes a model's weight state as an opaque file.
// The trained-weights binary format is the codec's business, not the
// orchestrator's.
type WeightCodec interface {
	// SaveWeights writes the model's weight state to path.
	SaveWeights(model any, path string) error

	// LoadWeights reads the weight state at path and applies it onto the
	// model, validating it against the model's own parameter set.
	LoadWeights(model any, path string) error
}

// WeightStater exposes a model's parameters as named float tensors. Models
// persisted through GobWeightCodec implement it.
type WeightStater interface {
	WeightState() map[string][]float64
	ApplyWeightState(state map[string][]float64) error
}

// GobWeightCodec persists weight state as a gob-encoded parameter map. On
// load it requires the stored parameter names to match the model's own
// parameter set exactly.
type GobWeightCodec struct{}

func (GobWeightCodec) SaveWeights(model any, path string) error {
	stater, ok := model.(WeightStater)
	if !ok {
		return fmt.Errorf("model %T does not expose weight state", model)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create weight file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Close error captured below

	if err := gob.NewEncoder(f).Encode(stater.WeightState()); err != nil {
		return fmt.Errorf("failed to encode weight state: %w", err)
	}
	return f.Close()
}

func (GobWeightCodec) LoadWeights(model any, path string) error {
	stater, ok := model.(WeightStater)
	if !ok {
		return fmt.Errorf("model %T does not expose weight state", model)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open weight file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	var state map[string][]float64
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode weight state: %w", err)
	}

	if err := matchParameterSets(stater.WeightState(), state); err != nil {
		return err
	}
	return stater.ApplyWeightState(state)
}

// matchParameterSets verifies the stored parameter names equal the model's.
func matchParameterSets(model, stored map[string][]float64) error {
	if len(model) == len(stored) {
		match := true
		for name := range model {
			if _, ok := stored[name]; !ok {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}

	return fmt.Errorf("stored parameters %v do not match model parameters %v",
		sortedKeys(stored), sortedKeys(model))
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
