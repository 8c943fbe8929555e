// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelvault/modelvault/config"
	"github.com/modelvault/modelvault/persistence"
	"github.com/modelvault/modelvault/registry"
)

// StateSaver is implemented by instances whose internal state cannot be
// reproduced from constructor arguments alone (e.g. optimizer momentum
// buffers). SaveInstanceState writes that state to path.
type StateSaver interface {
	SaveInstanceState(path string) error
}

// StateRestorer re-applies previously saved state from path onto a freshly
// constructed instance.
type StateRestorer interface {
	RestoreInstanceState(path string) error
}

// StateFileRestorableObjectWrapper is a RestorableObjectWrapper for
// state-bearing objects. If the wrapped instance implements StateSaver its
// state is written to a transient local file, uploaded as a blob, and
// referenced from the descriptor.
type StateFileRestorableObjectWrapper struct {
	RestorableObjectWrapper

	// StateFilePath is the local path of the recovered state blob,
	// populated by Load.
	StateFilePath string
}

// Persist validates the descriptor, writes code and state blobs, then
// writes the descriptor record. The instance state has usually changed
// since the last save, so every call stores a new record under a fresh id.
func (w *StateFileRestorableObjectWrapper) Persist(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (string, error) {
	rec, err := w.encodeRecord(ctx, blobs)
	if err != nil {
		return "", err
	}

	if saver, ok := w.Instance.(StateSaver); ok {
		stateID, err := w.persistInstanceState(ctx, saver, blobs)
		if err != nil {
			return "", err
		}
		rec[fieldStateFile] = stateID
	}

	id, err := records.SaveDict(ctx, rec, KindRestorableObject, "")
	if err != nil {
		return "", fmt.Errorf("failed to save descriptor record: %w", err)
	}

	w.StoreID = id
	return id, nil
}

// persistInstanceState writes the instance state to a transient staging
// file, uploads it, and cleans the staging copy on every exit path.
func (w *StateFileRestorableObjectWrapper) persistInstanceState(ctx context.Context, saver StateSaver, blobs persistence.BlobStore) (string, error) {
	tmpDir, err := os.MkdirTemp("", "modelvault-state-*")
	if err != nil {
		return "", fmt.Errorf("failed to create state staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // Best effort cleanup

	statePath := filepath.Join(tmpDir, "state")
	if err := saver.SaveInstanceState(statePath); err != nil {
		return "", fmt.Errorf("failed to save instance state: %w", err)
	}

	stateID, err := blobs.SaveFile(ctx, statePath)
	if err != nil {
		return "", fmt.Errorf("failed to store state blob: %w", err)
	}
	return stateID, nil
}

// LoadStateFileWrapper rebuilds a data-only state-bearing wrapper from a
// stored descriptor, materializing code and state blobs under restoreRoot.
func LoadStateFileWrapper(ctx context.Context, id string, blobs persistence.BlobStore, records persistence.RecordStore, restoreRoot string) (*StateFileRestorableObjectWrapper, error) {
	rec, err := records.RecoverDict(ctx, id, KindRestorableObject)
	if err != nil {
		return nil, err
	}

	w := &StateFileRestorableObjectWrapper{}
	w.StoreID = id
	if err := w.decodeRecord(ctx, rec, blobs, restoreRoot); err != nil {
		return nil, err
	}

	stateID, err := stringField(rec, fieldStateFile)
	if err != nil {
		return nil, err
	}
	if stateID != "" {
		path, err := blobs.RecoverFile(ctx, stateID, filepath.Join(restoreRoot, stateID))
		if err != nil {
			return nil, fmt.Errorf("failed to recover state blob: %w", err)
		}
		w.StateFilePath = path
	}

	return w, nil
}

// RestoreInstance constructs the instance and re-applies the persisted
// state, if any. An instance that carries persisted state must implement
// StateRestorer.
func (w *StateFileRestorableObjectWrapper) RestoreInstance(rctx *registry.ResolutionContext, reg registry.Registry, resolver config.Resolver, refArgs map[string]any) error {
	if err := w.RestorableObjectWrapper.RestoreInstance(rctx, reg, resolver, refArgs); err != nil {
		return err
	}

	if w.StateFilePath == "" {
		return nil
	}

	restorer, ok := w.Instance.(StateRestorer)
	if !ok {
		return fmt.Errorf("%w: %s (%T)", ErrStateNotRestorable, w.ClassName, w.Instance)
	}
	if err := restorer.RestoreInstanceState(w.StateFilePath); err != nil {
		return fmt.Errorf("failed to restore instance state: %w", err)
	}

	return nil
}
