// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/modelvault/modelvault/config"
	"github.com/modelvault/modelvault/persistence"
	"github.com/modelvault/modelvault/registry"
)

// StateDictObj is a composite runtime object whose internal state is a
// mapping of named child restorable objects (e.g. a training service
// holding an optimizer and a scheduler).
type StateDictObj interface {
	// StateObjects returns the named child wrappers making up this
	// object's state.
	StateObjects() map[string]*StateFileRestorableObjectWrapper

	// SetStateObjects re-assembles the composite from restored children.
	SetStateObjects(objs map[string]*StateFileRestorableObjectWrapper)
}

// StateDictRestorableObjectWrapper persists a StateDictObj. Every child is
// persisted first under its own fresh id (child state has a new value each
// time), and the resulting name-to-id mapping is stored as this wrapper's
// state dict.
type StateDictRestorableObjectWrapper struct {
	// StoreID is the record id assigned by the last Persist or Load.
	StoreID string

	// ClassName is the fully-qualified constructor name of the composite.
	ClassName string

	// CodePath is the local path to the defining code file. Mutually
	// exclusive with ImportPath.
	CodePath string

	// ImportPath is an import path resolvable in the target runtime.
	ImportPath string

	// Instance is the live composite object.
	Instance StateDictObj

	// StateDictIDs maps child names to their descriptor record ids,
	// populated by Persist and Load.
	StateDictIDs map[string]string
}

// Persist persists every child wrapper, then writes the composite's own
// record referencing them.
func (w *StateDictRestorableObjectWrapper) Persist(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (string, error) {
	if err := validateCodeRef(w.CodePath, w.ImportPath); err != nil {
		return "", err
	}
	if w.ClassName == "" {
		return "", fmt.Errorf("descriptor class name is required")
	}
	if w.Instance == nil {
		return "", fmt.Errorf("cannot persist state dict without a live instance")
	}

	stateDict := make(map[string]any)
	for _, name := range sortedChildNames(w.Instance.StateObjects()) {
		child := w.Instance.StateObjects()[name]
		childID, err := child.Persist(ctx, blobs, records)
		if err != nil {
			return "", fmt.Errorf("failed to persist state object %s: %w", name, err)
		}
		stateDict[name] = childID
	}

	rec := persistence.Record{
		fieldClassName: w.ClassName,
		fieldStateDict: stateDict,
	}
	if w.CodePath != "" {
		codeID, err := blobs.SaveFile(ctx, w.CodePath)
		if err != nil {
			return "", fmt.Errorf("failed to store code blob: %w", err)
		}
		rec[fieldCodeFile] = codeID
	} else {
		rec[fieldImportCmd] = w.ImportPath
	}

	id, err := records.SaveDict(ctx, rec, KindRestorableObject, "")
	if err != nil {
		return "", fmt.Errorf("failed to save descriptor record: %w", err)
	}

	w.StoreID = id
	w.StateDictIDs = make(map[string]string, len(stateDict))
	for name, childID := range stateDict {
		w.StateDictIDs[name] = childID.(string)
	}
	return id, nil
}

// LoadStateDictWrapper rebuilds a data-only composite wrapper from a stored
// descriptor. Children are loaded lazily by RestoreInstance.
func LoadStateDictWrapper(ctx context.Context, id string, blobs persistence.BlobStore, records persistence.RecordStore, restoreRoot string) (*StateDictRestorableObjectWrapper, error) {
	rec, err := records.RecoverDict(ctx, id, KindRestorableObject)
	if err != nil {
		return nil, err
	}

	w := &StateDictRestorableObjectWrapper{StoreID: id}
	if w.ClassName, err = stringField(rec, fieldClassName); err != nil {
		return nil, err
	}
	if w.ImportPath, err = stringField(rec, fieldImportCmd); err != nil {
		return nil, err
	}

	codeID, err := stringField(rec, fieldCodeFile)
	if err != nil {
		return nil, err
	}
	if codeID != "" {
		path, err := blobs.RecoverFile(ctx, codeID, filepath.Join(restoreRoot, codeID))
		if err != nil {
			return nil, fmt.Errorf("failed to recover code blob: %w", err)
		}
		w.CodePath = path
	}

	stateDict, err := stringMapField(rec, fieldStateDict)
	if err != nil {
		return nil, err
	}
	w.StateDictIDs = stateDict

	return w, nil
}

// RestoreInstance constructs the composite through the registry, restores
// every child, and re-assembles the state mapping onto the live instance.
func (w *StateDictRestorableObjectWrapper) RestoreInstance(ctx context.Context, rctx *registry.ResolutionContext, reg registry.Registry, resolver config.Resolver, blobs persistence.BlobStore, records persistence.RecordStore, restoreRoot string) error {
	if w.CodePath != "" && rctx != nil {
		if err := rctx.AddSearchPath(filepath.Dir(w.CodePath)); err != nil {
			return err
		}
	}

	instance, err := reg.Construct(rctx, w.ClassName, nil, nil)
	if err != nil {
		return err
	}
	composite, ok := instance.(StateDictObj)
	if !ok {
		return fmt.Errorf("constructor %s returned %T, expected a StateDictObj", w.ClassName, instance)
	}

	children := make(map[string]*StateFileRestorableObjectWrapper, len(w.StateDictIDs))
	for name, childID := range w.StateDictIDs {
		child, err := LoadStateFileWrapper(ctx, childID, blobs, records, restoreRoot)
		if err != nil {
			return fmt.Errorf("failed to load state object %s: %w", name, err)
		}
		if err := child.RestoreInstance(rctx, reg, resolver, nil); err != nil {
			return fmt.Errorf("failed to restore state object %s: %w", name, err)
		}
		children[name] = child
	}

	composite.SetStateObjects(children)
	w.Instance = composite
	return nil
}

// SizeInBytes sums the composite record, its code blob, and every child
// wrapper's size.
func (w *StateDictRestorableObjectWrapper) SizeInBytes(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (int64, error) {
	if w.StoreID == "" {
		return 0, fmt.Errorf("wrapper has not been persisted")
	}

	size, err := records.DictSize(ctx, w.StoreID, KindRestorableObject)
	if err != nil {
		return 0, err
	}

	rec, err := records.RecoverDict(ctx, w.StoreID, KindRestorableObject)
	if err != nil {
		return 0, err
	}

	codeID, err := stringField(rec, fieldCodeFile)
	if err != nil {
		return 0, err
	}
	if codeID != "" {
		codeSize, err := blobs.FileSize(ctx, codeID)
		if err != nil {
			return 0, err
		}
		size += codeSize
	}

	for name, childID := range w.StateDictIDs {
		child := &RestorableObjectWrapper{StoreID: childID}
		childSize, err := child.SizeInBytes(ctx, blobs, records)
		if err != nil {
			return 0, fmt.Errorf("failed to size state object %s: %w", name, err)
		}
		size += childSize
	}

	return size, nil
}

// sortedChildNames gives persistence a deterministic child order.
func sortedChildNames(objs map[string]*StateFileRestorableObjectWrapper) []string {
	names := make([]string, 0, len(objs))
	for name := range objs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
