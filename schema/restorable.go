// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelvault/modelvault/config"
	"github.com/modelvault/modelvault/persistence"
	"github.com/modelvault/modelvault/registry"
)

// RestorableObjectWrapper describes a runtime-reconstructible object: the
// fully-qualified constructor name, either a code file or a plain import
// path, literal constructor arguments, deferred config-resolved arguments,
// and the declared names of live reference arguments supplied again at
// restore time.
type RestorableObjectWrapper struct {
	// StoreID is the record id assigned by the last Persist or Load.
	StoreID string

	// ClassName is the fully-qualified constructor name.
	ClassName string

	// CodePath is the local path to the defining code file. Mutually
	// exclusive with ImportPath.
	CodePath string

	// ImportPath is an import path resolvable in the target runtime.
	ImportPath string

	// InitArgs are literal constructor arguments.
	InitArgs map[string]any

	// ConfigArgs map constructor argument names to configuration lookup
	// keys, resolved at restore time.
	ConfigArgs map[string]string

	// RefArgNames declares the reference arguments the constructor needs.
	// The set is fixed at save time and must match exactly on restore.
	RefArgNames []string

	// Instance is the live object, set by RestoreInstance or by the caller
	// before persisting.
	Instance any
}

// Persist validates the descriptor, writes the code blob if present, then
// writes the descriptor record and returns its fresh id. Validation errors
// surface before any store mutation.
func (w *RestorableObjectWrapper) Persist(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (string, error) {
	rec, err := w.encodeRecord(ctx, blobs)
	if err != nil {
		return "", err
	}

	id, err := records.SaveDict(ctx, rec, KindRestorableObject, "")
	if err != nil {
		return "", fmt.Errorf("failed to save descriptor record: %w", err)
	}

	w.StoreID = id
	return id, nil
}

// encodeRecord builds the descriptor record, uploading the code blob. The
// code-reference invariant is checked before anything is written.
func (w *RestorableObjectWrapper) encodeRecord(ctx context.Context, blobs persistence.BlobStore) (persistence.Record, error) {
	if err := validateCodeRef(w.CodePath, w.ImportPath); err != nil {
		return nil, err
	}
	if w.ClassName == "" {
		return nil, fmt.Errorf("descriptor class name is required")
	}

	rec := persistence.Record{
		fieldClassName:   w.ClassName,
		fieldInitArgs:    w.InitArgs,
		fieldConfigArgs:  w.ConfigArgs,
		fieldRefTypeArgs: w.RefArgNames,
	}

	if w.CodePath != "" {
		codeID, err := blobs.SaveFile(ctx, w.CodePath)
		if err != nil {
			return nil, fmt.Errorf("failed to store code blob: %w", err)
		}
		rec[fieldCodeFile] = codeID
	} else {
		rec[fieldImportCmd] = w.ImportPath
	}

	return rec, nil
}

// LoadRestorableObjectWrapper rebuilds a data-only wrapper from a stored
// descriptor. A referenced code blob is materialized under restoreRoot.
func LoadRestorableObjectWrapper(ctx context.Context, id string, blobs persistence.BlobStore, records persistence.RecordStore, restoreRoot string) (*RestorableObjectWrapper, error) {
	rec, err := records.RecoverDict(ctx, id, KindRestorableObject)
	if err != nil {
		return nil, err
	}

	w := &RestorableObjectWrapper{StoreID: id}
	if err := w.decodeRecord(ctx, rec, blobs, restoreRoot); err != nil {
		return nil, err
	}
	return w, nil
}

// decodeRecord populates the wrapper from a descriptor record, recovering
// the code blob into restoreRoot.
func (w *RestorableObjectWrapper) decodeRecord(ctx context.Context, rec persistence.Record, blobs persistence.BlobStore, restoreRoot string) error {
	var err error
	if w.ClassName, err = stringField(rec, fieldClassName); err != nil {
		return err
	}
	if w.InitArgs, err = mapField(rec, fieldInitArgs); err != nil {
		return err
	}
	if w.ConfigArgs, err = stringMapField(rec, fieldConfigArgs); err != nil {
		return err
	}
	if w.RefArgNames, err = stringSliceField(rec, fieldRefTypeArgs); err != nil {
		return err
	}
	if w.ImportPath, err = stringField(rec, fieldImportCmd); err != nil {
		return err
	}

	codeID, err := stringField(rec, fieldCodeFile)
	if err != nil {
		return err
	}
	if codeID != "" {
		// Per-blob subdirectory keeps sibling recoveries from colliding
		path, err := blobs.RecoverFile(ctx, codeID, filepath.Join(restoreRoot, codeID))
		if err != nil {
			return fmt.Errorf("failed to recover code blob: %w", err)
		}
		w.CodePath = path
	}

	return nil
}

// RestoreInstance performs late-bound construction: it validates the
// reference-argument set, resolves config arguments against the supplied
// resolver, makes recovered code resolvable through the per-call resolution
// context, and instantiates the object through the registry.
func (w *RestorableObjectWrapper) RestoreInstance(rctx *registry.ResolutionContext, reg registry.Registry, resolver config.Resolver, refArgs map[string]any) error {
	if err := w.checkRefArgs(refArgs); err != nil {
		return err
	}

	args, err := w.mergedArgs(resolver)
	if err != nil {
		return err
	}

	if w.CodePath != "" && rctx != nil {
		if err := rctx.AddSearchPath(filepath.Dir(w.CodePath)); err != nil {
			return err
		}
	}

	instance, err := reg.Construct(rctx, w.ClassName, args, refArgs)
	if err != nil {
		return err
	}

	w.Instance = instance
	return nil
}

// checkRefArgs verifies the supplied reference arguments match the declared
// name set exactly.
func (w *RestorableObjectWrapper) checkRefArgs(refArgs map[string]any) error {
	declared := make(map[string]bool, len(w.RefArgNames))
	for _, name := range w.RefArgNames {
		declared[name] = true
	}

	mismatch := len(refArgs) != len(declared)
	if !mismatch {
		for name := range refArgs {
			if !declared[name] {
				mismatch = true
				break
			}
		}
	}
	if !mismatch {
		return nil
	}

	given := make([]string, 0, len(refArgs))
	for name := range refArgs {
		given = append(given, name)
	}
	return &RefArgMismatchError{
		Expected: append([]string(nil), w.RefArgNames...),
		Given:    given,
	}
}

// mergedArgs combines literal init args with config-resolved values.
// Resolution happens at restore time, so the same record can be
// reconstructed against different deployment configs.
func (w *RestorableObjectWrapper) mergedArgs(resolver config.Resolver) (map[string]any, error) {
	args := make(map[string]any, len(w.InitArgs)+len(w.ConfigArgs))
	for k, v := range w.InitArgs {
		args[k] = v
	}

	if len(w.ConfigArgs) == 0 {
		return args, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("descriptor declares config arguments but no resolver was supplied")
	}

	for name, key := range w.ConfigArgs {
		value, err := resolver.Lookup(key)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config argument %s: %w", name, err)
		}
		args[name] = value
	}

	return args, nil
}

// SizeInBytes sums the descriptor record size and every referenced blob,
// using store metadata only.
func (w *RestorableObjectWrapper) SizeInBytes(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (int64, error) {
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

	for _, key := range []string{fieldCodeFile, fieldStateFile} {
		blobID, err := stringField(rec, key)
		if err != nil {
			return 0, err
		}
		if blobID == "" {
			continue
		}
		blobSize, err := blobs.FileSize(ctx, blobID)
		if err != nil {
			return 0, err
		}
		size += blobSize
	}

	return size, nil
}
