// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package persistence

import (
	"context"
	"errors"
)

// Record is a structured key/value document. Values are primitives,
// identifiers (strings), or nested records. Records round-trip through JSON,
// so numeric values load back as float64.
type Record = map[string]any

var (
	// ErrUnknownID is returned when a blob or record id is not present in
	// the store.
	ErrUnknownID = errors.New("persistence: unknown id")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached or fails at the transport level. It is surfaced unchanged;
	// retry policy belongs to the store implementation, not its callers.
	ErrStoreUnavailable = errors.New("persistence: store unavailable")
)

// BlobStore stores immutable byte sequences under store-generated ids.
type BlobStore interface {
	// SaveFile copies the file at localPath into the store and returns the
	// id assigned to it. The local file is left untouched; cleaning it up
	// is the caller's responsibility.
	SaveFile(ctx context.Context, localPath string) (string, error)

	// RecoverFile materializes the blob identified by id into destDir,
	// preserving the original file name, and returns the resulting path.
	RecoverFile(ctx context.Context, id, destDir string) (string, error)

	// FileSize returns the size of the stored blob in bytes without
	// materializing it.
	FileSize(ctx context.Context, id string) (int64, error)
}

// RecordStore stores structured records under store-generated ids, grouped
// by a record-kind tag.
type RecordStore interface {
	// SaveDict stores record under kind. If id is empty a fresh id is
	// generated; a non-empty id must come from a prior GenerateID call.
	// Returns the id the record was stored under.
	SaveDict(ctx context.Context, record Record, kind, id string) (string, error)

	// RecoverDict returns the record stored under id and kind.
	RecoverDict(ctx context.Context, id, kind string) (Record, error)

	// AllDictIDs enumerates the ids of every record stored under kind.
	AllDictIDs(ctx context.Context, kind string) ([]string, error)

	// DictSize returns the encoded size in bytes of the record stored
	// under id and kind.
	DictSize(ctx context.Context, id, kind string) (int64, error)

	// GenerateID mints a fresh, globally unique identifier. Ids are never
	// reused and are collision-free under concurrent callers.
	GenerateID() string
}
