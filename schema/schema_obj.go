// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"context"

	"github.com/modelvault/modelvault/persistence"
)

// SchemaObj is the serialization contract every persisted entity implements.
//
// Persist is not idempotent: every call writes a new record under a new id,
// no dedup is guaranteed. Loading is done by per-type Load functions taking
// a stored id plus a restore root into which referenced blobs are
// materialized.
type SchemaObj interface {
	// Persist writes all owned blobs, then the object's own record
	// referencing them, and returns the new record id.
	Persist(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (string, error)

	// SizeInBytes returns the record's encoded size plus the size of every
	// referenced blob, read from store metadata only.
	SizeInBytes(ctx context.Context, blobs persistence.BlobStore, records persistence.RecordStore) (int64, error)
}
