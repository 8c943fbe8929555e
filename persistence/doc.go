// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package persistence defines the persistence port consumed by every layer
// above it: a blob store for immutable byte sequences addressed by id, and a
// record store for structured documents addressed by id and grouped by a
// record kind.
//
// Two implementations ship with the module: FileBlobStore keeps blobs on the
// local filesystem under per-id directories, and BadgerRecordStore keeps
// records as JSON documents in an embedded BadgerDB. Both mint identifiers
// on the store side (UUIDs), so concurrent callers never collide.
//
// Records are immutable once written: a new version of anything is a new
// record under a new id. Stores never mutate documents in place.
package persistence
