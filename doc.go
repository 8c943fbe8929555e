// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package modelvault is a versioned persistence and reconstruction layer
// for trained model artifacts. A model is stored as a weight snapshot
// archive plus the code reference and constructor identity needed to
// rebuild a live instance later, possibly in a different process. New
// versions reference their base through a derived_from lineage chain.
//
// The Service type is the entry point. It composes a blob store and a
// record store (package persistence), a constructor registry (package
// registry), and a pluggable weight codec.
package modelvault
