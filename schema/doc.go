// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package schema implements the serialization contract for persisted
// entities and the restorable-object wrappers built on top of it.
//
// A SchemaObj turns itself into a structured record plus referenced blobs
// and can be rebuilt from a stored id. A RestorableObjectWrapper is a
// SchemaObj for runtime-reconstructible objects: it stores a type identity,
// a code reference (or a plain import path), constructor arguments, and
// optionally a binary state blob, and knows how to instantiate the live
// object from that description through a registry.
//
// The record field vocabulary (class_name, code_file, import_cmd,
// init_args, config_args, init_ref_type_args, state_file, state_dict) is
// the on-disk schema and must stay stable across versions.
package schema
