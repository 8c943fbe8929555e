// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

// SaveType selects the recovery strategy recorded for a model version.
type SaveType int

const (
	// SaveTypePickledWeights stores a complete weight snapshot archive.
	SaveTypePickledWeights SaveType = 1

	// SaveTypeArchitectureAndWeights stores architecture metadata and
	// weights separately. Reserved, not yet produced by any save path.
	SaveTypeArchitectureAndWeights SaveType = 2

	// SaveTypeProvenance stores the information needed to re-train the
	// version instead of its weights. Reserved.
	SaveTypeProvenance SaveType = 3
)

// Record kinds used by the orchestrator.
const (
	KindModelInfo     = "model_info"
	KindRecoverT1     = "recover_t1"
	KindInferenceInfo = "inference_info"
)

// Model record field names. Frozen for cross-version compatibility.
const (
	fieldName          = "name"
	fieldStoreType     = "store_type"
	fieldRecoverInfo   = "recover_info"
	fieldDerivedFrom   = "derived_from"
	fieldInferenceInfo = "inference_info"
	fieldTrainInfo     = "train_info"
)

// Recover record field names.
const (
	fieldPickledModel = "pickled_model"
	fieldModelCode    = "model_code"
	fieldGenerateCall = "generate_call"
	fieldRecoverVal   = "recover_val"
	fieldInitArgs     = "init_args"
)

// Inference record field names.
const (
	fieldDataLoader   = "data_loader"
	fieldPreProcessor = "pre_processor"
	fieldEnvironment  = "environment"
)

// ModelInfo is the top-level record of one stored model version.
type ModelInfo struct {
	// ID is the model record id returned by SaveModel or SaveVersion.
	ID string

	// Name identifies the model for humans. Versions of the same model
	// share it.
	Name string

	// StoreType is the recovery strategy for this version.
	StoreType SaveType

	// RecoverInfoID references the recover record holding blob ids and
	// the constructor identity.
	RecoverInfoID string

	// DerivedFrom is the base model record id, empty for a root version.
	DerivedFrom string

	// InferenceInfoID references the optional inference record, empty
	// when none was saved.
	InferenceInfoID string

	// TrainInfoID is reserved for provenance saves.
	TrainInfoID string
}

// RecoverInfo holds everything needed to rebuild one version: the weight
// archive blob, the standalone code blob, and the constructor identity.
type RecoverInfo struct {
	ArchiveID    string
	CodeID       string
	GenerateCall string
	InitArgs     map[string]any
}
