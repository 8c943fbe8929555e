// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/modelvault/modelvault/environment"
	"github.com/modelvault/modelvault/schema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ModelSaveInfo is the validated input of a save call.
type ModelSaveInfo struct {
	// Model is the live model whose weights are persisted.
	Model any `validate:"required"`

	// Name identifies the model for humans.
	Name string `validate:"required"`

	// CodePath is the local path to the model's defining code file.
	CodePath string `validate:"required,file"`

	// ImportRoot is the directory the code path is mirrored relative to
	// inside the weight archive.
	ImportRoot string `validate:"required,dir"`

	// GenerateCall is the registered constructor identity used to rebuild
	// the model on recover.
	GenerateCall string `validate:"required"`

	// InitArgs are the constructor arguments recorded with the version.
	InitArgs map[string]any

	// Inference optionally attaches inference reproduction info.
	Inference *InferenceSaveInfo
}

// InferenceSaveInfo bundles the objects needed to reproduce inference runs
// against a stored version.
type InferenceSaveInfo struct {
	DataLoader   *schema.RestorableObjectWrapper
	PreProcessor *schema.RestorableObjectWrapper
	Environment  *environment.Environment
}

// SaveInfoBuilder assembles a ModelSaveInfo step by step. Build validates
// the collected fields, so callers get one error surface for incomplete
// input.
type SaveInfoBuilder struct {
	info ModelSaveInfo
}

func NewSaveInfoBuilder() *SaveInfoBuilder {
	return &SaveInfoBuilder{}
}

// AddModelInfo sets the model itself and its code identity.
func (b *SaveInfoBuilder) AddModelInfo(model any, name, codePath, importRoot, generateCall string) *SaveInfoBuilder {
	b.info.Model = model
	b.info.Name = name
	b.info.CodePath = codePath
	b.info.ImportRoot = importRoot
	b.info.GenerateCall = generateCall
	return b
}

// AddInitArgs records the constructor arguments for the version.
func (b *SaveInfoBuilder) AddInitArgs(args map[string]any) *SaveInfoBuilder {
	b.info.InitArgs = args
	return b
}

// AddInferenceInfo attaches dataloader, pre-processor and environment.
func (b *SaveInfoBuilder) AddInferenceInfo(dataLoader, preProcessor *schema.RestorableObjectWrapper, env *environment.Environment) *SaveInfoBuilder {
	b.info.Inference = &InferenceSaveInfo{
		DataLoader:   dataLoader,
		PreProcessor: preProcessor,
		Environment:  env,
	}
	return b
}

// Build validates the collected save info and returns it.
func (b *SaveInfoBuilder) Build() (*ModelSaveInfo, error) {
	if err := validate.Struct(&b.info); err != nil {
		return nil, fmt.Errorf("invalid save info: %w", err)
	}
	info := b.info
	return &info, nil
}
