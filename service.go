// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/modelvault/modelvault/internal/archive"
	"github.com/modelvault/modelvault/internal/logging"
	"github.com/modelvault/modelvault/persistence"
	"github.com/modelvault/modelvault/registry"
)

// weightFileName is the weight snapshot's entry name inside the archive.
const weightFileName = "model"

// Service is the save/recover orchestrator. It is stateless across calls;
// every save or recover stages under a private directory named by a fresh
// store-generated id, so concurrent independent calls never interleave.
type Service struct {
	blobs    persistence.BlobStore
	records  persistence.RecordStore
	registry registry.Registry
	codec    WeightCodec
	tmpRoot  string
	log      zerolog.Logger
}

// New builds a Service. tmpRoot is the staging root for transient files
// and is created if missing.
func New(blobs persistence.BlobStore, records persistence.RecordStore, reg registry.Registry, codec WeightCodec, tmpRoot string) (*Service, error) {
	if blobs == nil || records == nil || reg == nil || codec == nil {
		return nil, fmt.Errorf("modelvault: blob store, record store, registry and codec are required")
	}
	if err := os.MkdirAll(tmpRoot, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}

	return &Service{
		blobs:    blobs,
		records:  records,
		registry: reg,
		codec:    codec,
		tmpRoot:  tmpRoot,
		log:      logging.Logger(),
	}, nil
}

// SaveModel stores a first model version: weight snapshot archive, code
// blob, recover record and model record. Returns the model record id. The
// id is returned only after everything it references is durably written.
func (s *Service) SaveModel(ctx context.Context, info *ModelSaveInfo) (string, error) {
	if err := validate.Struct(info); err != nil {
		return "", fmt.Errorf("invalid save info: %w", err)
	}
	return s.saveModel(ctx, info, "")
}

// SaveVersion stores a new version of an existing model. The constructor
// identity and code are taken unchanged from the base version; the weight
// snapshot is complete, lineage is recorded through derived_from.
func (s *Service) SaveVersion(ctx context.Context, model any, baseModelID string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("modelvault: model is required")
	}

	base, err := s.GetModelInfo(ctx, baseModelID)
	if err != nil {
		return "", err
	}
	recoverInfo, err := s.getRecoverInfo(ctx, base.RecoverInfoID)
	if err != nil {
		return "", err
	}

	// Materialize the base version's code so the archive layout matches
	// a first save. The recovered directory doubles as import root.
	codeDir := filepath.Join(s.tmpRoot, s.records.GenerateID())
	if err := os.MkdirAll(codeDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer s.cleanPath(codeDir)

	codePath, err := s.blobs.RecoverFile(ctx, recoverInfo.CodeID, codeDir)
	if err != nil {
		return "", fmt.Errorf("failed to recover base model code: %w", err)
	}

	info := &ModelSaveInfo{
		Model:        model,
		Name:         base.Name,
		CodePath:     codePath,
		ImportRoot:   codeDir,
		GenerateCall: recoverInfo.GenerateCall,
		InitArgs:     recoverInfo.InitArgs,
	}
	return s.saveModel(ctx, info, baseModelID)
}

// saveModel is the shared save path. Staging files are removed on every
// exit, success or failure.
func (s *Service) saveModel(ctx context.Context, info *ModelSaveInfo, derivedFrom string) (string, error) {
	stagingID := s.records.GenerateID()
	staging := filepath.Join(s.tmpRoot, stagingID)
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer s.cleanPath(staging)

	if err := s.codec.SaveWeights(info.Model, filepath.Join(staging, weightFileName)); err != nil {
		return "", fmt.Errorf("failed to save weight state: %w", err)
	}
	if err := mirrorCode(staging, info.CodePath, info.ImportRoot); err != nil {
		return "", err
	}

	zipPath := staging + ".zip"
	if err := archive.PackDir(staging, zipPath); err != nil {
		return "", fmt.Errorf("failed to build weight archive: %w", err)
	}
	defer s.cleanPath(zipPath)

	archiveID, err := s.blobs.SaveFile(ctx, zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to store weight archive: %w", err)
	}
	codeID, err := s.blobs.SaveFile(ctx, info.CodePath)
	if err != nil {
		return "", fmt.Errorf("failed to store model code: %w", err)
	}

	inferenceID := ""
	if info.Inference != nil {
		if inferenceID, err = s.persistInferenceInfo(ctx, info.Inference); err != nil {
			return "", err
		}
	}

	recoverRec := persistence.Record{
		fieldPickledModel: archiveID,
		fieldModelCode:    codeID,
		fieldGenerateCall: info.GenerateCall,
		fieldInitArgs:     info.InitArgs,
		fieldRecoverVal:   nil,
	}
	recoverID, err := s.records.SaveDict(ctx, recoverRec, KindRecoverT1, "")
	if err != nil {
		return "", fmt.Errorf("failed to save recover record: %w", err)
	}

	modelRec := persistence.Record{
		fieldName:          info.Name,
		fieldStoreType:     int(SaveTypePickledWeights),
		fieldRecoverInfo:   recoverID,
		fieldDerivedFrom:   nilIfEmpty(derivedFrom),
		fieldInferenceInfo: nilIfEmpty(inferenceID),
		fieldTrainInfo:     nil,
	}
	modelID, err := s.records.SaveDict(ctx, modelRec, KindModelInfo, "")
	if err != nil {
		return "", fmt.Errorf("failed to save model record: %w", err)
	}

	s.log.Info().
		Str("model_id", modelID).
		Str("name", info.Name).
		Str("derived_from", derivedFrom).
		Msg("Model version saved")

	return modelID, nil
}

// RecoverModel rebuilds the live model identified by modelID: constructor
// reconstruction through the registry, then weight state applied from the
// recovered archive. The working directory is removed on every exit.
func (s *Service) RecoverModel(ctx context.Context, modelID string) (any, error) {
	info, err := s.GetModelInfo(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if info.StoreType != SaveTypePickledWeights {
		return nil, fmt.Errorf("modelvault: unsupported store type %d for model %s", info.StoreType, modelID)
	}
	recoverInfo, err := s.getRecoverInfo(ctx, info.RecoverInfoID)
	if err != nil {
		return nil, err
	}

	workDir := filepath.Join(s.tmpRoot, s.records.GenerateID())
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer s.cleanPath(workDir)

	zipPath, err := s.blobs.RecoverFile(ctx, recoverInfo.ArchiveID, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to recover weight archive: %w", err)
	}

	unpacked := filepath.Join(workDir, "unpacked")
	if err := archive.Unpack(zipPath, unpacked); err != nil {
		return nil, &CorruptArchiveError{ArchiveID: recoverInfo.ArchiveID, Reason: "failed to unpack", Err: err}
	}

	rctx := registry.NewResolutionContext()
	defer rctx.Close() //nolint:errcheck // Close only discards paths
	if err := rctx.AddSearchPath(unpacked); err != nil {
		return nil, err
	}

	model, err := s.registry.Construct(rctx, recoverInfo.GenerateCall, recoverInfo.InitArgs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct model %s: %w", modelID, err)
	}

	weightPath := filepath.Join(unpacked, weightFileName)
	if _, err := os.Stat(weightPath); err != nil {
		return nil, &CorruptArchiveError{ArchiveID: recoverInfo.ArchiveID, Reason: "weight snapshot missing", Err: err}
	}
	if err := s.codec.LoadWeights(model, weightPath); err != nil {
		return nil, &CorruptArchiveError{ArchiveID: recoverInfo.ArchiveID, Reason: "weight state rejected", Err: err}
	}

	s.log.Debug().Str("model_id", modelID).Msg("Model recovered")
	return model, nil
}

// SavedModelIDs lists the ids of every stored model version.
func (s *Service) SavedModelIDs(ctx context.Context) ([]string, error) {
	return s.records.AllDictIDs(ctx, KindModelInfo)
}

// SavedModelInfos loads the model record of every stored version.
func (s *Service) SavedModelInfos(ctx context.Context) ([]*ModelInfo, error) {
	ids, err := s.SavedModelIDs(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]*ModelInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.GetModelInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetModelInfo loads one model record. Returns ErrUnknownModelID when the
// id is absent from the record store.
func (s *Service) GetModelInfo(ctx context.Context, modelID string) (*ModelInfo, error) {
	rec, err := s.records.RecoverDict(ctx, modelID, KindModelInfo)
	if err != nil {
		if errors.Is(err, persistence.ErrUnknownID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModelID, modelID)
		}
		return nil, err
	}
	return decodeModelInfo(modelID, rec)
}

// ModelSaveSize reports the total bytes held in the stores for one model
// version: its records plus every referenced blob, from store metadata.
func (s *Service) ModelSaveSize(ctx context.Context, modelID string) (int64, error) {
	info, err := s.GetModelInfo(ctx, modelID)
	if err != nil {
		return 0, err
	}

	size, err := s.records.DictSize(ctx, modelID, KindModelInfo)
	if err != nil {
		return 0, err
	}

	recoverSize, err := s.records.DictSize(ctx, info.RecoverInfoID, KindRecoverT1)
	if err != nil {
		return 0, err
	}
	size += recoverSize

	recoverInfo, err := s.getRecoverInfo(ctx, info.RecoverInfoID)
	if err != nil {
		return 0, err
	}
	for _, blobID := range []string{recoverInfo.ArchiveID, recoverInfo.CodeID} {
		blobSize, err := s.blobs.FileSize(ctx, blobID)
		if err != nil {
			return 0, err
		}
		size += blobSize
	}

	if info.InferenceInfoID != "" {
		inferenceSize, err := s.records.DictSize(ctx, info.InferenceInfoID, KindInferenceInfo)
		if err != nil {
			return 0, err
		}
		size += inferenceSize
	}

	return size, nil
}

// persistInferenceInfo stores the inference collaborators and the record
// referencing them.
func (s *Service) persistInferenceInfo(ctx context.Context, inf *InferenceSaveInfo) (string, error) {
	rec := persistence.Record{}

	if inf.DataLoader != nil {
		id, err := inf.DataLoader.Persist(ctx, s.blobs, s.records)
		if err != nil {
			return "", fmt.Errorf("failed to persist dataloader: %w", err)
		}
		rec[fieldDataLoader] = id
	}
	if inf.PreProcessor != nil {
		id, err := inf.PreProcessor.Persist(ctx, s.blobs, s.records)
		if err != nil {
			return "", fmt.Errorf("failed to persist pre-processor: %w", err)
		}
		rec[fieldPreProcessor] = id
	}
	if inf.Environment != nil {
		id, err := inf.Environment.Persist(ctx, s.blobs, s.records)
		if err != nil {
			return "", fmt.Errorf("failed to persist environment: %w", err)
		}
		rec[fieldEnvironment] = id
	}

	id, err := s.records.SaveDict(ctx, rec, KindInferenceInfo, "")
	if err != nil {
		return "", fmt.Errorf("failed to save inference record: %w", err)
	}
	return id, nil
}

// getRecoverInfo loads and decodes one recover record.
func (s *Service) getRecoverInfo(ctx context.Context, recoverID string) (*RecoverInfo, error) {
	rec, err := s.records.RecoverDict(ctx, recoverID, KindRecoverT1)
	if err != nil {
		return nil, fmt.Errorf("failed to load recover record %s: %w", recoverID, err)
	}

	info := &RecoverInfo{}
	if info.ArchiveID, err = recordString(rec, fieldPickledModel); err != nil {
		return nil, err
	}
	if info.CodeID, err = recordString(rec, fieldModelCode); err != nil {
		return nil, err
	}
	if info.GenerateCall, err = recordString(rec, fieldGenerateCall); err != nil {
		return nil, err
	}
	if args, ok := rec[fieldInitArgs].(map[string]any); ok {
		info.InitArgs = args
	}
	return info, nil
}

func decodeModelInfo(id string, rec persistence.Record) (*ModelInfo, error) {
	info := &ModelInfo{ID: id}

	var err error
	if info.Name, err = recordString(rec, fieldName); err != nil {
		return nil, err
	}
	if info.RecoverInfoID, err = recordString(rec, fieldRecoverInfo); err != nil {
		return nil, err
	}
	if info.DerivedFrom, err = recordString(rec, fieldDerivedFrom); err != nil {
		return nil, err
	}
	if info.InferenceInfoID, err = recordString(rec, fieldInferenceInfo); err != nil {
		return nil, err
	}
	if info.TrainInfoID, err = recordString(rec, fieldTrainInfo); err != nil {
		return nil, err
	}

	// JSON round trips numbers as float64
	switch v := rec[fieldStoreType].(type) {
	case float64:
		info.StoreType = SaveType(v)
	case int:
		info.StoreType = SaveType(v)
	default:
		return nil, fmt.Errorf("model record %s has invalid store type %T", id, rec[fieldStoreType])
	}

	return info, nil
}

func recordString(rec persistence.Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record field %s has type %T, expected string", key, v)
	}
	return s, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mirrorCode copies the code file into the staging directory at its path
// relative to the import root, so the archive reproduces the source layout.
func mirrorCode(staging, codePath, importRoot string) error {
	absCode, err := filepath.Abs(codePath)
	if err != nil {
		return fmt.Errorf("failed to resolve code path: %w", err)
	}
	absRoot, err := filepath.Abs(importRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve import root: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absCode)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("code path %s is outside import root %s", codePath, importRoot)
	}

	dest := filepath.Join(staging, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create code directory: %w", err)
	}
	return copyLocalFile(absCode, dest)
}

func copyLocalFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // Read-only file

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close() //nolint:errcheck // Close error captured below

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// cleanPath removes a transient file or directory, logging on failure.
// Save and recover correctness never depends on it succeeding.
func (s *Service) cleanPath(path string) {
	if err := os.RemoveAll(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to remove staging files")
	}
}
