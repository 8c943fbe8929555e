// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/modelvault/modelvault/environment"
	"github.com/modelvault/modelvault/persistence"
	"github.com/modelvault/modelvault/registry"
	"github.com/modelvault/modelvault/schema"
)

// testNet is a minimal layered model with named weight tensors.
type testNet struct {
	layers  int
	weights map[string][]float64
}

func newTestNet(layers int) *testNet {
	weights := make(map[string][]float64, layers)
	for i := 0; i < layers; i++ {
		weights[fmt.Sprintf("layer%d.weight", i)] = []float64{0, 0, 0}
	}
	return &testNet{layers: layers, weights: weights}
}

func (n *testNet) WeightState() map[string][]float64 {
	return n.weights
}

func (n *testNet) ApplyWeightState(state map[string][]float64) error {
	n.weights = state
	return nil
}

func netRegistry() *registry.MapRegistry {
	reg := registry.NewMapRegistry()
	reg.Register("nets.Net", func(args, _ map[string]any) (any, error) {
		layers := 1
		if v, ok := args["layers"].(float64); ok {
			layers = int(v)
		} else if v, ok := args["layers"].(int); ok {
			layers = v
		}
		return newTestNet(layers), nil
	})
	return reg
}

type testEnv struct {
	svc     *Service
	blobs   persistence.BlobStore
	records persistence.RecordStore
	tmpRoot string
}

func newTestService(t *testing.T, reg registry.Registry) *testEnv {
	t.Helper()

	blobs, err := persistence.NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}
	records, closeFn, err := persistence.OpenBadgerRecordStore("")
	if err != nil {
		t.Fatalf("OpenBadgerRecordStore: %v", err)
	}
	t.Cleanup(func() {
		if err := closeFn(); err != nil {
			t.Errorf("failed to close badger: %v", err)
		}
	})

	tmpRoot := filepath.Join(t.TempDir(), "staging")
	svc, err := New(blobs, records, reg, GobWeightCodec{}, tmpRoot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{svc: svc, blobs: blobs, records: records, tmpRoot: tmpRoot}
}

func writeNetCode(t *testing.T) (codePath, importRoot string) {
	t.Helper()
	importRoot = t.TempDir()
	codePath = filepath.Join(importRoot, "nets", "net.go")
	if err := os.MkdirAll(filepath.Dir(codePath), 0o750); err != nil {
		t.Fatalf("failed to create code directory: %v", err)
	}
	if err := os.WriteFile(codePath, []byte("package nets"), 0o600); err != nil {
		t.Fatalf("failed to write code file: %v", err)
	}
	return codePath, importRoot
}

func buildSaveInfo(t *testing.T, model any, codePath, importRoot string) *ModelSaveInfo {
	t.Helper()
	info, err := NewSaveInfoBuilder().
		AddModelInfo(model, "mnist-net", codePath, importRoot, "nets.Net").
		AddInitArgs(map[string]any{"layers": 2}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return info
}

func assertStagingEmpty(t *testing.T, tmpRoot string) {
	t.Helper()
	entries, err := os.ReadDir(tmpRoot)
	if err != nil {
		t.Fatalf("failed to read staging root: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("staging files left behind: %v", names)
	}
}

func TestSaveRecoverScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	model := newTestNet(2)
	model.weights["layer0.weight"] = []float64{0.1, 0.2, 0.3}
	model.weights["layer1.weight"] = []float64{0.4, 0.5, 0.6}

	firstID, err := env.svc.SaveModel(ctx, buildSaveInfo(t, model, codePath, importRoot))
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	ids, err := env.svc.SavedModelIDs(ctx)
	if err != nil {
		t.Fatalf("SavedModelIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != firstID {
		t.Fatalf("expected exactly [%s], got %v", firstID, ids)
	}

	recovered, err := env.svc.RecoverModel(ctx, firstID)
	if err != nil {
		t.Fatalf("RecoverModel: %v", err)
	}
	recoveredNet, ok := recovered.(*testNet)
	if !ok {
		t.Fatalf("expected *testNet, got %T", recovered)
	}
	if !reflect.DeepEqual(recoveredNet.weights, model.weights) {
		t.Errorf("recovered weights differ: %v", recoveredNet.weights)
	}

	// Train further, then save as a new version
	model.weights["layer0.weight"] = []float64{1.1, 1.2, 1.3}
	secondID, err := env.svc.SaveVersion(ctx, model, firstID)
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	secondInfo, err := env.svc.GetModelInfo(ctx, secondID)
	if err != nil {
		t.Fatalf("GetModelInfo: %v", err)
	}
	if secondInfo.DerivedFrom != firstID {
		t.Errorf("expected derived_from %s, got %s", firstID, secondInfo.DerivedFrom)
	}
	if secondInfo.Name != "mnist-net" {
		t.Errorf("version lost base name: %s", secondInfo.Name)
	}

	ids, err = env.svc.SavedModelIDs(ctx)
	if err != nil {
		t.Fatalf("SavedModelIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected two model ids, got %v", ids)
	}

	// The lineage walk ends at a root version in one step
	firstInfo, err := env.svc.GetModelInfo(ctx, firstID)
	if err != nil {
		t.Fatalf("GetModelInfo: %v", err)
	}
	if firstInfo.DerivedFrom != "" {
		t.Errorf("root version has derived_from %s", firstInfo.DerivedFrom)
	}

	// The version recovers with its own weights
	recoveredVersion, err := env.svc.RecoverModel(ctx, secondID)
	if err != nil {
		t.Fatalf("RecoverModel version: %v", err)
	}
	if !reflect.DeepEqual(recoveredVersion.(*testNet).weights, model.weights) {
		t.Error("recovered version weights differ from saved")
	}

	assertStagingEmpty(t, env.tmpRoot)
}

func TestSaveModelValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	tests := []struct {
		name string
		info *ModelSaveInfo
	}{
		{"missing model", &ModelSaveInfo{Name: "n", CodePath: codePath, ImportRoot: importRoot, GenerateCall: "nets.Net"}},
		{"missing name", &ModelSaveInfo{Model: newTestNet(1), CodePath: codePath, ImportRoot: importRoot, GenerateCall: "nets.Net"}},
		{"missing code", &ModelSaveInfo{Model: newTestNet(1), Name: "n", ImportRoot: importRoot, GenerateCall: "nets.Net"}},
		{"code path not a file", &ModelSaveInfo{Model: newTestNet(1), Name: "n", CodePath: importRoot, ImportRoot: importRoot, GenerateCall: "nets.Net"}},
		{"missing generate call", &ModelSaveInfo{Model: newTestNet(1), Name: "n", CodePath: codePath, ImportRoot: importRoot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.SaveModel(ctx, tt.info); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// Rejected saves must not leave records behind
	ids, err := env.svc.SavedModelIDs(ctx)
	if err != nil {
		t.Fatalf("SavedModelIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("rejected saves produced model records: %v", ids)
	}
}

func TestRecoverUnknownModel(t *testing.T) {
	env := newTestService(t, netRegistry())

	_, err := env.svc.RecoverModel(context.Background(), "no-such-id")
	if !errors.Is(err, ErrUnknownModelID) {
		t.Errorf("expected ErrUnknownModelID, got %v", err)
	}
}

func TestSaveVersionUnknownBase(t *testing.T) {
	env := newTestService(t, netRegistry())

	_, err := env.svc.SaveVersion(context.Background(), newTestNet(1), "no-such-id")
	if !errors.Is(err, ErrUnknownModelID) {
		t.Errorf("expected ErrUnknownModelID, got %v", err)
	}
}

func TestRecoverWeightStateMismatch(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	id, err := env.svc.SaveModel(ctx, buildSaveInfo(t, newTestNet(2), codePath, importRoot))
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	// A registry that reconstructs a differently shaped net makes the
	// stored snapshot fail key validation.
	badReg := registry.NewMapRegistry()
	badReg.Register("nets.Net", func(_, _ map[string]any) (any, error) {
		return newTestNet(3), nil
	})
	badSvc, err := New(env.blobs, env.records, badReg, GobWeightCodec{}, filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = badSvc.RecoverModel(ctx, id)
	var corrupt *CorruptArchiveError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptArchiveError, got %v", err)
	}
	if corrupt.ArchiveID == "" {
		t.Error("error does not identify the archive")
	}
}

// failingCodec fails every weight save to exercise cleanup on error paths.
type failingCodec struct{}

func (failingCodec) SaveWeights(any, string) error { return errors.New("induced save failure") }
func (failingCodec) LoadWeights(any, string) error { return errors.New("induced load failure") }

func TestCleanupAfterFailedSave(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	failing, err := New(env.blobs, env.records, netRegistry(), failingCodec{}, env.tmpRoot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := failing.SaveModel(ctx, buildSaveInfo(t, newTestNet(2), codePath, importRoot)); err == nil {
		t.Fatal("expected save to fail")
	}
	assertStagingEmpty(t, env.tmpRoot)

	// No model record became reachable from the failed call
	ids, err := env.svc.SavedModelIDs(ctx)
	if err != nil {
		t.Fatalf("SavedModelIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("failed save produced model records: %v", ids)
	}
}

func TestModelSaveSize(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	smallID, err := env.svc.SaveModel(ctx, buildSaveInfo(t, newTestNet(2), codePath, importRoot))
	if err != nil {
		t.Fatalf("SaveModel small: %v", err)
	}

	big := newTestNet(2)
	for name := range big.weights {
		big.weights[name] = make([]float64, 4096)
	}
	bigID, err := env.svc.SaveModel(ctx, buildSaveInfo(t, big, codePath, importRoot))
	if err != nil {
		t.Fatalf("SaveModel big: %v", err)
	}

	smallSize, err := env.svc.ModelSaveSize(ctx, smallID)
	if err != nil {
		t.Fatalf("ModelSaveSize small: %v", err)
	}
	bigSize, err := env.svc.ModelSaveSize(ctx, bigID)
	if err != nil {
		t.Fatalf("ModelSaveSize big: %v", err)
	}

	if smallSize <= 0 {
		t.Errorf("expected positive size, got %d", smallSize)
	}
	if bigSize <= smallSize {
		t.Errorf("expected larger model to report larger size: %d <= %d", bigSize, smallSize)
	}

	if _, err := env.svc.ModelSaveSize(ctx, "no-such-id"); !errors.Is(err, ErrUnknownModelID) {
		t.Errorf("expected ErrUnknownModelID, got %v", err)
	}
}

func TestSaveModelWithInferenceInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t, netRegistry())
	codePath, importRoot := writeNetCode(t)

	dataLoader := &schema.RestorableObjectWrapper{
		ClassName:  "data.Loader",
		ImportPath: "example.com/data",
		InitArgs:   map[string]any{"batch_size": 64},
	}
	preProcessor := &schema.RestorableObjectWrapper{
		ClassName:  "data.Normalizer",
		ImportPath: "example.com/data",
	}

	info, err := NewSaveInfoBuilder().
		AddModelInfo(newTestNet(2), "mnist-net", codePath, importRoot, "nets.Net").
		AddInitArgs(map[string]any{"layers": 2}).
		AddInferenceInfo(dataLoader, preProcessor, environment.Track(ctx)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	id, err := env.svc.SaveModel(ctx, info)
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}

	saved, err := env.svc.GetModelInfo(ctx, id)
	if err != nil {
		t.Fatalf("GetModelInfo: %v", err)
	}
	if saved.InferenceInfoID == "" {
		t.Fatal("inference info was not persisted")
	}

	rec, err := env.records.RecoverDict(ctx, saved.InferenceInfoID, KindInferenceInfo)
	if err != nil {
		t.Fatalf("RecoverDict inference: %v", err)
	}
	for _, field := range []string{"data_loader", "pre_processor", "environment"} {
		if v, ok := rec[field].(string); !ok || v == "" {
			t.Errorf("inference record missing %s: %v", field, rec[field])
		}
	}
}
