// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestFileBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}

	src := writeTestFile(t, t.TempDir(), "weights.bin", "binary-weight-state")

	id, err := store.SaveFile(ctx, src)
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty blob id")
	}

	destDir := t.TempDir()
	recovered, err := store.RecoverFile(ctx, id, destDir)
	if err != nil {
		t.Fatalf("RecoverFile: %v", err)
	}

	if filepath.Base(recovered) != "weights.bin" {
		t.Errorf("expected original file name preserved, got %s", filepath.Base(recovered))
	}
	data, err := os.ReadFile(recovered)
	if err != nil {
		t.Fatalf("failed to read recovered file: %v", err)
	}
	if string(data) != "binary-weight-state" {
		t.Errorf("recovered content mismatch: %q", data)
	}
}

func TestFileBlobStoreFileSize(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}

	content := "0123456789"
	src := writeTestFile(t, t.TempDir(), "blob", content)

	id, err := store.SaveFile(ctx, src)
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	size, err := store.FileSize(ctx, id)
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size)
	}
}

func TestFileBlobStoreDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}

	src := writeTestFile(t, t.TempDir(), "blob", "same content")

	first, err := store.SaveFile(ctx, src)
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	second, err := store.SaveFile(ctx, src)
	if err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	// No dedup is guaranteed: every save produces a new id
	if first == second {
		t.Errorf("expected distinct ids for repeated saves, got %s twice", first)
	}
}

func TestFileBlobStoreUnknownID(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}

	if _, err := store.RecoverFile(ctx, "no-such-id", t.TempDir()); !errors.Is(err, ErrUnknownID) {
		t.Errorf("RecoverFile: expected ErrUnknownID, got %v", err)
	}
	if _, err := store.FileSize(ctx, "no-such-id"); !errors.Is(err, ErrUnknownID) {
		t.Errorf("FileSize: expected ErrUnknownID, got %v", err)
	}
}

func TestFileBlobStoreRejectsDirectory(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBlobStore: %v", err)
	}

	if _, err := store.SaveFile(ctx, t.TempDir()); err == nil {
		t.Error("expected error when saving a directory as blob")
	}
}
