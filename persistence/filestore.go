// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package persistence

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileBlobStore is a BlobStore backed by the local filesystem. Each blob
// lives in its own directory named by the blob id, which preserves the
// original file name across save/recover cycles.
//
// Layout:
//
//	<root>/
//	├── 3f8a.../
//	│   └── model.zip
//	└── 9c1b.../
//	    └── net.go
type FileBlobStore struct {
	root string
}

// NewFileBlobStore creates a blob store rooted at dir, creating the
// directory if needed.
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob store root directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob store root: %w", err)
	}
	return &FileBlobStore{root: dir}, nil
}

// SaveFile copies the file at localPath into the store under a fresh id.
func (s *FileBlobStore) SaveFile(_ context.Context, localPath string) (string, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("cannot store directory %s as blob", localPath)
	}

	id := uuid.NewString()
	blobDir := filepath.Join(s.root, id)
	if err := os.MkdirAll(blobDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	dest := filepath.Join(blobDir, filepath.Base(localPath))
	if err := copyFile(localPath, dest); err != nil {
		// Leave no half-written blob behind the returned id
		os.RemoveAll(blobDir) //nolint:errcheck // Best effort cleanup on error
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return id, nil
}

// RecoverFile copies the blob identified by id into destDir and returns the
// resulting local path.
func (s *FileBlobStore) RecoverFile(_ context.Context, id, destDir string) (string, error) {
	src, err := s.blobPath(id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	dest := filepath.Join(destDir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("failed to recover blob %s: %w", id, err)
	}

	return dest, nil
}

// FileSize returns the stored blob's size from file metadata.
func (s *FileBlobStore) FileSize(_ context.Context, id string) (int64, error) {
	src, err := s.blobPath(id)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return info.Size(), nil
}

// blobPath resolves the single file stored under id.
func (s *FileBlobStore) blobPath(id string) (string, error) {
	blobDir := filepath.Join(s.root, id)
	entries, err := os.ReadDir(blobDir)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: blob %s", ErrUnknownID, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(entries) != 1 || entries[0].IsDir() {
		return "", fmt.Errorf("%w: blob directory %s is corrupt", ErrStoreUnavailable, id)
	}
	return filepath.Join(blobDir, entries[0].Name()), nil
}

// copyFile copies a file from src to dst, fsyncing the destination.
//
//nolint:gosec // G304: paths are store-internal or validated by caller
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close() //nolint:errcheck // Best effort cleanup

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		destFile.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}

	if err := destFile.Sync(); err != nil {
		destFile.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}

	return destFile.Close()
}
