// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

// Package archive packs model staging directories into zip archives and
// unpacks them again on recovery.
//
// Archive layout produced by a model save:
//
//	<staging-id>.zip
//	├── model                (binary weight state)
//	└── nets/small/net.go    (source fragment mirroring the import path)
//
// Unpacking guards against path traversal and decompression bombs.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

// maxFileSize caps a single extracted file to guard against decompression
// bombs (1GB).
const maxFileSize = 1 << 30

// ErrCorrupt is returned when an archive cannot be opened or unpacked.
var ErrCorrupt = errors.New("archive: corrupt archive")

// PackDir zips the contents of srcDir into zipPath. Entry names are relative
// to srcDir, so unpacking into a fresh directory reproduces the staged tree.
func PackDir(srcDir, zipPath string) (err error) {
	outFile, err := os.Create(zipPath) //nolint:gosec // G304: zipPath is a staging path owned by the caller
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	zw := zip.NewWriter(outFile)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	defer func() {
		zipErr := zw.Close()
		fileErr := outFile.Close()
		if err == nil {
			err = zipErr
		}
		if err == nil {
			err = fileErr
		}
		if err != nil {
			os.Remove(zipPath) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	return filepath.Walk(srcDir, func(path string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		return addFileToArchive(zw, path, filepath.ToSlash(rel))
	})
}

// addFileToArchive writes a single file into the zip under entryName.
func addFileToArchive(zw *zip.Writer, srcPath, entryName string) error {
	file, err := os.Open(srcPath) //nolint:gosec // G304: srcPath comes from walking the staging dir
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", srcPath, err)
	}
	header.Name = entryName
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", srcPath, err)
	}

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to copy %s into archive: %w", srcPath, err)
	}

	return nil
}

// Unpack extracts zipPath into destDir. Returns ErrCorrupt (wrapped) when
// the archive cannot be read or contains an invalid entry.
func Unpack(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close() //nolint:errcheck // Best effort cleanup

	for _, entry := range zr.File {
		if err := extractEntry(entry, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractEntry extracts a single archive entry into destDir.
func extractEntry(entry *zip.File, destDir string) error {
	if entry.FileInfo().IsDir() {
		return nil
	}

	destPath, err := validateEntryPath(destDir, entry.Name)
	if err != nil {
		return err
	}

	if entry.UncompressedSize64 > maxFileSize {
		return fmt.Errorf("%w: entry %s too large (%d bytes)", ErrCorrupt, entry.Name, entry.UncompressedSize64)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %v", ErrCorrupt, entry.Name, err)
	}
	defer src.Close() //nolint:errcheck // Best effort cleanup

	return writeExtractedFile(src, destPath)
}

// validateEntryPath joins the entry name under destDir and rejects anything
// escaping it (zip-slip).
func validateEntryPath(destDir, entryName string) (string, error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(entryName))
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: invalid entry path %s", ErrCorrupt, entryName)
	}
	return destPath, nil
}

// writeExtractedFile copies entry data to destPath with a size limit.
func writeExtractedFile(src io.Reader, destPath string) error {
	outFile, err := os.Create(destPath) //nolint:gosec // G304: destPath validated against destDir
	if err != nil {
		return err
	}

	_, err = io.Copy(outFile, io.LimitReader(src, maxFileSize+1))
	closeErr := outFile.Close()

	if err != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if closeErr != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return closeErr
	}

	return nil
}
