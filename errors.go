// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package modelvault

import (
	"errors"
	"fmt"
)

// ErrUnknownModelID is returned when a model record id is absent from the
// record store.
var ErrUnknownModelID = errors.New("modelvault: unknown model id")

// CorruptArchiveError reports a weight archive that could not be unpacked
// or whose contents failed validation against the reconstructed model.
type CorruptArchiveError struct {
	ArchiveID string
	Reason    string
	Err       error
}

func (e *CorruptArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("modelvault: corrupt weight archive %s: %s: %v", e.ArchiveID, e.Reason, e.Err)
	}
	return fmt.Sprintf("modelvault: corrupt weight archive %s: %s", e.ArchiveID, e.Reason)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Err
}
