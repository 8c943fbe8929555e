// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMutuallyExclusiveFields is returned when a descriptor sets both a code
// file and an import path, or neither. Raised before any store mutation.
var ErrMutuallyExclusiveFields = errors.New("schema: exactly one of code file and import path must be set")

// ErrStateNotRestorable is returned when a persisted state blob exists but
// the reconstructed instance does not implement StateRestorer.
var ErrStateNotRestorable = errors.New("schema: instance cannot restore persisted state")

// RefArgMismatchError reports a restore call whose reference-argument set
// does not match the set declared at save time. Both sets are carried for
// diagnostics.
type RefArgMismatchError struct {
	Expected []string
	Given    []string
}

func (e *RefArgMismatchError) Error() string {
	expected := append([]string(nil), e.Expected...)
	given := append([]string(nil), e.Given...)
	sort.Strings(expected)
	sort.Strings(given)
	return fmt.Sprintf("schema: reference arguments do not match declared set - expected: %v, given: %v", expected, given)
}
