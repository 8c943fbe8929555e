// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package schema

import (
	"fmt"

	"github.com/modelvault/modelvault/persistence"
)

// KindRestorableObject is the record kind for restorable-object descriptors.
const KindRestorableObject = "restorable_object"

// On-disk descriptor field names. Frozen for cross-version compatibility.
const (
	fieldClassName   = "class_name"
	fieldCodeFile    = "code_file"
	fieldImportCmd   = "import_cmd"
	fieldInitArgs    = "init_args"
	fieldConfigArgs  = "config_args"
	fieldRefTypeArgs = "init_ref_type_args"
	fieldStateFile   = "state_file"
	fieldStateDict   = "state_dict"
)

// validateCodeRef enforces the code-reference XOR import-path invariant.
func validateCodeRef(codePath, importPath string) error {
	if (codePath == "") == (importPath == "") {
		return ErrMutuallyExclusiveFields
	}
	return nil
}

// stringField reads an optional string field from a record.
func stringField(rec persistence.Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("descriptor field %s has type %T, expected string", key, v)
	}
	return s, nil
}

// mapField reads an optional nested mapping field from a record.
func mapField(rec persistence.Record, key string) (map[string]any, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("descriptor field %s has type %T, expected mapping", key, v)
	}
	return m, nil
}

// stringMapField reads an optional string-to-string mapping field.
func stringMapField(rec persistence.Record, key string) (map[string]string, error) {
	raw, err := mapField(rec, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("descriptor field %s[%s] has type %T, expected string", key, k, v)
		}
		out[k] = s
	}
	return out, nil
}

// stringSliceField reads an optional string-list field. JSON round trips
// lists as []any, so elements are converted back explicitly.
func stringSliceField(rec persistence.Record, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("descriptor field %s has type %T, expected list", key, v)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("descriptor field %s element has type %T, expected string", key, item)
		}
		out = append(out, s)
	}
	return out, nil
}
