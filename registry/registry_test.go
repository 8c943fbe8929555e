// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package registry

import (
	"errors"
	"fmt"
	"testing"
)

type testNet struct {
	layers int
	source any
}

func TestMapRegistryConstruct(t *testing.T) {
	reg := NewMapRegistry()
	reg.Register("test.Net", func(args, refArgs map[string]any) (any, error) {
		layers, ok := args["layers"].(int)
		if !ok {
			return nil, fmt.Errorf("layers argument missing")
		}
		return &testNet{layers: layers, source: refArgs["source"]}, nil
	})

	src := struct{ name string }{"dataset"}
	instance, err := reg.Construct(nil, "test.Net", map[string]any{"layers": 2}, map[string]any{"source": src})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	net, ok := instance.(*testNet)
	if !ok {
		t.Fatalf("expected *testNet, got %T", instance)
	}
	if net.layers != 2 {
		t.Errorf("expected layers=2, got %d", net.layers)
	}
	if net.source != src {
		t.Error("reference argument was not passed through")
	}
}

func TestMapRegistryUnknownType(t *testing.T) {
	reg := NewMapRegistry()

	_, err := reg.Construct(nil, "missing.Type", nil, nil)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestMapRegistryConstructorError(t *testing.T) {
	reg := NewMapRegistry()
	boom := errors.New("boom")
	reg.Register("test.Failing", func(args, refArgs map[string]any) (any, error) {
		return nil, boom
	})

	_, err := reg.Construct(nil, "test.Failing", nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected constructor error to propagate, got %v", err)
	}
}

func TestResolutionContextScoping(t *testing.T) {
	rctx := NewResolutionContext()

	if err := rctx.AddSearchPath("/tmp/recovered-code"); err != nil {
		t.Fatalf("AddSearchPath: %v", err)
	}
	if err := rctx.AddSearchPath("/tmp/more-code"); err != nil {
		t.Fatalf("AddSearchPath: %v", err)
	}

	paths := rctx.SearchPaths()
	if len(paths) != 2 || paths[0] != "/tmp/recovered-code" {
		t.Errorf("unexpected search paths: %v", paths)
	}

	if err := rctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Torn down after the call: no paths survive, no additions allowed
	if got := rctx.SearchPaths(); len(got) != 0 {
		t.Errorf("expected no paths after close, got %v", got)
	}
	if err := rctx.AddSearchPath("/tmp/late"); err == nil {
		t.Error("expected error when adding to a closed context")
	}
}
