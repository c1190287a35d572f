package runtime

import (
	"context"
	"testing"
)

func TestModule_ExportsIncludeMeteringGlobals(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, addWASM)
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	exports := mod.Exports()
	names := make(map[string]bool, len(exports))
	for _, e := range exports {
		names[e.Name] = true
	}

	for _, want := range []string{"add", "gasmeter_points_used", "gasmeter_points_limit", "gasmeter_trapped"} {
		if !names[want] {
			t.Errorf("expected export %q, got %v", want, exports)
		}
	}
}

func TestModule_Instrument(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, addWASM)
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	info := mod.Instrument()
	if info.FunctionsMetered != 1 {
		t.Errorf("FunctionsMetered = %d, want 1", info.FunctionsMetered)
	}
}

func TestModule_InstantiateMultiple(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, addWASM)
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	instA, err := mod.Instantiate(ctx, 10)
	if err != nil {
		t.Fatalf("Instantiate #1: %v", err)
	}
	defer instA.Close(ctx)

	instB, err := mod.Instantiate(ctx, 20)
	if err != nil {
		t.Fatalf("Instantiate #2: %v", err)
	}
	defer instB.Close(ctx)

	if instA.PointsLimit() == instB.PointsLimit() {
		t.Error("independent instances should not share a LIMIT global")
	}
}

// Minimal valid WASM module (no exports)
var minimalWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
}

// WASM with add function export
var addWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: (i32, i32) -> i32
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// Function section: func 0 uses type 0
	0x03, 0x02, 0x01, 0x00,
	// Export section: "add" -> func 0
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	// Code section: local.get 0 + local.get 1 = i32.add
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}
