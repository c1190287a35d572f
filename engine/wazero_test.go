package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/wasm-gasmeter/gasmeter"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	if cfg.MemoryLimitPages != 0 {
		t.Errorf("expected default MemoryLimitPages 0, got %d", cfg.MemoryLimitPages)
	}
}

func TestConfig_MemoryLimitPages(t *testing.T) {
	cfg := &Config{
		MemoryLimitPages: 256, // 16MB
	}
	if cfg.MemoryLimitPages != 256 {
		t.Errorf("expected MemoryLimitPages 256, got %d", cfg.MemoryLimitPages)
	}
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{MemoryLimitPages: 1024}, "64MB limit"},
		{&Config{EnableThreads: true}, "threads enabled"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer eng.Close(ctx)

			if eng.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestNewWazeroEngine(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer eng.Close(ctx)

	if eng.runtime == nil {
		t.Error("engine runtime should not be nil")
	}
}

func TestWazeroEngine_Close(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}

	if err := eng.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// addModule builds a module exporting a single "add" function equivalent to
// (func (export "add") (param i32 i32) (result i32) (i32.add (local.get 0) (local.get 1))).
func addModule() []byte {
	m := &wasm.Module{}
	typeIdx := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, wasm.FuncBody{
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpI32Add},
			{Opcode: wasm.OpEnd},
		}),
	})
	m.Exports = append(m.Exports, wasm.Export{Name: "add", Kind: wasm.KindFunc, Idx: 0})
	return m.Encode()
}

// mulModule is addModule's multiplication counterpart, used to check that
// two independently loaded modules meter independently.
func mulModule() []byte {
	m := &wasm.Module{}
	typeIdx := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, wasm.FuncBody{
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpI32Mul},
			{Opcode: wasm.OpEnd},
		}),
	})
	m.Exports = append(m.Exports, wasm.Export{Name: "mul", Kind: wasm.KindFunc, Idx: 0})
	return m.Encode()
}

// spinModule builds a module exporting "spin", equivalent to:
//
//	(func (export "spin") (param i32) (result i32)
//	  (local i32)
//	  (local.set 1 (i32.const 0))
//	  (block
//	    (loop
//	      (br_if 1 (i32.ge_s (local.get 1) (local.get 0)))
//	      (local.set 1 (i32.add (local.get 1) (i32.const 1)))
//	      (br 0)))
//	  (local.get 1))
//
// which counts local 1 up to the argument, one loop iteration at a time.
func spinModule() []byte {
	m := &wasm.Module{}
	typeIdx := m.AddType(wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	})
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, wasm.FuncBody{
		Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}},
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
			{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
			{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			{Opcode: wasm.OpI32GeS},
			{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 1}},
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
			{Opcode: wasm.OpI32Add},
			{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 0}},
			{Opcode: wasm.OpEnd}, // loop
			{Opcode: wasm.OpEnd}, // block
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 1}},
			{Opcode: wasm.OpEnd}, // func
		}),
	})
	m.Exports = append(m.Exports, wasm.Export{Name: "spin", Kind: wasm.KindFunc, Idx: 0})
	return m.Encode()
}

func loadAndInstantiate(t *testing.T, ctx context.Context, eng *WazeroEngine, wasmBytes []byte, limit int64) *WazeroInstance {
	t.Helper()

	mod, err := eng.LoadModule(ctx, wasmBytes)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if mod.Instrument().FunctionsMetered != 1 {
		t.Fatalf("FunctionsMetered = %d, want 1", mod.Instrument().FunctionsMetered)
	}

	inst, err := mod.Instantiate(ctx, limit)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return inst
}

func TestWazeroEngine_LoadModuleBindsMeteringGlobals(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	inst := loadAndInstantiate(t, ctx, eng, addModule(), 1000)
	defer inst.Close(ctx)

	if inst.PointsLimit() != 1000 {
		t.Errorf("PointsLimit() = %d, want 1000", inst.PointsLimit())
	}
	if inst.PointsUsed() != 0 {
		t.Errorf("PointsUsed() = %d, want 0 before any call", inst.PointsUsed())
	}
}

func TestWazeroInstance_CallChargesPoints(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	inst := loadAndInstantiate(t, ctx, eng, addModule(), 1_000_000)
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "add", 3, 4)
	if err != nil {
		t.Fatalf("Call(add): %v", err)
	}
	if len(results) != 1 || results[0] != 7 {
		t.Errorf("add(3,4) = %v, want [7]", results)
	}
	if inst.PointsUsed() == 0 {
		t.Error("PointsUsed() should be nonzero after a call")
	}
}

func TestWazeroInstance_ExecutionLimitExceeded(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	// A limit of 1 point cannot cover even one pass through the loop body.
	inst := loadAndInstantiate(t, ctx, eng, spinModule(), 1)
	defer inst.Close(ctx)

	_, err = inst.Call(ctx, "spin", 1000)
	if err == nil {
		t.Fatal("expected execution limit error, got nil")
	}
	var limitErr gasmeter.ExecutionLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected ExecutionLimitExceededError, got %T: %v", err, err)
	}
}

func TestWazeroInstance_ExecutionLimitExceededClearsTrap(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	inst := loadAndInstantiate(t, ctx, eng, spinModule(), 1)
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "spin", 1000); err == nil {
		t.Fatal("expected first call to trap on the limit")
	}
	if inst.trapped() {
		t.Error("trap flag should be cleared after Call surfaces the error")
	}

	// Raising the limit lets the next call proceed rather than immediately
	// re-reporting a stale trap.
	inst.SetPointsLimit(1_000_000)
	inst.SetPointsUsed(0)
	if _, err := inst.Call(ctx, "spin", 5); err != nil {
		t.Fatalf("Call(spin) after raising the limit: %v", err)
	}
}

func TestWazeroInstance_CallUnknownFunction(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	inst := loadAndInstantiate(t, ctx, eng, addModule(), 1000)
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "missing"); err == nil {
		t.Error("expected error calling an export that does not exist")
	}
}

func TestMultiModuleIndependentMetering(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	instAdd := loadAndInstantiate(t, ctx, eng, addModule(), 1_000_000)
	defer instAdd.Close(ctx)
	instMul := loadAndInstantiate(t, ctx, eng, mulModule(), 1_000_000)
	defer instMul.Close(ctx)

	if _, err := instAdd.Call(ctx, "add", 3, 4); err != nil {
		t.Fatalf("add(3,4): %v", err)
	}
	if instMul.PointsUsed() != 0 {
		t.Errorf("mul instance charged %d points for a call on the add instance", instMul.PointsUsed())
	}
	if _, err := instMul.Call(ctx, "mul", 3, 4); err != nil {
		t.Fatalf("mul(3,4): %v", err)
	}

	// add and mul have the same shape, so one call each charges the same.
	if instAdd.PointsUsed() != instMul.PointsUsed() {
		t.Errorf("PointsUsed add=%d mul=%d, want equal", instAdd.PointsUsed(), instMul.PointsUsed())
	}
}

func TestWazeroModule_InstantiateTwice(t *testing.T) {
	ctx := context.Background()

	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine: %v", err)
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadModule(ctx, addModule())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}

	instA, err := mod.Instantiate(ctx, 100)
	if err != nil {
		t.Fatalf("Instantiate #1: %v", err)
	}
	defer instA.Close(ctx)

	instB, err := mod.Instantiate(ctx, 500)
	if err != nil {
		t.Fatalf("Instantiate #2: %v", err)
	}
	defer instB.Close(ctx)

	if instA.PointsLimit() == instB.PointsLimit() {
		t.Errorf("independent instances should not share a LIMIT global")
	}
}
