package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/wasm-gasmeter/engine"
	"github.com/wippyai/wasm-gasmeter/gasmeter"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)
}

func TestNewWithConfig(t *testing.T) {
	ctx := context.Background()

	rt, err := NewWithConfig(ctx, &engine.Config{MemoryLimitPages: 16})
	if err != nil {
		t.Fatalf("NewWithConfig error: %v", err)
	}
	defer rt.Close(ctx)
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

// noopModule builds a module exporting a single "noop" function equivalent
// to (func (export "noop")).
func noopModule() []byte {
	m := &wasm.Module{}
	typeIdx := m.AddType(wasm.FuncType{})
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, wasm.FuncBody{
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			{Opcode: wasm.OpEnd},
		}),
	})
	m.Exports = append(m.Exports, wasm.Export{Name: "noop", Kind: wasm.KindFunc, Idx: 0})
	return m.Encode()
}

func TestRuntime_LoadModuleAndCall(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, addModule())
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	inst, err := mod.Instantiate(ctx, 1_000_000)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "add", 5, 3)
	if err != nil {
		t.Fatalf("Call(add): %v", err)
	}
	if len(results) != 1 || results[0] != 8 {
		t.Errorf("add(5,3) = %v, want [8]", results)
	}
	if inst.PointsUsed() == 0 {
		t.Error("PointsUsed() should be nonzero after a call")
	}
}

func TestRuntime_ExecutionLimitExceeded(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, spinModule())
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	inst, err := mod.Instantiate(ctx, 1)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer inst.Close(ctx)

	_, err = inst.Call(ctx, "spin", 1000)
	var limitErr gasmeter.ExecutionLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected ExecutionLimitExceededError, got %T: %v", err, err)
	}
}

func TestInstance_CallBeforeInstantiate(t *testing.T) {
	inst := &Instance{}
	if _, err := inst.Call(context.Background(), "anything"); err == nil {
		t.Error("expected error calling an uninitialized instance")
	}
}

func TestInstance_PointsLimitRoundTrip(t *testing.T) {
	ctx := context.Background()

	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer rt.Close(ctx)

	mod, err := rt.LoadModule(ctx, noopModule())
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}

	inst, err := mod.Instantiate(ctx, 42)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer inst.Close(ctx)

	if inst.PointsLimit() != 42 {
		t.Errorf("PointsLimit() = %d, want 42", inst.PointsLimit())
	}

	inst.SetPointsLimit(99)
	if inst.PointsLimit() != 99 {
		t.Errorf("PointsLimit() after SetPointsLimit = %d, want 99", inst.PointsLimit())
	}

	inst.SetPointsUsed(7)
	if inst.PointsUsed() != 7 {
		t.Errorf("PointsUsed() after SetPointsUsed = %d, want 7", inst.PointsUsed())
	}
}
