package gasmeter

import (
	"strconv"

	"github.com/wippyai/wasm-gasmeter/errors"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

// Exported names of the globals Instrument adds to a module. An embedding
// backend reads and writes metering state through these exports rather
// than through InstrumentResult's raw indices, since the indices are only
// meaningful before any further transformation of the module.
const (
	ExportUsed     = "gasmeter_points_used"
	ExportLimit    = "gasmeter_points_limit"
	ExportTrapFlag = "gasmeter_trapped"
)

// InstrumentResult reports where Instrument placed its bookkeeping state.
type InstrumentResult struct {
	UsedGlobalIdx     uint32
	LimitGlobalIdx    uint32
	TrapFlagGlobalIdx uint32
	FunctionsMetered  int
}

func i64ConstExpr(v int64) []byte {
	return wasm.EncodeInstructions([]wasm.Instruction{
		{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}},
		{Opcode: wasm.OpEnd},
	})
}

func i32ConstExpr(v int32) []byte {
	return wasm.EncodeInstructions([]wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}},
		{Opcode: wasm.OpEnd},
	})
}

// Instrument rewrites every function body in m so that executing it
// accounts Wasm operators against a points-used counter and traps once that
// counter exceeds a points-limit, both exposed as mutable exported globals.
// It appends three globals to m.Globals; it never touches the function,
// import, or table index spaces, so every existing call site, element
// segment, and the start section remain valid unchanged.
func Instrument(m *wasm.Module) (*InstrumentResult, error) {
	usedIdx := uint32(m.NumImportedGlobals() + len(m.Globals))
	m.Globals = append(m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true},
		Init: i64ConstExpr(0),
	})

	limitIdx := usedIdx + 1
	m.Globals = append(m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI64, Mutable: true},
		Init: i64ConstExpr(0),
	})

	trapFlagIdx := usedIdx + 2
	m.Globals = append(m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
		Init: i32ConstExpr(0),
	})

	m.Exports = append(m.Exports,
		wasm.Export{Name: ExportUsed, Kind: wasm.KindGlobal, Idx: usedIdx},
		wasm.Export{Name: ExportLimit, Kind: wasm.KindGlobal, Idx: limitIdx},
		wasm.Export{Name: ExportTrapFlag, Kind: wasm.KindGlobal, Idx: trapFlagIdx},
	)

	res := globalResolver{used: usedIdx, limit: limitIdx, trapFlag: trapFlagIdx}
	firstFuncIdx := uint32(m.NumImportedFuncs())

	for i := range m.Code {
		body := &m.Code[i]

		instrs, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path("gasmeter", "code", strconv.Itoa(i)).
				Cause(err).
				Detail("failed to decode function body").
				Build()
		}

		events := FunctionEvents(firstFuncIdx+uint32(i), instrs)

		metered, err := NewMiddlewareChain(New()).Run(events)
		if err != nil {
			return nil, errors.New(errors.PhaseCompile, errors.KindInvalidData).
				Path("gasmeter", "code", strconv.Itoa(i)).
				Cause(err).
				Detail("failed to meter function body").
				Build()
		}

		lowered, err := lower(metered, res)
		if err != nil {
			return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path("gasmeter", "code", strconv.Itoa(i)).
				Cause(err).
				Detail("failed to lower metered events").
				Build()
		}

		body.Code = wasm.EncodeInstructions(lowered)
	}

	return &InstrumentResult{
		UsedGlobalIdx:     usedIdx,
		LimitGlobalIdx:    limitIdx,
		TrapFlagGlobalIdx: trapFlagIdx,
		FunctionsMetered:  len(m.Code),
	}, nil
}
