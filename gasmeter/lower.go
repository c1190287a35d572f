package gasmeter

import (
	"github.com/wippyai/wasm-gasmeter/errors"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

// globalResolver maps the process-wide InternalField handles used by the
// metering prelude to the concrete global indices of one module.
type globalResolver struct {
	used     uint32
	limit    uint32
	trapFlag uint32
}

func (r globalResolver) resolve(field InternalField) (uint32, bool) {
	switch field.Index() {
	case FieldUsed.Index():
		return r.used, true
	case FieldLimit.Index():
		return r.limit, true
	}
	return 0, false
}

// lower turns a rewritten event stream back into a flat instruction list,
// resolving GetInternal/SetInternal to global.get/global.set on the fields'
// concrete indices and Breakpoint to a trap-flag write followed by
// unreachable. FunctionBegin and FunctionEnd carry no instruction of their
// own.
func lower(events []Event, res globalResolver) ([]wasm.Instruction, error) {
	out := make([]wasm.Instruction, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case EventWasm, EventWasmOwned:
			out = append(out, ev.Instr)
		case EventInternal:
			lowered, err := lowerInternal(ev.Internal, res)
			if err != nil {
				return nil, err
			}
			out = append(out, lowered...)
		}
	}
	return out, nil
}

func lowerInternal(iev InternalEvent, res globalResolver) ([]wasm.Instruction, error) {
	switch iev.Kind {
	case FunctionBegin, FunctionEnd:
		return nil, nil
	case GetInternal:
		idx, ok := res.resolve(iev.Field)
		if !ok {
			return nil, errors.New(errors.PhaseCompile, errors.KindNotFound).
				Detail("no global bound for internal field %d", iev.Field.Index()).
				Build()
		}
		return []wasm.Instruction{{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: idx}}}, nil
	case SetInternal:
		idx, ok := res.resolve(iev.Field)
		if !ok {
			return nil, errors.New(errors.PhaseCompile, errors.KindNotFound).
				Detail("no global bound for internal field %d", iev.Field.Index()).
				Build()
		}
		return []wasm.Instruction{{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: idx}}}, nil
	case Breakpoint:
		return []wasm.Instruction{
			{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
			{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: res.trapFlag}},
			{Opcode: wasm.OpUnreachable},
		}, nil
	}
	return nil, errors.New(errors.PhaseCompile, errors.KindInvalidEnum).
		Detail("unknown internal event kind %d", iev.Kind).
		Build()
}
