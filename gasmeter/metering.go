package gasmeter

import (
	"strconv"

	"github.com/wippyai/wasm-gasmeter/errors"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

// preludeLen is the fixed number of events the metering prelude injects at
// every block boundary. removeTrailingInjection relies on this constant.
const preludeLen = 10

// malformedSink builds the error raised when a recorded cost-slot position
// does not hold an I64Const event. It indicates a bug in the transducer
// itself, not a malformed input stream, and compilation must abort.
func malformedSink(idx int) *errors.Error {
	return errors.New(errors.PhaseCompile, errors.KindInvalidData).
		Path("gasmeter", "sink", strconv.Itoa(idx)).
		Detail("sink position %d is not a cost placeholder", idx).
		Build()
}

// Metering is the core compiler middleware. It calculates the static cost
// of Wasm operators at "compile" time (one FeedEvent pass over the
// decoded stream) and rewrites the stream so the cost is charged, and
// checked against a limit, at runtime. Each unit of cost is called a
// point. Every backend that runs Metering over identical input streams
// produces identical rewritten output, so runtime cost accounting is
// deterministic across backends.
//
// A Metering value holds state for exactly one function body. Create a new
// one per function; do not share across functions or across goroutines.
type Metering struct {
	costOperatorIdxs []int
	currentBlockCost uint64
}

// New returns a Metering transducer ready to feed the events of one
// function body, starting with a FunctionBegin event.
func New() *Metering {
	return &Metering{}
}

// FeedEvent consumes one event and writes zero or more rewritten events
// into sink. Events must be fed in decoder emission order, bracketed by a
// FunctionBegin event and a matching FunctionEnd event.
func (m *Metering) FeedEvent(ev Event, sink *Sink) error {
	m.currentBlockCost++

	if ev.Kind == EventInternal {
		switch ev.Internal.Kind {
		case FunctionBegin:
			sink.Push(ev)
			return m.begin(sink)
		case FunctionEnd:
			if err := m.end(sink); err != nil {
				return err
			}
			m.removeTrailingInjection(sink)
			sink.Push(ev)
			return nil
		default:
			sink.Push(ev)
			return nil
		}
	}

	op := ev.Instr.Opcode
	if isTerminator(op) {
		if err := m.end(sink); err != nil {
			return err
		}
	}

	// Reserve a stable slot for the operator before any prelude injection
	// can shift what "the next position" means, then fill it in afterward.
	opIdx := sink.Push(WasmOwned(wasm.Instruction{Opcode: wasm.OpUnreachable}))
	if isOpener(op) {
		if err := m.begin(sink); err != nil {
			return err
		}
	}
	sink.Set(opIdx, ev)
	return nil
}

// begin back-patches every cost slot recorded so far, then injects a new
// prelude (and records its cost slot). It does not clear cost_operator_idxs:
// a slot recorded by an earlier begin, not yet drained by end, keeps
// accumulating further patches until the enclosing block finally closes.
func (m *Metering) begin(sink *Sink) error {
	if err := m.setCosts(sink); err != nil {
		return err
	}
	m.injectPrelude(sink)
	return nil
}

// end back-patches every recorded cost slot and drains cost_operator_idxs.
func (m *Metering) end(sink *Sink) error {
	if err := m.setCosts(sink); err != nil {
		return err
	}
	m.costOperatorIdxs = m.costOperatorIdxs[:0]
	return nil
}

// setCosts adds current_block_cost to every I64Const placeholder recorded
// in cost_operator_idxs, then zeroes current_block_cost. It does not clear
// cost_operator_idxs; that is the caller's responsibility.
func (m *Metering) setCosts(sink *Sink) error {
	for _, idx := range m.costOperatorIdxs {
		ev := sink.At(idx)
		imm, ok := i64ConstValue(ev)
		if !ok {
			return malformedSink(idx)
		}
		sink.Set(idx, WasmOwned(wasm.Instruction{
			Opcode: wasm.OpI64Const,
			Imm:    wasm.I64Imm{Value: imm + int64(m.currentBlockCost)},
		}))
	}
	m.currentBlockCost = 0
	return nil
}

func i64ConstValue(ev Event) (int64, bool) {
	if ev.Kind != EventWasmOwned && ev.Kind != EventWasm {
		return 0, false
	}
	if ev.Instr.Opcode != wasm.OpI64Const {
		return 0, false
	}
	imm, ok := ev.Instr.Imm.(wasm.I64Imm)
	if !ok {
		return 0, false
	}
	return imm.Value, true
}

// injectPrelude writes the fixed 10-event metering prelude:
//
//	USED = USED + 0        (slot 2 back-patched with the block's cost)
//	if USED > LIMIT { trap }
//
// The prelude's own events are never charged; they run outside the user's
// control flow.
func (m *Metering) injectPrelude(sink *Sink) {
	sink.Push(GetInternalEvent(FieldUsed))

	slot := sink.Push(WasmOwned(wasm.Instruction{
		Opcode: wasm.OpI64Const,
		Imm:    wasm.I64Imm{Value: 0},
	}))
	m.costOperatorIdxs = append(m.costOperatorIdxs, slot)

	sink.Push(WasmOwned(wasm.Instruction{Opcode: wasm.OpI64Add}))
	sink.Push(SetInternalEvent(FieldUsed))
	sink.Push(GetInternalEvent(FieldUsed))
	sink.Push(GetInternalEvent(FieldLimit))
	sink.Push(WasmOwned(wasm.Instruction{Opcode: wasm.OpI64GtU}))
	sink.Push(WasmOwned(wasm.Instruction{
		Opcode: wasm.OpIf,
		Imm:    wasm.BlockImm{Type: wasm.BlockTypeVoid},
	}))
	sink.Push(BreakpointEvent(trapExecutionLimitExceeded))
	sink.Push(WasmOwned(wasm.Instruction{Opcode: wasm.OpEnd}))
}

// removeTrailingInjection strips a dead prelude charging for a block that
// can never execute because the function has already returned. It fires
// only when the event 11 positions from the end is the user's closing End,
// which is exactly the shape a prelude injected right before FunctionEnd
// leaves behind, or is FunctionBegin itself, which is the shape an empty
// body leaves behind.
//
// If any other middleware inserts events between metering and
// FunctionEnd, this positional check silently fails to strip and a dead
// prelude is left in place; it is inert (unreachable) but not removed.
func (m *Metering) removeTrailingInjection(sink *Sink) {
	n := sink.Len()
	if n < preludeLen+1 {
		return
	}
	ev := sink.At(n - preludeLen - 1)
	if ev.Kind == EventInternal {
		if ev.Internal.Kind == FunctionBegin {
			sink.Truncate(n - preludeLen)
		}
		return
	}
	if ev.Instr.Opcode != wasm.OpEnd {
		return
	}
	sink.Truncate(n - preludeLen)
}
