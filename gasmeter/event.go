package gasmeter

import "github.com/wippyai/wasm-gasmeter/wasm"

// EventKind discriminates the three shapes an Event can take.
type EventKind uint8

const (
	// EventWasm wraps a Wasm operator decoded from the original stream.
	EventWasm EventKind = iota
	// EventWasmOwned wraps a Wasm operator synthesized by a middleware.
	EventWasmOwned
	// EventInternal wraps a non-Wasm pseudo-operator recognized by the backend.
	EventInternal
)

// Event is the unit the decoder emits and the backend consumes. Exactly one
// of Instr or Internal is meaningful, selected by Kind.
type Event struct {
	Instr    wasm.Instruction
	Internal InternalEvent
	Kind     EventKind
}

// Wasm wraps a borrowed operator from the original decoded stream.
func Wasm(instr wasm.Instruction) Event {
	return Event{Kind: EventWasm, Instr: instr}
}

// WasmOwned wraps an operator synthesized by a middleware.
func WasmOwned(instr wasm.Instruction) Event {
	return Event{Kind: EventWasmOwned, Instr: instr}
}

// Internal wraps a pseudo-operator.
func Internal(iev InternalEvent) Event {
	return Event{Kind: EventInternal, Internal: iev}
}

// InternalKind discriminates the pseudo-operators the backend recognizes.
type InternalKind uint8

const (
	// FunctionBegin marks the start of a function body's operator stream.
	FunctionBegin InternalKind = iota
	// FunctionEnd marks the end of a function body's operator stream.
	FunctionEnd
	// GetInternal lowers to pushing the 64-bit value of an internal field.
	GetInternal
	// SetInternal lowers to popping a 64-bit value into an internal field.
	SetInternal
	// Breakpoint carries a callback whose error return traps the current
	// function. lower does not call the callback: it lowers Breakpoint to a
	// trap-flag write followed by unreachable.
	Breakpoint
)

// InternalEvent is a non-Wasm pseudo-operator recognized by the backend.
type InternalEvent struct {
	Callback  BreakpointFunc
	Kind      InternalKind
	FuncIndex uint32
	Field     InternalField
}

// FunctionBeginEvent builds the FunctionBegin pseudo-operator for funcIdx.
func FunctionBeginEvent(funcIdx uint32) Event {
	return Internal(InternalEvent{Kind: FunctionBegin, FuncIndex: funcIdx})
}

// FunctionEndEvent builds the FunctionEnd pseudo-operator.
func FunctionEndEvent() Event {
	return Internal(InternalEvent{Kind: FunctionEnd})
}

// GetInternalEvent builds a GetInternal pseudo-operator for field.
func GetInternalEvent(field InternalField) Event {
	return Internal(InternalEvent{Kind: GetInternal, Field: field})
}

// SetInternalEvent builds a SetInternal pseudo-operator for field.
func SetInternalEvent(field InternalField) Event {
	return Internal(InternalEvent{Kind: SetInternal, Field: field})
}

// BreakpointEvent builds a Breakpoint pseudo-operator calling cb.
func BreakpointEvent(cb BreakpointFunc) Event {
	return Internal(InternalEvent{Kind: Breakpoint, Callback: cb})
}

// FunctionEvents wraps a decoded instruction stream for funcIdx with the
// FunctionBegin/FunctionEnd bracketing the transducer requires.
func FunctionEvents(funcIdx uint32, instrs []wasm.Instruction) []Event {
	events := make([]Event, 0, len(instrs)+2)
	events = append(events, FunctionBeginEvent(funcIdx))
	for _, instr := range instrs {
		events = append(events, Wasm(instr))
	}
	events = append(events, FunctionEndEvent())
	return events
}

// isTerminator reports whether op closes the block it appears in.
func isTerminator(op byte) bool {
	switch op {
	case wasm.OpEnd, wasm.OpIf, wasm.OpElse, wasm.OpBr, wasm.OpBrIf, wasm.OpBrTable, wasm.OpReturn:
		return true
	}
	return false
}

// isOpener reports whether a prelude is injected immediately after op.
func isOpener(op byte) bool {
	switch op {
	case wasm.OpLoop, wasm.OpEnd, wasm.OpIf, wasm.OpElse, wasm.OpBrIf:
		return true
	}
	return false
}
