package gasmeter

// BreakpointFunc is the runtime hook a Breakpoint pseudo-operator carries.
// It must be idempotent and side-effect-free, and an error return traps the
// current function. This package's lowering does not call it: a Breakpoint
// becomes a trap-flag write plus unreachable, and the engine turns the
// flagged trap into ExecutionLimitExceededError.
type BreakpointFunc func() error

// ExecutionLimitExceededError is the typed trap raised by the metering
// prelude's breakpoint when USED > LIMIT.
type ExecutionLimitExceededError struct{}

func (ExecutionLimitExceededError) Error() string {
	return "gasmeter: execution limit exceeded"
}

// trapExecutionLimitExceeded is the single breakpoint callback the metering
// transducer injects. It carries no captured state: the guarding
// USED > LIMIT comparison has already happened in the emitted Wasm, so
// reaching it always means the limit was exceeded.
func trapExecutionLimitExceeded() error {
	return ExecutionLimitExceededError{}
}
