// Package wasmruntime provides compile-time gas metering for core
// WebAssembly modules: it rewrites a module's function bodies to track an
// execution cost counter against a caller-supplied budget, trapping the
// moment the budget is exceeded.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmruntime/         Root package with Memory and MemorySizer interfaces
//	├── gasmeter/        The metering transform: event model, instrumentation, trap
//	├── runtime/         High-level API for loading and running metered modules
//	├── engine/          wazero integration: compiling, instantiating, calling
//	├── wasm/            Core WASM binary parsing and encoding primitives
//	├── errors/          Structured error types for debugging
//	└── cmd/run/         CLI and interactive dashboard for exercising a metered module
//
// # Quick Start
//
// Load and run a module under a points budget:
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx, 1_000_000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	results, err := inst.Call(ctx, "run")
//	var limitErr gasmeter.ExecutionLimitExceededError
//	if errors.As(err, &limitErr) {
//	    fmt.Println("execution limit exceeded at", inst.PointsUsed(), "points")
//	}
//
// # Points Accounting
//
// Instantiate writes the caller's budget to the module's LIMIT global before
// any export runs. Each instruction the metering transform charges for
// advances the USED global; once USED exceeds LIMIT, the instrumented
// prelude sets a trap flag and unwinds, and Call surfaces that as
// gasmeter.ExecutionLimitExceededError. PointsUsed, SetPointsUsed,
// PointsLimit and SetPointsLimit read and write those globals directly, so a
// caller can inspect a partial charge after a trap, top up a budget mid-run,
// or carry a running balance across several Instantiate calls.
//
// # Memory Inspection
//
// Instance.Memory returns an engine.WazeroMemory, which satisfies the root
// package's Memory and MemorySizer interfaces. A caller that wants to read
// or write a metered instance's linear memory (e.g. to pass arguments by
// pointer) does not need to import wazero's api package directly.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is NOT thread-safe
// and should be used by a single goroutine, or access must be synchronized.
//
// # Resource Management
//
// Runtime.Close releases every Module and Instance derived from it. Closing
// an Instance individually is cheaper when a module will be instantiated
// repeatedly under different budgets, since the compiled module is reused.
package wasmruntime
