// Package runtime provides the high-level API for loading and running
// gas-metered WebAssembly modules.
//
// # Quick Start
//
//	ctx := context.Background()
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
//	inst, err := mod.Instantiate(ctx, 1_000_000) // points budget
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	results, err := inst.Call(ctx, "run", 42)
//	if errors.As(err, &gasmeter.ExecutionLimitExceededError{}) {
//	    // the module exhausted its points budget
//	}
//
// # Points Accounting
//
// LoadModule runs every function body through the metering pass before
// compiling it, so an instance's cost accounting reflects the module's
// real control flow rather than a coarse per-call estimate. PointsUsed,
// SetPointsUsed, PointsLimit and SetPointsLimit read and write the
// metering globals directly; an instance can be reset and reused with a
// fresh or carried-over budget without reinstantiating it.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. You can call
// Module.Instantiate() from multiple goroutines concurrently.
//
// Instance is NOT thread-safe. Each goroutine should have its own
// Instance, or access must be synchronized externally.
//
// # Resource Management
//
// Always close instances and the runtime when done; closing releases
// WASM memory and the underlying wazero runtime.
package runtime
