// Package engine wraps wazero to run gas-metered core WebAssembly modules.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Creates and manages wazero runtime instances
//	WazeroModule   - A compiled, gas-metered module; can create instances
//	WazeroInstance - A running instance with Call and points accessors
//
// # Instantiation Flow
//
//  1. WazeroEngine.LoadModule() parses the module, runs gasmeter.Instrument
//     over it, and compiles the instrumented bytes with wazero.
//  2. WazeroModule.Instantiate() binds the instance's USED/LIMIT/trap
//     globals and sets the requested points limit.
//  3. WazeroInstance.Call() invokes an export; a trap whose cause was the
//     metering prelude's breakpoint surfaces as
//     gasmeter.ExecutionLimitExceededError rather than a generic trap.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
//
// # Experimental Features
//
// Threads/Atomics: enable via Config.EnableThreads.
package engine
