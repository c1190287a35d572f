// Package gasmeter implements a compile-time gas-metering transformer for
// the WebAssembly streaming pipeline in package wasm.
//
// It sits between a decoder (wasm.DecodeInstructions) and a code generator
// (the engine package's wazero wiring). It observes the stream of decoded
// operators for one function body, computes a static cost for each
// straight-line basic block, and rewrites the stream so that, at runtime,
// each block adds its static cost to an instance-wide accumulator, compares
// it against a configured limit, and traps the function if the limit is
// exceeded.
//
// # Pipeline
//
//	wasm.DecodeInstructions -> Events -> Metering -> Rewritten Events -> lowering -> wasm.Instruction
//
// Metering is the core streaming transducer: it tracks a per-function
// sliding buffer position for a cost placeholder operator, identifies
// basic-block boundaries from the structured control-flow operators,
// back-patches the placeholder with the block's accumulated cost, and
// strips the dead prelude injected after the function's final block.
//
// # Usage
//
//	chain := gasmeter.NewMiddlewareChain(gasmeter.New())
//	metered, err := chain.Run(gasmeter.FunctionEvents(funcIdx, instrs))
//	if err != nil {
//	    return err
//	}
//
// Instrument wraps this per-function step for an entire wasm.Module and
// adds the globals the rewritten code reads and writes: USED, LIMIT and a
// trap flag.
package gasmeter
