package runtime

import (
	"context"

	"github.com/wippyai/wasm-gasmeter/engine"
	"github.com/wippyai/wasm-gasmeter/errors"
)

// Runtime owns a wazero-backed engine and loads gas-metered WebAssembly
// modules into it.
type Runtime struct {
	engine *engine.WazeroEngine
}

func New(ctx context.Context) (*Runtime, error) {
	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{engine: eng}, nil
}

// NewWithConfig creates a Runtime whose underlying engine honors cfg.
func NewWithConfig(ctx context.Context, cfg *engine.Config) (*Runtime, error) {
	eng, err := engine.NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{engine: eng}, nil
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// LoadModule parses and gas-meters wasmBytes, then compiles it.
func (r *Runtime) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	wazeroModule, err := r.engine.LoadModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("load module", err)
	}

	return &Module{
		runtime:      r,
		wazeroModule: wazeroModule,
	}, nil
}
