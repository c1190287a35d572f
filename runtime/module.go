package runtime

import (
	"context"

	"github.com/wippyai/wasm-gasmeter/engine"
	"github.com/wippyai/wasm-gasmeter/errors"
	"github.com/wippyai/wasm-gasmeter/gasmeter"
)

// Module is a compiled, gas-metered WebAssembly module ready to be
// instantiated with a points budget.
type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
}

// Instrument reports where the metering pass placed its bookkeeping
// globals, and how many function bodies it rewrote.
func (m *Module) Instrument() *gasmeter.InstrumentResult {
	return m.wazeroModule.Instrument()
}

type Export struct {
	Name string
}

func (m *Module) Exports() []Export {
	names := m.wazeroModule.ExportNames()
	if names == nil {
		return nil
	}
	exports := make([]Export, len(names))
	for i, name := range names {
		exports[i] = Export{Name: name}
	}
	return exports
}

// Instantiate creates a running instance with the given points budget.
func (m *Module) Instantiate(ctx context.Context, limit int64) (*Instance, error) {
	wazeroInstance, err := m.wazeroModule.Instantiate(ctx, limit)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	return &Instance{
		module:         m,
		wazeroInstance: wazeroInstance,
	}, nil
}
