package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-gasmeter/engine"
	"github.com/wippyai/wasm-gasmeter/errors"
)

// Instance is a running gas-metered module instance.
type Instance struct {
	module         *Module
	wazeroInstance *engine.WazeroInstance
}

// Call invokes an exported function with raw core-wasm arguments. A
// gasmeter.ExecutionLimitExceededError is returned if the call exhausted
// its points budget.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.wazeroInstance == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	return i.wazeroInstance.Call(ctx, name, args...)
}

// PointsUsed returns the metering counter's current value.
func (i *Instance) PointsUsed() int64 {
	return i.wazeroInstance.PointsUsed()
}

// SetPointsUsed overwrites the metering counter, e.g. to reset an instance
// for reuse or to carry a balance across calls.
func (i *Instance) SetPointsUsed(v int64) {
	i.wazeroInstance.SetPointsUsed(v)
}

// PointsLimit returns the configured execution limit.
func (i *Instance) PointsLimit() int64 {
	return i.wazeroInstance.PointsLimit()
}

// SetPointsLimit changes the execution limit enforced on the next charge.
func (i *Instance) SetPointsLimit(v int64) {
	i.wazeroInstance.SetPointsLimit(v)
}

// GetExportedFunction returns the raw wazero api.Function, or nil if not found.
func (i *Instance) GetExportedFunction(name string) api.Function {
	return i.wazeroInstance.GetExportedFunction(name)
}

// Memory returns the instance's linear memory, or nil if the module
// declares none.
func (i *Instance) Memory() *engine.WazeroMemory {
	return i.wazeroInstance.Memory()
}

func (i *Instance) Close(ctx context.Context) error {
	return i.wazeroInstance.Close(ctx)
}
