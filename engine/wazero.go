package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/wippyai/wasm-gasmeter/errors"
	"github.com/wippyai/wasm-gasmeter/gasmeter"
	"github.com/wippyai/wasm-gasmeter/wasm"
)

// WazeroEngine creates and manages wazero runtime instances for running
// gas-metered core WebAssembly modules.
type WazeroEngine struct {
	runtime wazero.Runtime
}

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool
}

// NewWazeroEngine creates a new wazero-based engine with default configuration.
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration.
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime}, nil
}

// LoadModule parses wasmBytes, injects gas-metering instrumentation, and
// compiles the result. The returned module's Instrument method reports the
// global indices gasmeter.Instrument assigned.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	mod, err := wasm.ParseModule(wasmBytes)
	if err != nil {
		return nil, errors.Load("parse module", err)
	}

	result, err := gasmeter.Instrument(mod)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindInvalidData, err, "inject gas metering")
	}

	compiled, err := e.runtime.CompileModule(ctx, mod.Encode())
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	return &WazeroModule{
		engine:     e,
		runtime:    e.runtime,
		compiled:   compiled,
		instrument: result,
		ast:        mod,
	}, nil
}

// Close releases every resource held by the engine's wazero runtime,
// including every module it compiled and every instance derived from them.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is a gas-metered compiled core WebAssembly module.
type WazeroModule struct {
	engine     *WazeroEngine
	runtime    wazero.Runtime
	compiled   wazero.CompiledModule
	instrument *gasmeter.InstrumentResult
	ast        *wasm.Module
}

// Instrument reports where the module's metering globals live.
func (m *WazeroModule) Instrument() *gasmeter.InstrumentResult {
	return m.instrument
}

// ExportNames returns the name of every export in the instrumented module,
// including the metering globals Instrument added.
func (m *WazeroModule) ExportNames() []string {
	names := make([]string, len(m.ast.Exports))
	for i, exp := range m.ast.Exports {
		names[i] = exp.Name
	}
	return names
}

// Instantiate creates a running instance of the module with a given
// points limit. Limit is written to the LIMIT global before any export is
// called.
func (m *WazeroModule) Instantiate(ctx context.Context, limit int64) (*WazeroInstance, error) {
	modConfig := wazero.NewModuleConfig().WithName("")

	instance, err := m.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	wazInst := &WazeroInstance{
		module:    m,
		instance:  instance,
		funcCache: make(map[string]api.Function),
	}

	if err := wazInst.bindGlobals(); err != nil {
		instance.Close(ctx)
		return nil, err
	}
	wazInst.SetPointsLimit(limit)

	return wazInst, nil
}

// WazeroInstance is a running gas-metered WASM instance.
// It is NOT safe for concurrent use from multiple goroutines.
type WazeroInstance struct {
	module    *WazeroModule
	instance  api.Module
	used      api.Global
	limit     api.Global
	trapFlag  api.Global
	funcCache map[string]api.Function
	cacheMu   sync.RWMutex
}

func (i *WazeroInstance) bindGlobals() error {
	res := i.module.instrument

	used := i.instance.ExportedGlobal(gasmeter.ExportUsed)
	if used == nil {
		return errors.NotFound(errors.PhaseRuntime, "global export", gasmeter.ExportUsed)
	}
	limit := i.instance.ExportedGlobal(gasmeter.ExportLimit)
	if limit == nil {
		return errors.NotFound(errors.PhaseRuntime, "global export", gasmeter.ExportLimit)
	}
	trapFlag := i.instance.ExportedGlobal(gasmeter.ExportTrapFlag)
	if trapFlag == nil {
		return errors.NotFound(errors.PhaseRuntime, "global export", gasmeter.ExportTrapFlag)
	}

	i.used = used
	i.limit = limit
	i.trapFlag = trapFlag
	_ = res
	return nil
}

// PointsUsed returns the metering counter's current value.
func (i *WazeroInstance) PointsUsed() int64 {
	return int64(i.used.Get())
}

// SetPointsUsed overwrites the metering counter. Use to reset an instance
// for reuse or to carry a balance across calls.
func (i *WazeroInstance) SetPointsUsed(v int64) {
	i.used.(api.MutableGlobal).Set(uint64(v))
}

// PointsLimit returns the configured execution limit.
func (i *WazeroInstance) PointsLimit() int64 {
	return int64(i.limit.Get())
}

// SetPointsLimit changes the execution limit enforced on the next charge.
func (i *WazeroInstance) SetPointsLimit(v int64) {
	i.limit.(api.MutableGlobal).Set(uint64(v))
}

// trapped reports whether the last Call failed because the prelude's
// breakpoint fired.
func (i *WazeroInstance) trapped() bool {
	return i.trapFlag.Get() != 0
}

// clearTrap resets the trap flag so the instance can be called again.
func (i *WazeroInstance) clearTrap() {
	i.trapFlag.(api.MutableGlobal).Set(0)
}

func (i *WazeroInstance) getExportedFunction(name string) api.Function {
	i.cacheMu.RLock()
	fn, ok := i.funcCache[name]
	i.cacheMu.RUnlock()
	if ok {
		return fn
	}

	fn = i.instance.ExportedFunction(name)
	if fn == nil {
		return nil
	}

	i.cacheMu.Lock()
	i.funcCache[name] = fn
	i.cacheMu.Unlock()
	return fn
}

// Call invokes an exported function with raw core-wasm arguments. A
// gasmeter.ExecutionLimitExceededError is returned in place of the
// underlying trap if the instance exceeded its points limit during the call.
func (i *WazeroInstance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.getExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", name)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		if i.trapped() {
			i.clearTrap()
			return nil, gasmeter.ExecutionLimitExceededError{}
		}
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return results, nil
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	err := i.instance.Close(ctx)
	i.instance = nil
	i.funcCache = nil
	return err
}

// GetExportedFunction returns the raw wazero api.Function, or nil if not found.
func (i *WazeroInstance) GetExportedFunction(name string) api.Function {
	return i.getExportedFunction(name)
}

// Memory returns the instance's linear memory, or nil if the module
// declares none.
func (i *WazeroInstance) Memory() *WazeroMemory {
	mem := i.instance.Memory()
	if mem == nil {
		return nil
	}
	return &WazeroMemory{mem: mem}
}

// WazeroMemory wraps wazero memory to implement wasmruntime.Memory and
// wasmruntime.MemorySizer, so a caller inspecting a metered instance's
// state (e.g. a diagnostics dashboard) never needs to import wazero's api
// package directly.
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

// Size reports the memory's current size in bytes, satisfying
// wasmruntime.MemorySizer.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
