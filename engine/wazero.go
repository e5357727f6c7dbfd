package engine

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/errors"
)

const defaultName = "wazero"

// WazeroEngine runs a WebAssembly build of radamsa under wazero.
//
// Each concurrent call gets its own module instance, so calls never share
// guest state. Idle instances are kept for reuse.
type WazeroEngine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	ctx      context.Context
	idle     chan *instance
	name     string
	module   string
	initMu   sync.Mutex
	initDone atomic.Bool
	closed   atomic.Bool
	live     atomic.Int64
}

// Config holds configuration for engine creation
type Config struct {
	// CompilationCache shares compiled machine code between engines and,
	// when created with wazero.NewCompilationCacheWithDir, between processes.
	CompilationCache wazero.CompilationCache

	// Name identifies the engine in errors and logs. Defaults to "wazero".
	Name string

	// Module names the wasm file in error messages.
	Module string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// MaxIdleInstances bounds how many instances are kept between calls.
	// 0 means GOMAXPROCS.
	MaxIdleInstances int
}

// NewWazeroEngine compiles wasm and returns an engine ready for Init.
// ctx is kept for guest calls with its cancellation removed.
func NewWazeroEngine(ctx context.Context, wasm []byte, cfg *Config) (*WazeroEngine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CompilationCache != nil {
		runtimeCfg = runtimeCfg.WithCompilationCache(cfg.CompilationCache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Load("compile engine module", err)
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}
	maxIdle := cfg.MaxIdleInstances
	if maxIdle <= 0 {
		maxIdle = runtime.GOMAXPROCS(0)
	}

	return &WazeroEngine{
		runtime:  r,
		compiled: compiled,
		ctx:      context.WithoutCancel(ctx),
		idle:     make(chan *instance, maxIdle),
		name:     name,
		module:   cfg.Module,
	}, nil
}

// Name returns the engine name used in errors and logs.
func (e *WazeroEngine) Name() string {
	return e.name
}

// Instances returns the number of live module instances.
func (e *WazeroEngine) Instances() int {
	return int(e.live.Load())
}

// Init validates the module's exports, registers WASI if the module needs
// it and creates the first instance. Calls after a successful Init are no-ops.
func (e *WazeroEngine) Init() error {
	if e.initDone.Load() {
		return nil
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.initDone.Load() {
		return nil
	}
	if e.closed.Load() {
		return e.closedError(errors.PhaseInit)
	}

	if err := e.validate(); err != nil {
		return err
	}

	if importsWASI(e.compiled) && e.runtime.Module(wasiModuleName) == nil {
		if _, err := instantiateWASI(e.ctx, e.runtime); err != nil {
			return errors.New(errors.PhaseInit, errors.KindInstantiation).
				Engine(e.name).
				Detail("instantiate WASI").
				Cause(err).
				Build()
		}
	}

	inst, err := e.newInstance(e.ctx)
	if err != nil {
		ierr := errors.Instantiation(err)
		ierr.Engine = e.name
		return ierr
	}
	e.idle <- inst

	Logger().Debug("engine initialized",
		zap.String("engine", e.name),
		zap.Bool("wasi", importsWASI(e.compiled)))

	e.initDone.Store(true)
	return nil
}

// validate checks every required export up front so a bad build fails with
// one error naming everything it lacks.
func (e *WazeroEngine) validate() error {
	funcs := e.compiled.ExportedFunctions()

	var missing []string
	for name, sig := range requiredFuncs {
		def, ok := funcs[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !sig.matches(def) {
			return errors.New(errors.PhaseInit, errors.KindMissingExport).
				Engine(e.name).
				Export(name).
				Detail("want %d i32 params and %d i32 results, got %v -> %v",
					sig.params, sig.results, def.ParamTypes(), def.ResultTypes()).
				Build()
		}
	}
	if _, ok := e.compiled.ExportedMemories()[ExportMemory]; !ok {
		missing = append(missing, ExportMemory)
	}

	hasAlloc := false
	for _, c := range allocCandidates {
		if _, ok := funcs[c.alloc]; ok {
			hasAlloc = true
			break
		}
	}
	if !hasAlloc {
		missing = append(missing, simpleAlloc)
	}

	if len(missing) > 0 {
		return errors.NewMissingExportsError(e.module, missing)
	}
	return nil
}

// Generate runs radamsa over input, writing at most len(output) bytes to
// output. The returned count is what the guest reported and may exceed
// len(output) if the guest misbehaves; only len(output) bytes are copied.
func (e *WazeroEngine) Generate(input, output []byte, seed uint32) (int, error) {
	if err := e.ready(errors.PhaseGenerate); err != nil {
		return 0, err
	}
	inLen, err := guestSize(errors.PhaseGenerate, len(input))
	if err != nil {
		return 0, err
	}
	capacity, err := guestSize(errors.PhaseGenerate, len(output))
	if err != nil {
		return 0, err
	}

	inst, err := e.acquire()
	if err != nil {
		return 0, e.instantiationError(err)
	}

	n, err := e.generate(inst, input, output, inLen, capacity, seed)
	if err != nil {
		e.discard(inst, err)
		return 0, err
	}
	e.release(inst)
	return n, nil
}

func (e *WazeroEngine) generate(inst *instance, input, output []byte, inLen, capacity, seed uint32) (int, error) {
	ctx := e.ctx
	stack := inst.stack

	inPtr, err := e.alloc(inst, errors.PhaseGenerate, inLen)
	if err != nil {
		return 0, err
	}
	outPtr, err := e.alloc(inst, errors.PhaseGenerate, capacity)
	if err != nil {
		inst.alloc.Free(ctx, stack, inPtr, inLen)
		return 0, err
	}
	// LIFO so bump allocators can reclaim both.
	defer inst.alloc.Free(ctx, stack, inPtr, inLen)
	defer inst.alloc.Free(ctx, stack, outPtr, capacity)

	if !inst.mem.Write(inPtr, input) {
		return 0, errors.OutOfBounds(errors.PhaseGenerate, inPtr, inLen)
	}

	stack[0] = api.EncodeU32(inPtr)
	stack[1] = api.EncodeU32(inLen)
	stack[2] = api.EncodeU32(outPtr)
	stack[3] = api.EncodeU32(capacity)
	stack[4] = api.EncodeU32(seed)
	if err := inst.gen.CallWithStack(ctx, stack[:5]); err != nil {
		return 0, e.callError(errors.PhaseGenerate, ExportGen, err)
	}
	n := api.DecodeU32(stack[0])

	if !inst.read(outPtr, output[:min(n, capacity)]) {
		return 0, errors.OutOfBounds(errors.PhaseGenerate, outPtr, capacity)
	}
	return int(n), nil
}

// MutateInPlace runs radamsa over buf[:length] using all of buf as the
// output area. Bytes past the reported length are whatever the guest left.
func (e *WazeroEngine) MutateInPlace(buf []byte, length int, seed uint32) (int, error) {
	if err := e.ready(errors.PhaseMutate); err != nil {
		return 0, err
	}
	if length < 0 || length > len(buf) {
		return 0, errors.New(errors.PhaseMutate, errors.KindInvalidInput).
			Engine(e.name).
			Value(length).
			Detail("data length %d outside buffer of %d bytes", length, len(buf)).
			Build()
	}
	capacity, err := guestSize(errors.PhaseMutate, len(buf))
	if err != nil {
		return 0, err
	}

	inst, err := e.acquire()
	if err != nil {
		return 0, e.instantiationError(err)
	}

	n, err := e.mutate(inst, buf, uint32(length), capacity, seed)
	if err != nil {
		e.discard(inst, err)
		return 0, err
	}
	e.release(inst)
	return n, nil
}

func (e *WazeroEngine) mutate(inst *instance, buf []byte, length, capacity, seed uint32) (int, error) {
	ctx := e.ctx
	stack := inst.stack

	ptr, err := e.alloc(inst, errors.PhaseMutate, capacity)
	if err != nil {
		return 0, err
	}
	defer inst.alloc.Free(ctx, stack, ptr, capacity)

	if !inst.mem.Write(ptr, buf) {
		return 0, errors.OutOfBounds(errors.PhaseMutate, ptr, capacity)
	}

	stack[0] = api.EncodeU32(ptr)
	stack[1] = api.EncodeU32(length)
	stack[2] = api.EncodeU32(capacity)
	stack[3] = api.EncodeU32(seed)
	if err := inst.inplace.CallWithStack(ctx, stack[:4]); err != nil {
		return 0, e.callError(errors.PhaseMutate, ExportInPlace, err)
	}
	n := api.DecodeU32(stack[0])

	if !inst.read(ptr, buf) {
		return 0, errors.OutOfBounds(errors.PhaseMutate, ptr, capacity)
	}
	return int(n), nil
}

// Close releases every instance and the runtime.
func (e *WazeroEngine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	for {
		select {
		case inst := <-e.idle:
			e.closeInstance(inst)
		default:
			return e.runtime.Close(ctx)
		}
	}
}

func (e *WazeroEngine) ready(phase errors.Phase) error {
	if e.closed.Load() {
		return e.closedError(phase)
	}
	if !e.initDone.Load() {
		return errors.NotInitialized(phase, e.name)
	}
	return nil
}

func (e *WazeroEngine) alloc(inst *instance, phase errors.Phase, size uint32) (uint32, error) {
	ptr, err := inst.alloc.Alloc(e.ctx, inst.stack, size)
	if err != nil {
		return 0, e.callError(phase, inst.alloc.allocFn.Definition().Name(), err)
	}
	if ptr == 0 {
		aerr := errors.AllocationFailed(phase, size)
		aerr.Engine = e.name
		return 0, aerr
	}
	return ptr, nil
}

// discard drops an instance whose guest state can no longer be trusted.
// A failed allocation leaves the guest consistent, so that instance is kept.
func (e *WazeroEngine) discard(inst *instance, err error) {
	if errors.IsKind(err, errors.KindAllocation) {
		e.release(inst)
		return
	}
	Logger().Debug("discarding engine instance", zap.String("engine", e.name), zap.Error(err))
	e.closeInstance(inst)
}

func (e *WazeroEngine) callError(phase errors.Phase, export string, cause error) error {
	err := errors.EngineFailure(phase, export, cause)
	err.Engine = e.name
	return err
}

func (e *WazeroEngine) instantiationError(cause error) error {
	err := errors.Instantiation(cause)
	err.Engine = e.name
	return err
}

func (e *WazeroEngine) closedError(phase errors.Phase) error {
	return errors.New(phase, errors.KindEngine).
		Engine(e.name).
		Detail("engine closed").
		Build()
}

// guestSize checks that n is addressable by a wasm32 guest.
func guestSize(phase errors.Phase, n int) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, errors.Overflow(phase, n, "uint32")
	}
	return uint32(n), nil
}

var _ radamsa.Engine = (*WazeroEngine)(nil)
