package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// instance is one instantiated copy of the radamsa module. Instances are not
// safe for concurrent use; the engine hands each to one caller at a time.
type instance struct {
	mod     api.Module
	mem     api.Memory
	gen     api.Function
	inplace api.Function
	alloc   allocator
	stack   []uint64
}

// allocator calls the guest's own heap functions.
type allocator struct {
	allocFn     api.Function
	freeFn      api.Function
	allocParams int
	freeParams  int
}

func newAllocator(mod api.Module) (allocator, error) {
	for _, c := range allocCandidates {
		allocFn := mod.ExportedFunction(c.alloc)
		if allocFn == nil {
			continue
		}
		a := allocator{
			allocFn:     allocFn,
			allocParams: len(allocFn.Definition().ParamTypes()),
		}
		if freeFn := mod.ExportedFunction(c.free); freeFn != nil {
			a.freeFn = freeFn
			a.freeParams = len(freeFn.Definition().ParamTypes())
		}
		return a, nil
	}
	return allocator{}, fmt.Errorf("no allocator export")
}

// Alloc returns a guest pointer to size bytes, or 0 if the guest is out of
// memory. A zero-size request still gets a distinct pointer.
func (a allocator) Alloc(ctx context.Context, stack []uint64, size uint32) (uint32, error) {
	if size == 0 {
		size = 1
	}
	if a.allocParams < 4 {
		stack[0] = api.EncodeU32(size)
		if err := a.allocFn.CallWithStack(ctx, stack[:a.allocParams]); err != nil {
			return 0, err
		}
		return api.DecodeU32(stack[0]), nil
	}
	// cabi_realloc(old_ptr, old_size, align, new_size)
	stack[0] = 0
	stack[1] = 0
	stack[2] = api.EncodeU32(8)
	stack[3] = api.EncodeU32(size)
	if err := a.allocFn.CallWithStack(ctx, stack[:4]); err != nil {
		return 0, err
	}
	return api.DecodeU32(stack[0]), nil
}

func (a allocator) Free(ctx context.Context, stack []uint64, ptr, size uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	stack[0] = api.EncodeU32(ptr)
	stack[1] = api.EncodeU32(size)
	stack[2] = api.EncodeU32(8)
	if err := a.freeFn.CallWithStack(ctx, stack[:a.freeParams]); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

func (e *WazeroEngine) newInstance(ctx context.Context) (*instance, error) {
	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions(startInitialize)

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modConfig)
	if err != nil {
		return nil, err
	}

	inst := &instance{
		mod:     mod,
		mem:     mod.Memory(),
		gen:     mod.ExportedFunction(ExportGen),
		inplace: mod.ExportedFunction(ExportInPlace),
		stack:   make([]uint64, 8),
	}
	if inst.alloc, err = newAllocator(mod); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	if err := mod.ExportedFunction(ExportInit).CallWithStack(ctx, inst.stack[:0]); err != nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("%s: %w", ExportInit, err)
	}

	e.live.Add(1)
	return inst, nil
}

func (e *WazeroEngine) closeInstance(inst *instance) {
	e.live.Add(-1)
	if err := inst.mod.Close(e.ctx); err != nil {
		Logger().Debug("close instance", zap.Error(err))
	}
}

// acquire takes an idle instance or creates a new one.
func (e *WazeroEngine) acquire() (*instance, error) {
	select {
	case inst := <-e.idle:
		return inst, nil
	default:
	}
	return e.newInstance(e.ctx)
}

// release returns inst to the idle pool, closing it when the pool is full
// or the engine is shutting down.
func (e *WazeroEngine) release(inst *instance) {
	if e.closed.Load() {
		e.closeInstance(inst)
		return
	}
	select {
	case e.idle <- inst:
	default:
		e.closeInstance(inst)
	}
}

// read copies guest memory at ptr into dst.
func (inst *instance) read(ptr uint32, dst []byte) bool {
	if len(dst) == 0 {
		return true
	}
	data, ok := inst.mem.Read(ptr, uint32(len(dst)))
	if !ok {
		return false
	}
	copy(dst, data)
	return true
}
