package engine

import (
	"github.com/tetratelabs/wazero/api"
)

// Exports a radamsa module must provide.
const (
	ExportInit    = "radamsa_init"
	ExportGen     = "radamsa"
	ExportInPlace = "radamsa_inplace"
	ExportMemory  = "memory"

	// Reactor modules built with wasi-sdk run their constructors here.
	startInitialize = "_initialize"
)

// Allocator exports, in order of preference. The first three take a size;
// cabi_realloc follows the component model signature (ptr, old, align, new).
const (
	simpleAlloc   = "malloc"
	simpleFree    = "free"
	legacyAlloc   = "alloc"
	legacyDealloc = "dealloc"
	CabiRealloc   = "cabi_realloc"
	CabiFree      = "cabi_free"
)

var allocCandidates = []struct{ alloc, free string }{
	{simpleAlloc, simpleFree},
	{legacyAlloc, legacyDealloc},
	{CabiRealloc, CabiFree},
}

// signature describes a core function type in which every value is an i32.
type signature struct {
	params  int
	results int
}

var requiredFuncs = map[string]signature{
	ExportInit:    {params: 0, results: 0},
	ExportGen:     {params: 5, results: 1},
	ExportInPlace: {params: 4, results: 1},
}

func (s signature) matches(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	if len(params) != s.params || len(results) != s.results {
		return false
	}
	for _, t := range params {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	for _, t := range results {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	return true
}
