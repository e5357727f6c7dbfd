package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const wasiModuleName = wasi_snapshot_preview1.ModuleName

// importsWASI reports whether the compiled module imports anything from
// wasi_snapshot_preview1. A freestanding build of radamsa imports nothing.
func importsWASI(compiled wazero.CompiledModule) bool {
	for _, def := range compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok && mod == wasiModuleName {
			return true
		}
	}
	return false
}

// instantiateWASI registers WASI preview1 in the runtime.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(wasiModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}
