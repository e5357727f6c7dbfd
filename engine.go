package radamsa

// Engine is the opaque mutation engine behind a Mutator.
//
// Implementations translate the calls into whatever calling convention the
// underlying engine uses (a statically linked C library, a WASM module, a test
// double). Once Init has returned nil, Generate and MutateInPlace must be safe
// for concurrent use: Mutator serializes nothing around them.
type Engine interface {
	// Init runs the engine's one-time setup.
	Init() error

	// Generate writes a mutation of input into output and returns the number of
	// bytes the engine reports as produced. len(output) is the capacity.
	// input must not be modified.
	Generate(input, output []byte, seed uint32) (int, error)

	// MutateInPlace treats buf[:length] as input and buf as the output
	// capacity, and returns the number of valid leading bytes.
	MutateInPlace(buf []byte, length int, seed uint32) (int, error)
}

// Namer is implemented by engines that report a backend name in errors and logs.
type Namer interface {
	Name() string
}

func engineName(e Engine) string {
	if n, ok := e.(Namer); ok {
		return n.Name()
	}
	return ""
}
