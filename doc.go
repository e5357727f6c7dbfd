// Package radamsa is a Go invocation layer for the radamsa mutation engine.
//
// radamsa takes an input byte sequence and a seed and produces a related but
// perturbed sequence, which fuzz harnesses use as test input. The mutation
// algorithms live in the engine and are treated as opaque; this package owns
// the parts around them that callers depend on for correctness: one-time
// engine setup, seed selection across goroutines, and the two buffer
// contracts.
//
// # Architecture Overview
//
//	radamsa/          Mutator, Engine interface, seeds, call options
//	├── engine/       wazero-backed Engine for a WASM build of radamsa
//	├── native/       cgo Engine for libradamsa.a (linux only)
//	├── radamsatest/  deterministic Engine doubles for tests
//	├── errors/       structured error types
//	└── cmd/radamsa/  command line front end
//
// # Quick Start
//
//	eng, err := engine.NewWazeroEngine(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	m := radamsa.New(eng)
//	out := m.Generate([]byte("hello world"), radamsa.WithSeed(42))
//
//	buf := append([]byte("hello world"), make([]byte, 1000)...)
//	n := m.Mutate(buf, radamsa.WithSeed(42))
//	fmt.Printf("%q\n", buf[:n])
//
// # Buffer Contracts
//
// Generate allocates a zeroed buffer of the requested capacity (DefaultMaxSize,
// 1 MiB, unless WithMaxSize is given), lets the engine fill it, and returns
// exactly the reported prefix as a new slice.
//
// Mutate hands the caller's buffer to the engine as both input and output.
// len(buf) is the capacity; nothing beyond it is offered to the engine. The
// buffer is not truncated afterwards: only buf[:n] is meaningful and the
// bytes after n are unspecified. This asymmetry with Generate is part of the
// contract.
//
// # Seeds
//
// WithSeed makes a call reproducible. Calls without it draw the next value
// from a SeedCounter, by default the process-wide DefaultSeeds. Implicit
// seeds are unique until the 32-bit counter wraps, but their order says
// nothing about the wall-clock order of concurrent calls.
//
// # Failure Model
//
// There is no recoverable error path in Generate and Mutate. An engine whose
// setup fails, that returns an error, or that reports more output than the
// capacity it was given has broken its contract; the Mutator logs the
// condition and panics with an *errors.Error. Degenerate inputs such as an
// empty slice are not errors and go to the engine unchanged.
//
// # Thread Safety
//
// Mutator adds no locking around engine calls. It is safe for concurrent
// use exactly when its Engine is, which every Engine in this module is.
package radamsa
