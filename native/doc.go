// Package native binds radamsa's C library, libradamsa.a, through cgo.
//
// The package only builds on linux with cgo enabled. Anywhere else it fails
// at compile time rather than at run time.
//
// Build the library with `make radamsa-lib`, which places it under
// third_party/radamsa/lib, or point CGO_LDFLAGS at an existing build.
//
// Generate and Mutate use a process-wide Mutator over the library and the
// shared radamsa.DefaultSeeds counter:
//
//	out := native.Generate([]byte("hello world"))
//
//	buf := append([]byte("hello world"), make([]byte, 1000)...)
//	n := native.Mutate(buf, radamsa.WithSeed(7))
//	use(buf[:n])
package native
