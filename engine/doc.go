// Package engine runs a WebAssembly build of radamsa under wazero.
//
// WazeroEngine implements radamsa.Engine. It compiles the module once and
// gives every concurrent call its own instance, so the guest never sees two
// calls at once and a goroutine never waits on another one's mutation.
//
// # Module ABI
//
// The module must export:
//
//	memory                                           linear memory
//	radamsa_init()                                   one-time guest setup
//	radamsa(in, len, out, max, seed i32) i32         generate into out
//	radamsa_inplace(buf, len, max, seed i32) i32     mutate buf in place
//	malloc(size i32) i32 / free(ptr i32)             guest heap
//
// alloc/dealloc or cabi_realloc/cabi_free are accepted in place of
// malloc/free. Reactor builds that export _initialize have it run before
// radamsa_init. Modules that import wasi_snapshot_preview1 get wazero's
// implementation, with the default deterministic clock and no filesystem.
//
// # Lifecycle
//
//  1. NewWazeroEngine compiles the module
//  2. Init checks the exports and creates the first instance
//  3. Generate and MutateInPlace borrow an instance per call
//  4. Close releases instances and the runtime
//
// An instance whose call traps is closed rather than reused. Instances are
// created on demand; at most Config.MaxIdleInstances are kept idle.
//
// # Building radamsa.wasm
//
// `make radamsa-wasm` compiles the C output of radamsa's Owl build with
// wasi-sdk and exports the functions above.
package engine
