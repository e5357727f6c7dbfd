// Package radamsatest provides radamsa.Engine implementations for tests.
//
// Engine is a deterministic stand-in that applies a few seeded byte edits
// (insert, copy, delete, flip) so that output depends on input and seed the
// way a real engine's does. It also counts Init calls and records every seed
// it was given, which is what invocation-layer tests need to observe.
//
// Overflowing and Failing break the engine contract on purpose.
//
// None of these are mutation engines in their own right.
package radamsatest
