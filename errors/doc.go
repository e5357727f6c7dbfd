// Package errors provides structured error types for the radamsa module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the engine backend, the engine entry point involved and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseGenerate, errors.KindEngine).
//		Engine("wazero").
//		Export("radamsa").
//		Detail("guest trapped").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.CapacityExceeded(errors.PhaseGenerate, 17, 16)
//	err := errors.Overflow(errors.PhaseMutate, size, "uint32")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
