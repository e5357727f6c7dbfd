//go:build !linux || !cgo

package native

// libradamsa is only linked on linux with cgo enabled. Referencing an
// undefined identifier turns any other build into a compile error that
// names the requirement.
var _ = radamsa_native_requires_linux_and_cgo
