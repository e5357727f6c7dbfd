//go:build radamsa_native

package main

import (
	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/native"
)

func init() {
	nativeEngine = func() radamsa.Engine { return native.New() }
}
