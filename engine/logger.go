package engine

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/radamsa-go"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the engine package logger. Until SetLogger is called it
// is a named child of radamsa.Logger.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return radamsa.Logger().Named("engine")
}

// SetLogger configures the engine package's logger. nil restores the default.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
