package radamsa

import (
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/radamsa-go/errors"
)

// DefaultMaxSize is the Generate output capacity used when none is given.
const DefaultMaxSize = 1 << 20

// Mutator is the invocation layer around an Engine. It runs the engine's
// setup exactly once, resolves seeds and enforces the buffer contracts.
//
// A Mutator is safe for concurrent use provided its Engine is.
type Mutator struct {
	engine  Engine
	seeds   *SeedCounter
	logger  *zap.Logger
	maxSize int

	initOnce sync.Once
	initErr  *errors.Error
}

// New returns a Mutator over engine. The engine is not initialized until the
// first call to Init, Generate or Mutate.
func New(engine Engine, opts ...Option) *Mutator {
	m := &Mutator{
		engine:  engine,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.seeds == nil {
		m.seeds = DefaultSeeds()
	}
	return m
}

// Seeds returns the counter implicit seeds are drawn from.
func (m *Mutator) Seeds() *SeedCounter {
	return m.seeds
}

// Engine returns the underlying engine.
func (m *Mutator) Engine() Engine {
	return m.engine
}

func (m *Mutator) log() *zap.Logger {
	if m.logger != nil {
		return m.logger
	}
	return Logger()
}

// Init runs the engine setup if it has not run yet. Concurrent first callers
// block until it completes. A setup failure is fatal: Init panics with an
// *errors.Error, and so does every later call on this Mutator.
func (m *Mutator) Init() {
	m.initOnce.Do(m.runInit)
	if m.initErr != nil {
		m.fatal(m.initErr)
	}
}

func (m *Mutator) runInit() {
	defer func() {
		if r := recover(); r != nil {
			m.initErr = errors.New(errors.PhaseInit, errors.KindEngine).
				Engine(engineName(m.engine)).
				Value(r).
				Detail("engine setup panicked: %v", r).
				Build()
		}
	}()

	if err := m.engine.Init(); err != nil {
		m.initErr = errors.New(errors.PhaseInit, errors.KindEngine).
			Engine(engineName(m.engine)).
			Cause(err).
			Detail("engine setup failed").
			Build()
		return
	}
	m.log().Debug("radamsa engine initialized", zap.String("engine", engineName(m.engine)))
}

// Generate returns a mutation of input that is at most max size bytes long
// (DefaultMaxSize unless overridden). input is never modified and the result
// never aliases it. The result may be empty.
//
// An engine error, or an engine reporting more bytes than the capacity, is
// fatal and panics with an *errors.Error.
func (m *Mutator) Generate(input []byte, opts ...GenerateOption) []byte {
	m.Init()

	o := callOptions{maxSize: m.maxSize}
	for _, opt := range opts {
		opt.applyGenerate(&o)
	}
	if o.maxSize < 0 {
		m.fatal(errors.InvalidInput(errors.PhaseGenerate, fmt.Sprintf("negative max size %d", o.maxSize)))
	}

	seed := m.seeds.Resolve(o.seed)
	out := make([]byte, o.maxSize)

	n, err := m.engine.Generate(input, out, seed)
	if err != nil {
		m.fatal(m.engineError(errors.PhaseGenerate, err, seed), zap.Uint32("seed", seed))
	}
	if n < 0 || n > o.maxSize {
		m.fatal(m.capacityError(errors.PhaseGenerate, n, o.maxSize), zap.Uint32("seed", seed))
	}

	if n == len(out) {
		return out
	}
	// Don't pin maxSize bytes behind a short result.
	res := make([]byte, n)
	copy(res, out)
	return res
}

// Mutate mutates buf in place and returns the number of valid leading bytes.
// len(buf) is both the input length and the capacity available to the engine.
//
// Unlike Generate, the buffer is not truncated: len(buf) and cap(buf) are
// unchanged, and bytes from the returned length to len(buf) hold whatever the
// engine left there. Callers must use buf[:n].
//
// An empty buf is passed to the engine as is.
func (m *Mutator) Mutate(buf []byte, opts ...MutateOption) int {
	m.Init()

	var o callOptions
	for _, opt := range opts {
		opt.applyMutate(&o)
	}

	seed := m.seeds.Resolve(o.seed)

	n, err := m.engine.MutateInPlace(buf, len(buf), seed)
	if err != nil {
		m.fatal(m.engineError(errors.PhaseMutate, err, seed), zap.Uint32("seed", seed))
	}
	if n < 0 || n > len(buf) {
		m.fatal(m.capacityError(errors.PhaseMutate, n, len(buf)), zap.Uint32("seed", seed))
	}
	return n
}

// engineError reports err as fatal for seed. Structured engine errors pass
// through as a copy carrying the seed; anything else is wrapped.
func (m *Mutator) engineError(phase errors.Phase, err error, seed uint32) *errors.Error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		cp := *e
		if cp.Engine == "" {
			cp.Engine = engineName(m.engine)
		}
		if cp.Value == nil {
			cp.Value = seed
		}
		return &cp
	}
	return errors.New(phase, errors.KindEngine).
		Engine(engineName(m.engine)).
		Value(seed).
		Cause(err).
		Build()
}

func (m *Mutator) capacityError(phase errors.Phase, n, capacity int) *errors.Error {
	e := errors.CapacityExceeded(phase, n, capacity)
	e.Engine = engineName(m.engine)
	return e
}

func (m *Mutator) fatal(err *errors.Error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	m.log().Error("radamsa: unrecoverable engine condition", fields...)
	panic(err)
}
