package radamsatest

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wippyai/radamsa-go"
)

// Engine is a deterministic radamsa.Engine double. The zero value is ready to use.
type Engine struct {
	// InitErr, when set, is returned by every Init call.
	InitErr error

	initCalls   atomic.Int64
	initialized atomic.Bool

	mu    sync.Mutex
	seeds []uint32
}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return "radamsatest"
}

func (e *Engine) Init() error {
	e.initCalls.Add(1)
	if e.InitErr != nil {
		return e.InitErr
	}
	e.initialized.Store(true)
	return nil
}

// InitCalls returns how many times Init ran.
func (e *Engine) InitCalls() int {
	return int(e.initCalls.Load())
}

// Seeds returns the seeds passed to Generate and MutateInPlace, in the order
// the calls reached the engine.
func (e *Engine) Seeds() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.seeds)
}

func (e *Engine) record(seed uint32) error {
	if !e.initialized.Load() {
		return fmt.Errorf("radamsatest: engine called before Init")
	}
	e.mu.Lock()
	e.seeds = append(e.seeds, seed)
	e.mu.Unlock()
	return nil
}

func (e *Engine) Generate(input, output []byte, seed uint32) (int, error) {
	if err := e.record(seed); err != nil {
		return 0, err
	}
	return copy(output, Mutation(input, seed)), nil
}

func (e *Engine) MutateInPlace(buf []byte, length int, seed uint32) (int, error) {
	if err := e.record(seed); err != nil {
		return 0, err
	}
	if length < 0 || length > len(buf) {
		return 0, fmt.Errorf("radamsatest: length %d outside buffer of %d", length, len(buf))
	}
	return copy(buf, Mutation(buf[:length], seed)), nil
}

// Mutation returns the bytes Engine produces for data and seed before
// capacity is applied. data is not modified.
func Mutation(data []byte, seed uint32) []byte {
	r := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	out := slices.Clone(data)
	edits := 1 + r.IntN(4)
	for range edits {
		out = edit(r, out)
	}
	return out
}

func edit(r *rand.Rand, s []byte) []byte {
	if len(s) == 0 {
		return insert(r, s)
	}
	switch r.IntN(4) {
	case 0:
		return insert(r, s)
	case 1:
		pos := r.IntN(len(s))
		return slices.Insert(s, pos, s[pos])
	case 2:
		pos := r.IntN(len(s))
		return slices.Delete(s, pos, pos+1)
	default:
		pos := r.IntN(len(s))
		s[pos] ^= 1 << r.IntN(8)
		return s
	}
}

func insert(r *rand.Rand, s []byte) []byte {
	return slices.Insert(s, r.IntN(len(s)+1), byte(32+r.IntN(95)))
}

// Overflowing reports Extra more bytes than the capacity it was given,
// without writing them. Use it to exercise capacity checks.
type Overflowing struct {
	Extra int
}

func (o Overflowing) Init() error { return nil }

func (o Overflowing) Generate(_, output []byte, _ uint32) (int, error) {
	return len(output) + o.Extra, nil
}

func (o Overflowing) MutateInPlace(buf []byte, _ int, _ uint32) (int, error) {
	return len(buf) + o.Extra, nil
}

// Failing returns Err from every engine call after a successful Init.
type Failing struct {
	Err error
}

func (f Failing) Init() error { return nil }

func (f Failing) Generate(_, _ []byte, _ uint32) (int, error) { return 0, f.Err }

func (f Failing) MutateInPlace(_ []byte, _ int, _ uint32) (int, error) { return 0, f.Err }

var (
	_ radamsa.Engine = (*Engine)(nil)
	_ radamsa.Namer  = (*Engine)(nil)
	_ radamsa.Engine = Overflowing{}
	_ radamsa.Engine = Failing{}
)
