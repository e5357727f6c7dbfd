package radamsa_test

import (
	stderrors "errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/errors"
	"github.com/wippyai/radamsa-go/radamsatest"
)

func newMutator(t *testing.T, opts ...radamsa.Option) (*radamsa.Mutator, *radamsatest.Engine) {
	t.Helper()
	eng := radamsatest.New()
	opts = append([]radamsa.Option{radamsa.WithSeedCounter(radamsa.NewSeedCounter())}, opts...)
	return radamsa.New(eng, opts...), eng
}

func mustPanic(t *testing.T, fn func()) *errors.Error {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	if got == nil {
		t.Fatal("expected panic")
	}
	err, ok := got.(*errors.Error)
	if !ok {
		t.Fatalf("panic value %T (%v), want *errors.Error", got, got)
	}
	return err
}

func TestGenerate_Deterministic(t *testing.T) {
	m, _ := newMutator(t)
	input := []byte("hello world")

	first := m.Generate(input, radamsa.WithSeed(7))
	for i := 0; i < 10; i++ {
		got := m.Generate(input, radamsa.WithSeed(7))
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}

	// A separate Mutator and engine must agree as well.
	other, _ := newMutator(t)
	if diff := cmp.Diff(first, other.Generate(input, radamsa.WithSeed(7))); diff != "" {
		t.Errorf("fresh mutator differs (-first +got):\n%s", diff)
	}
}

func TestGenerate_CapacityBound(t *testing.T) {
	m, _ := newMutator(t)
	inputs := [][]byte{
		nil,
		{},
		[]byte("a"),
		[]byte("hello world"),
		make([]byte, 4096),
	}
	sizes := []int{0, 1, 2, 16, 1024}

	for _, in := range inputs {
		for _, size := range sizes {
			for seed := uint32(0); seed < 20; seed++ {
				out := m.Generate(in, radamsa.WithSeed(seed), radamsa.WithMaxSize(size))
				if len(out) > size {
					t.Fatalf("len(out)=%d exceeds max size %d (input len %d, seed %d)", len(out), size, len(in), seed)
				}
				if cap(out) != len(out) {
					t.Fatalf("cap(out)=%d, want %d", cap(out), len(out))
				}
			}
		}
	}
}

func TestGenerate_EmptyInputSeedZero(t *testing.T) {
	m, _ := newMutator(t)

	out := m.Generate(nil, radamsa.WithSeed(0), radamsa.WithMaxSize(16))
	if len(out) > 16 {
		t.Fatalf("len(out)=%d, want <= 16", len(out))
	}
	again := m.Generate([]byte{}, radamsa.WithSeed(0), radamsa.WithMaxSize(16))
	if diff := cmp.Diff(out, again); diff != "" {
		t.Errorf("seed 0 not reproducible (-first +second):\n%s", diff)
	}
}

func TestGenerate_DoesNotModifyInput(t *testing.T) {
	m, _ := newMutator(t)
	input := []byte("hello world")
	orig := slices.Clone(input)

	for seed := uint32(0); seed < 50; seed++ {
		out := m.Generate(input, radamsa.WithSeed(seed))
		if diff := cmp.Diff(orig, input); diff != "" {
			t.Fatalf("input modified by seed %d:\n%s", seed, diff)
		}
		if len(out) > 0 && len(input) > 0 && &out[0] == &input[0] {
			t.Fatal("output aliases input")
		}
	}
}

type capacityRecorder struct {
	radamsatest.Engine
	mu   sync.Mutex
	caps []int
}

func (c *capacityRecorder) Generate(input, output []byte, seed uint32) (int, error) {
	c.mu.Lock()
	c.caps = append(c.caps, len(output))
	c.mu.Unlock()
	for i, b := range output {
		if b != 0 {
			return 0, fmt.Errorf("output buffer not zeroed at %d", i)
		}
	}
	return c.Engine.Generate(input, output, seed)
}

func TestGenerate_BufferSizing(t *testing.T) {
	rec := &capacityRecorder{}
	m := radamsa.New(rec, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))

	m.Generate([]byte("x"))
	m.Generate([]byte("x"), radamsa.WithMaxSize(16))
	m.Generate([]byte("x"), radamsa.WithMaxSize(0))

	want := []int{radamsa.DefaultMaxSize, 16, 0}
	if diff := cmp.Diff(want, rec.caps); diff != "" {
		t.Errorf("capacities (-want +got):\n%s", diff)
	}
	if radamsa.DefaultMaxSize != 1048576 {
		t.Errorf("DefaultMaxSize = %d, want 1 MiB", radamsa.DefaultMaxSize)
	}
}

func TestGenerate_WithDefaultMaxSize(t *testing.T) {
	rec := &capacityRecorder{}
	m := radamsa.New(rec,
		radamsa.WithSeedCounter(radamsa.NewSeedCounter()),
		radamsa.WithDefaultMaxSize(64))

	m.Generate([]byte("x"))
	m.Generate([]byte("x"), radamsa.WithMaxSize(8))

	if diff := cmp.Diff([]int{64, 8}, rec.caps); diff != "" {
		t.Errorf("capacities (-want +got):\n%s", diff)
	}
}

func TestGenerate_NegativeMaxSizePanics(t *testing.T) {
	m, _ := newMutator(t)
	err := mustPanic(t, func() {
		m.Generate([]byte("x"), radamsa.WithMaxSize(-1))
	})
	if err.Kind != errors.KindInvalidInput || err.Phase != errors.PhaseGenerate {
		t.Errorf("got %v", err)
	}
}

func TestMutate_PreservesLength(t *testing.T) {
	m, _ := newMutator(t)

	buf := append([]byte("hello world"), make([]byte, 1000)...)
	if len(buf) != 1011 {
		t.Fatalf("setup: len=%d", len(buf))
	}
	capBefore := cap(buf)

	n := m.Mutate(buf, radamsa.WithSeed(42))
	if n > 1011 {
		t.Errorf("filled %d, want <= 1011", n)
	}
	if len(buf) != 1011 {
		t.Errorf("len(buf)=%d after Mutate, want 1011", len(buf))
	}
	if cap(buf) != capBefore {
		t.Errorf("cap(buf)=%d after Mutate, want %d", cap(buf), capBefore)
	}
}

func TestMutate_Deterministic(t *testing.T) {
	m, _ := newMutator(t)
	orig := append([]byte("hello world"), make([]byte, 32)...)

	a := slices.Clone(orig)
	b := slices.Clone(orig)
	na := m.Mutate(a, radamsa.WithSeed(3))
	nb := m.Mutate(b, radamsa.WithSeed(3))

	if na != nb {
		t.Fatalf("fill lengths differ: %d vs %d", na, nb)
	}
	if diff := cmp.Diff(a[:na], b[:nb]); diff != "" {
		t.Errorf("valid prefixes differ:\n%s", diff)
	}
}

func TestMutate_Repeated(t *testing.T) {
	m, _ := newMutator(t)
	buf := append([]byte("hello world"), make([]byte, 1000)...)

	for i := 0; i < 100; i++ {
		n := m.Mutate(buf)
		if n > len(buf) || len(buf) != 1011 {
			t.Fatalf("iteration %d: n=%d len=%d", i, n, len(buf))
		}
	}
	if got := m.Seeds().Peek(); got != 100 {
		t.Errorf("counter at %d, want 100", got)
	}
}

func TestMutate_EmptyBuffer(t *testing.T) {
	m, eng := newMutator(t)

	if n := m.Mutate(nil, radamsa.WithSeed(1)); n != 0 {
		t.Errorf("Mutate(nil) = %d, want 0", n)
	}
	if n := m.Mutate([]byte{}, radamsa.WithSeed(2)); n != 0 {
		t.Errorf("Mutate(empty) = %d, want 0", n)
	}
	if diff := cmp.Diff([]uint32{1, 2}, eng.Seeds()); diff != "" {
		t.Errorf("empty buffers should still reach the engine (-want +got):\n%s", diff)
	}
}

func TestGenerate_ImplicitSeedsSequential(t *testing.T) {
	m, eng := newMutator(t)
	input := []byte("hello world")

	for i := 0; i < 100; i++ {
		m.Generate(input)
	}

	seeds := eng.Seeds()
	for i, s := range seeds {
		if s != uint32(i) {
			t.Fatalf("seed %d = %d, want %d", i, s, i)
		}
	}
}

func TestImplicitSeeds_Concurrent(t *testing.T) {
	m, eng := newMutator(t)
	const (
		workers = 16
		perG    = 64
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			buf := make([]byte, 32)
			for i := 0; i < perG; i++ {
				if (w+i)%2 == 0 {
					m.Generate([]byte("abc"), radamsa.WithMaxSize(64))
				} else {
					m.Mutate(buf)
				}
			}
		}(w)
	}
	wg.Wait()

	seeds := eng.Seeds()
	if len(seeds) != workers*perG {
		t.Fatalf("engine saw %d calls, want %d", len(seeds), workers*perG)
	}
	slices.Sort(seeds)
	for i, s := range seeds {
		if s != uint32(i) {
			t.Fatalf("sorted seed %d = %d: duplicate or gap", i, s)
		}
	}
	if got := m.Seeds().Peek(); got != workers*perG {
		t.Errorf("counter at %d, want %d", got, workers*perG)
	}
}

func TestExplicitSeed_LeavesCounter(t *testing.T) {
	m, eng := newMutator(t)

	m.Generate([]byte("a"), radamsa.WithSeed(1000))
	m.Mutate(make([]byte, 4), radamsa.WithSeed(2000))
	if got := m.Seeds().Peek(); got != 0 {
		t.Errorf("counter advanced to %d by explicit seeds", got)
	}

	m.Generate([]byte("a"))
	if diff := cmp.Diff([]uint32{1000, 2000, 0}, eng.Seeds()); diff != "" {
		t.Errorf("seeds (-want +got):\n%s", diff)
	}
}

func TestSharedSeedCounter(t *testing.T) {
	counter := radamsa.NewSeedCounter()
	e1, e2 := radamsatest.New(), radamsatest.New()
	m1 := radamsa.New(e1, radamsa.WithSeedCounter(counter))
	m2 := radamsa.New(e2, radamsa.WithSeedCounter(counter))

	m1.Generate([]byte("a"))
	m2.Generate([]byte("a"))
	m1.Generate([]byte("a"))

	if diff := cmp.Diff([]uint32{0, 2}, e1.Seeds()); diff != "" {
		t.Errorf("m1 seeds (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{1}, e2.Seeds()); diff != "" {
		t.Errorf("m2 seeds (-want +got):\n%s", diff)
	}
}

func TestInit_Once(t *testing.T) {
	m, eng := newMutator(t)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			switch i % 3 {
			case 0:
				m.Generate([]byte("x"), radamsa.WithMaxSize(8))
			case 1:
				m.Mutate(make([]byte, 8))
			default:
				m.Init()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < 10; i++ {
		m.Init()
	}
	if got := eng.InitCalls(); got != 1 {
		t.Errorf("engine Init ran %d times, want 1", got)
	}
}

func TestInit_Lazy(t *testing.T) {
	_, eng := newMutator(t)
	if got := eng.InitCalls(); got != 0 {
		t.Errorf("New ran Init %d times, want 0", got)
	}
}

func TestInit_FailureIsFatal(t *testing.T) {
	eng := radamsatest.New()
	eng.InitErr = stderrors.New("no heap")
	m := radamsa.New(eng, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))

	err := mustPanic(t, func() { m.Generate([]byte("x")) })
	if err.Phase != errors.PhaseInit || err.Kind != errors.KindEngine {
		t.Errorf("got %v", err)
	}
	if !stderrors.Is(err, eng.InitErr) {
		t.Errorf("panic error should wrap the setup error: %v", err)
	}

	// No retry: later calls fail the same way without re-running setup.
	err = mustPanic(t, func() { m.Mutate(make([]byte, 4)) })
	if err.Phase != errors.PhaseInit {
		t.Errorf("got %v", err)
	}
	if got := eng.InitCalls(); got != 1 {
		t.Errorf("Init ran %d times, want 1", got)
	}
}

type panickingInit struct{ radamsatest.Failing }

func (panickingInit) Init() error { panic("boom") }

func TestInit_PanicIsRecorded(t *testing.T) {
	m := radamsa.New(panickingInit{}, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))

	for i := 0; i < 2; i++ {
		err := mustPanic(t, m.Init)
		if err.Phase != errors.PhaseInit || err.Value != "boom" {
			t.Errorf("attempt %d: got %v", i, err)
		}
	}
}

func TestCapacityExceeded_IsFatal(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := radamsa.New(radamsatest.Overflowing{Extra: 1},
		radamsa.WithSeedCounter(radamsa.NewSeedCounter()),
		radamsa.WithLogger(zap.New(core)))

	err := mustPanic(t, func() {
		m.Generate([]byte("x"), radamsa.WithMaxSize(16), radamsa.WithSeed(5))
	})
	if err.Kind != errors.KindCapacityExceeded || err.Phase != errors.PhaseGenerate {
		t.Errorf("generate: got %v", err)
	}
	if err.Value != 17 {
		t.Errorf("reported length = %v, want 17", err.Value)
	}

	err = mustPanic(t, func() { m.Mutate(make([]byte, 8)) })
	if err.Kind != errors.KindCapacityExceeded || err.Phase != errors.PhaseMutate {
		t.Errorf("mutate: got %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	if seed, ok := entries[0].ContextMap()["seed"]; !ok || seed != uint32(5) {
		t.Errorf("first entry seed field = %v", seed)
	}
}

func TestEngineFailure_IsFatal(t *testing.T) {
	cause := stderrors.New("trap")
	m := radamsa.New(radamsatest.Failing{Err: cause}, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))

	err := mustPanic(t, func() { m.Generate([]byte("x")) })
	if err.Kind != errors.KindEngine || !stderrors.Is(err, cause) {
		t.Errorf("got %v", err)
	}
	err = mustPanic(t, func() { m.Mutate([]byte("x")) })
	if err.Phase != errors.PhaseMutate {
		t.Errorf("got %v", err)
	}
}

func TestEngineFailure_StructuredErrorNotRewrapped(t *testing.T) {
	closed := stderrors.New("engine closed")
	engErr := errors.EngineFailure(errors.PhaseGenerate, "radamsa", closed)
	m := radamsa.New(radamsatest.Failing{Err: engErr}, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))

	err := mustPanic(t, func() { m.Generate([]byte("x"), radamsa.WithSeed(9)) })
	if got := strings.Count(err.Error(), string(errors.KindEngine)); got != 1 {
		t.Errorf("kind appears %d times in %q", got, err.Error())
	}
	if err.Export != "radamsa" || err.Value != uint32(9) || !stderrors.Is(err, closed) {
		t.Errorf("got %#v", err)
	}
	if err == engErr || engErr.Value != nil {
		t.Error("engine error must be copied, not modified")
	}
}

func TestSeedCounter(t *testing.T) {
	t.Run("starts at zero", func(t *testing.T) {
		c := radamsa.NewSeedCounter()
		for i := uint32(0); i < 5; i++ {
			if got := c.Next(); got != i {
				t.Fatalf("Next() = %d, want %d", got, i)
			}
		}
	})

	t.Run("wraps", func(t *testing.T) {
		c := radamsa.NewSeedCounterFrom(math.MaxUint32)
		if got := c.Next(); got != math.MaxUint32 {
			t.Errorf("Next() = %d, want MaxUint32", got)
		}
		if got := c.Next(); got != 0 {
			t.Errorf("Next() after wrap = %d, want 0", got)
		}
	})

	t.Run("resolve", func(t *testing.T) {
		c := radamsa.NewSeedCounter()
		explicit := uint32(99)
		if got := c.Resolve(&explicit); got != 99 {
			t.Errorf("Resolve(&99) = %d", got)
		}
		if got := c.Peek(); got != 0 {
			t.Errorf("explicit resolve advanced counter to %d", got)
		}
		if got := c.Resolve(nil); got != 0 {
			t.Errorf("Resolve(nil) = %d, want 0", got)
		}
		if got := c.Peek(); got != 1 {
			t.Errorf("Peek() = %d, want 1", got)
		}
	})

	t.Run("default is shared", func(t *testing.T) {
		if radamsa.DefaultSeeds() != radamsa.DefaultSeeds() {
			t.Error("DefaultSeeds returned different counters")
		}
		m := radamsa.New(radamsatest.New())
		if m.Seeds() != radamsa.DefaultSeeds() {
			t.Error("Mutator without WithSeedCounter should use DefaultSeeds")
		}
	})
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	radamsa.SetLogger(zap.New(core))
	defer radamsa.SetLogger(nil)

	m := radamsa.New(radamsatest.Overflowing{Extra: 3}, radamsa.WithSeedCounter(radamsa.NewSeedCounter()))
	mustPanic(t, func() { m.Generate(nil, radamsa.WithMaxSize(1)) })

	if logs.Len() != 1 {
		t.Errorf("package logger saw %d entries, want 1", logs.Len())
	}
}
