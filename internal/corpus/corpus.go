// Package corpus produces batches of radamsa test cases from one input.
package corpus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/radamsa-go"
)

// Mode selects which Mutator operation produces cases.
type Mode int

const (
	// Generate calls Mutator.Generate with MaxSize as the capacity.
	Generate Mode = iota
	// Mutate copies the input into a fresh buffer, pads it with Headroom
	// zero bytes and mutates it in place.
	Mutate
)

func (m Mode) String() string {
	if m == Mutate {
		return "mutate"
	}
	return "generate"
}

// Case is one produced test case.
type Case struct {
	Index int
	Seed  uint32
	Data  []byte
}

// Sink receives cases. Write may be called from several goroutines.
type Sink interface {
	Write(c Case) error
}

// Options controls a Run.
type Options struct {
	// Seed, when set, makes case i use seed Seed+i. Otherwise each case
	// draws from the Mutator's seed counter.
	Seed *uint32

	// Limiter paces case production when non-nil.
	Limiter *rate.Limiter

	Logger *zap.Logger

	Mode     Mode
	Count    int
	MaxSize  int // Generate capacity in bytes; negative uses the Mutator default
	Headroom int // extra zero bytes in Mutate buffers
	Jobs     int // worker goroutines; 0 means 1
}

// Run produces opts.Count cases and passes each to sink. It stops at the
// first sink error or when ctx is done, returning stats for the cases
// already written.
func Run(ctx context.Context, m *radamsa.Mutator, input []byte, opts Options, sink Sink) (*Stats, error) {
	jobs := max(opts.Jobs, 1)
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := NewStats(opts.Mode)
	indexes := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	// Mutator setup panics are fatal; run it once before starting workers
	// so they surface on the caller's goroutine.
	m.Init()

	start := time.Now()
	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if opts.Limiter != nil {
					if err := opts.Limiter.Wait(ctx); err != nil {
						fail(err)
						return
					}
				}
				c := produce(m, input, i, opts)
				if err := sink.Write(c); err != nil {
					fail(err)
					return
				}
				stats.Record(len(c.Data))
			}
		}()
	}

feed:
	for i := range opts.Count {
		if ctx.Err() != nil {
			break
		}
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()
	stats.Elapsed = time.Since(start)

	if firstErr == nil {
		firstErr = context.Cause(ctx)
		if firstErr == context.Canceled && stats.Cases == opts.Count {
			firstErr = nil
		}
	}

	log.Debug("corpus run finished",
		zap.Stringer("mode", opts.Mode),
		zap.Int("cases", stats.Cases),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Error(firstErr))

	return stats, firstErr
}

func produce(m *radamsa.Mutator, input []byte, i int, opts Options) Case {
	var seed uint32
	if opts.Seed != nil {
		seed = *opts.Seed + uint32(i)
	} else {
		seed = m.Seeds().Next()
	}

	if opts.Mode == Mutate {
		buf := make([]byte, len(input)+max(opts.Headroom, 0))
		copy(buf, input)
		n := m.Mutate(buf, radamsa.WithSeed(seed))
		return Case{Index: i, Seed: seed, Data: buf[:n:n]}
	}

	gen := []radamsa.GenerateOption{radamsa.WithSeed(seed)}
	if opts.MaxSize >= 0 {
		gen = append(gen, radamsa.WithMaxSize(opts.MaxSize))
	}
	out := m.Generate(input, gen...)
	return Case{Index: i, Seed: seed, Data: out}
}
