package radamsa

import "go.uber.org/zap"

// Option configures a Mutator.
type Option func(*Mutator)

// WithSeedCounter makes the Mutator draw implicit seeds from c instead of
// DefaultSeeds. Mutators sharing a counter never reuse each other's seeds.
func WithSeedCounter(c *SeedCounter) Option {
	return func(m *Mutator) {
		m.seeds = c
	}
}

// WithLogger sets the logger used for fatal contract violations.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mutator) {
		m.logger = l
	}
}

// WithDefaultMaxSize changes the Generate capacity used when a call passes no
// WithMaxSize. Negative values are ignored.
func WithDefaultMaxSize(n int) Option {
	return func(m *Mutator) {
		if n >= 0 {
			m.maxSize = n
		}
	}
}

// GenerateOption customizes a single Generate call.
type GenerateOption interface {
	applyGenerate(*callOptions)
}

// MutateOption customizes a single Mutate call.
type MutateOption interface {
	applyMutate(*callOptions)
}

type callOptions struct {
	seed    *uint32
	maxSize int
}

type seedOption uint32

func (o seedOption) applyGenerate(c *callOptions) { c.setSeed(uint32(o)) }
func (o seedOption) applyMutate(c *callOptions)   { c.setSeed(uint32(o)) }

func (c *callOptions) setSeed(v uint32) {
	c.seed = &v
}

// SeedOption is accepted by both Generate and Mutate.
type SeedOption interface {
	GenerateOption
	MutateOption
}

// WithSeed pins the call to an explicit seed; output is then reproducible
// for the same input and engine. Without it the Mutator's counter is used.
func WithSeed(seed uint32) SeedOption {
	return seedOption(seed)
}

type maxSizeOption int

func (o maxSizeOption) applyGenerate(c *callOptions) { c.maxSize = int(o) }

// WithMaxSize sets the Generate output capacity in bytes. Zero is valid and
// yields an empty result.
func WithMaxSize(n int) GenerateOption {
	return maxSizeOption(n)
}
