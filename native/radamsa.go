//go:build linux && cgo

package native

/*
#cgo LDFLAGS: -L${SRCDIR}/../third_party/radamsa/lib -lradamsa -lm
#include <stdint.h>
#include <stddef.h>
void radamsa_init(void);
size_t radamsa(uint8_t *ptr, size_t len, uint8_t *target, size_t max, unsigned int seed);
size_t radamsa_inplace(uint8_t *ptr, size_t len, size_t max, unsigned int seed);
*/
import "C"

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/radamsa-go"
)

// Name identifies the native engine in errors and logs.
const Name = "native"

var (
	libInit sync.Once

	// libMu serializes calls into the library, whose Owl heap is process global.
	libMu sync.Mutex

	mutator     *radamsa.Mutator
	mutatorOnce sync.Once

	// empty stands in for the data pointer of zero-length slices.
	empty [1]byte
)

// Engine calls libradamsa. All Engine values share the library's single
// process-wide state, so Init runs radamsa_init at most once per process.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "native".
func (*Engine) Name() string {
	return Name
}

// Init runs radamsa_init the first time it is called in the process.
func (*Engine) Init() error {
	libInit.Do(func() {
		radamsa.Logger().Debug("initializing libradamsa")
		C.radamsa_init()
	})
	return nil
}

// Generate writes a mutation of input into output and returns the length
// the library reports.
func (*Engine) Generate(input, output []byte, seed uint32) (int, error) {
	libMu.Lock()
	n := C.radamsa(data(input), C.size_t(len(input)), data(output), C.size_t(len(output)), C.uint(seed))
	libMu.Unlock()
	return int(n), nil
}

// MutateInPlace mutates buf[:length] using all of buf as capacity.
func (*Engine) MutateInPlace(buf []byte, length int, seed uint32) (int, error) {
	libMu.Lock()
	n := C.radamsa_inplace(data(buf), C.size_t(length), C.size_t(len(buf)), C.uint(seed))
	libMu.Unlock()
	return int(n), nil
}

func data(b []byte) *C.uint8_t {
	if len(b) == 0 {
		return (*C.uint8_t)(unsafe.Pointer(&empty[0]))
	}
	return (*C.uint8_t)(unsafe.Pointer(unsafe.SliceData(b)))
}

// Mutator returns the process-wide Mutator used by Generate and Mutate.
func Mutator() *radamsa.Mutator {
	mutatorOnce.Do(func() {
		mutator = radamsa.New(New(), radamsa.WithLogger(radamsa.Logger().With(zap.String("engine", Name))))
	})
	return mutator
}

// Generate returns a mutation of input of at most 1 MiB, or the size given
// with radamsa.WithMaxSize. Without radamsa.WithSeed the seed comes from
// radamsa.DefaultSeeds.
func Generate(input []byte, opts ...radamsa.GenerateOption) []byte {
	return Mutator().Generate(input, opts...)
}

// Mutate mutates buf in place and returns how many leading bytes are valid.
// buf keeps its length.
func Mutate(buf []byte, opts ...radamsa.MutateOption) int {
	return Mutator().Mutate(buf, opts...)
}

var _ radamsa.Engine = (*Engine)(nil)
