package corpus

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/term"

	"github.com/wippyai/radamsa-go/errors"
)

// WriterSink writes cases to w one after another. When w is a terminal each
// case is printed on its own line as a quoted string, since raw fuzz output
// can wreck the terminal state.
type WriterSink struct {
	mu      sync.Mutex
	w       io.Writer
	escaped bool
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	escaped := false
	if f, ok := w.(*os.File); ok {
		escaped = term.IsTerminal(int(f.Fd()))
	}
	return &WriterSink{w: w, escaped: escaped}
}

// SetEscaped forces escaping on or off.
func (s *WriterSink) SetEscaped(escaped bool) {
	s.mu.Lock()
	s.escaped = escaped
	s.mu.Unlock()
}

func (s *WriterSink) Write(c Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.escaped {
		_, err := fmt.Fprintf(s.w, "%d\t%d\t%s\n", c.Index, c.Seed, strconv.Quote(string(c.Data)))
		return err
	}
	_, err := s.w.Write(c.Data)
	return err
}

// FileSink writes each case to its own file. The file name is a printf
// pattern taking the case index, such as "out/case-%04d.bin".
type FileSink struct {
	pattern string
}

// NewFileSink validates pattern and creates its directory.
func NewFileSink(pattern string) (*FileSink, error) {
	if strings.Count(pattern, "%") != 1 || strings.Contains(fmt.Sprintf(pattern, 0), "%!") {
		return nil, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("output pattern %q must contain exactly one integer verb", pattern))
	}
	if dir := filepath.Dir(pattern); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	return &FileSink{pattern: pattern}, nil
}

// Path returns the file name for case index i.
func (s *FileSink) Path(i int) string {
	return fmt.Sprintf(s.pattern, i)
}

func (s *FileSink) Write(c Case) error {
	if err := atomic.WriteFile(s.Path(c.Index), bytes.NewReader(c.Data)); err != nil {
		return fmt.Errorf("write case %d: %w", c.Index, err)
	}
	return nil
}
