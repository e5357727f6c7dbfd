package corpus

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/InVisionApp/tabular"
	"github.com/beorn7/perks/quantile"
	"gopkg.in/yaml.v2"
)

var quantiles = []float64{0.50, 0.90, 0.99}

var quantilesTarget = map[float64]float64{
	0.50: 0.01,
	0.90: 0.001,
	0.99: 0.001,
}

// Stats summarizes the case lengths of a Run.
type Stats struct {
	mu  sync.Mutex
	est *quantile.Stream

	Mode    Mode
	Cases   int
	Bytes   int64
	Min     int
	Max     int
	Empty   int
	Elapsed time.Duration
}

// NewStats returns empty stats for mode.
func NewStats(mode Mode) *Stats {
	return &Stats{
		Mode: mode,
		est:  quantile.NewTargeted(quantilesTarget),
	}
}

// Record adds one case of length n.
func (s *Stats) Record(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Cases == 0 || n < s.Min {
		s.Min = n
	}
	if n > s.Max {
		s.Max = n
	}
	if n == 0 {
		s.Empty++
	}
	s.Cases++
	s.Bytes += int64(n)
	s.est.Insert(float64(n))
}

// Summary is the serialized form of Stats.
type Summary struct {
	Mode      string          `yaml:"mode"`
	Cases     int             `yaml:"cases"`
	Bytes     int64           `yaml:"bytes"`
	Empty     int             `yaml:"empty"`
	Min       int             `yaml:"min"`
	Max       int             `yaml:"max"`
	Mean      float64         `yaml:"mean"`
	Quantiles map[int]float64 `yaml:"quantiles"`
	Rate      float64         `yaml:"rate"` // cases per second
	Elapsed   string          `yaml:"elapsed"`
}

// Summary computes the derived values.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Mode:      s.Mode.String(),
		Cases:     s.Cases,
		Bytes:     s.Bytes,
		Empty:     s.Empty,
		Min:       s.Min,
		Max:       s.Max,
		Quantiles: make(map[int]float64, len(quantiles)),
		Elapsed:   s.Elapsed.String(),
	}
	if s.Cases > 0 {
		sum.Mean = float64(s.Bytes) / float64(s.Cases)
		for _, q := range quantiles {
			sum.Quantiles[int(q*100)] = s.est.Query(q)
		}
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		sum.Rate = float64(s.Cases) / secs
	}
	return sum
}

// YAML renders the summary as YAML.
func (s *Stats) YAML() ([]byte, error) {
	return yaml.Marshal(s.Summary())
}

// WriteTable renders the summary as a two column table.
func (s *Stats) WriteTable(w io.Writer) error {
	sum := s.Summary()

	tab := tabular.New()
	tab.Col("Result", "Result", 10)
	tab.Col("Statistics", "Statistics", 40)
	out := tab.Parse("*")

	var lengths string
	for _, q := range quantiles {
		lengths += fmt.Sprintf("p%d: %.0f ", int(q*100), sum.Quantiles[int(q*100)])
	}

	rows := [][2]any{
		{"Mode:", sum.Mode},
		{"Cases:", sum.Cases},
		{"Bytes:", sum.Bytes},
		{"Empty:", sum.Empty},
		{"Length:", fmt.Sprintf("min %d max %d mean %.1f", sum.Min, sum.Max, sum.Mean)},
		{"Quantile:", lengths},
		{"Rate:", fmt.Sprintf("%.1f cases/s", sum.Rate)},
		{"RunTime:", sum.Elapsed},
	}

	if _, err := fmt.Fprintln(w, out.Header); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, out.SubHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, out.Format, r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}
