// Package config loads radamsa command line configuration from JSONC files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/errors"
)

// FileName is the config file picked up from the working directory.
const FileName = ".radamsa.json"

// Engines and modes accepted in Config.
const (
	EngineWasm   = "wasm"
	EngineNative = "native"

	ModeGenerate = "generate"
	ModeMutate   = "mutate"

	StatsNone  = ""
	StatsTable = "table"
	StatsYAML  = "yaml"
)

// Config holds all configuration options.
type Config struct {
	Engine   string `json:"engine,omitempty"`
	Wasm     string `json:"wasm,omitempty"`
	CacheDir string `json:"cache_dir,omitempty"`

	// MemoryLimitPages caps each wasm instance, in 64KB pages.
	MemoryLimitPages uint32 `json:"memory_limit_pages,omitempty"`

	Mode     string  `json:"mode,omitempty"`
	Count    int     `json:"count,omitempty"`
	Seed     *uint32 `json:"seed,omitempty"` // nil means implicit seeds
	MaxSize  int     `json:"max_size,omitempty"`
	Headroom int     `json:"headroom,omitempty"` // zero padding after the input in mutate mode
	Jobs     int     `json:"jobs,omitempty"`
	Rate     float64 `json:"rate,omitempty"` // cases per second, 0 is unlimited

	Output   string `json:"output,omitempty"` // printf pattern, empty is stdout
	Stats    string `json:"stats,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	// Source is the file the config was read from, if any.
	Source string `json:"-"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Engine:   EngineWasm,
		Mode:     ModeGenerate,
		Count:    1,
		MaxSize:  radamsa.DefaultMaxSize,
		Headroom: 1000,
		Jobs:     1,
		LogLevel: "warn",
	}
}

// Load reads a JSONC config file over base. Every key present in the file
// replaces the base value, zeros included. The file must exist.
func Load(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.NotFound(errors.PhaseConfig, "config file", path)
		}
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}

	cfg, err := Parse(base, data)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, path)
	}
	cfg.Source = path
	return cfg, nil
}

// LoadDir reads FileName from dir over base if it exists. ok is false, and
// base is returned unchanged, when there is no such file.
func LoadDir(base Config, dir string) (cfg Config, ok bool, err error) {
	path := filepath.Join(dir, FileName)
	if _, statErr := os.Stat(path); statErr != nil {
		return base, false, nil
	}
	cfg, err = Load(base, path)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// Parse decodes JSONC over base. Keys absent from data keep their base
// values. Unknown fields are rejected so typos surface.
func Parse(base Config, data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := base
	if base.Seed != nil {
		// The decoder writes through existing pointers.
		seed := *base.Seed
		cfg.Seed = &seed
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineWasm:
		if c.Wasm == "" {
			return invalid("engine %q needs a wasm module path", c.Engine)
		}
	case EngineNative:
	default:
		return invalid("unknown engine %q", c.Engine)
	}

	switch c.Mode {
	case ModeGenerate, ModeMutate:
	default:
		return invalid("unknown mode %q", c.Mode)
	}

	switch c.Stats {
	case StatsNone, StatsTable, StatsYAML:
	default:
		return invalid("unknown stats format %q", c.Stats)
	}

	if c.Count < 0 {
		return invalid("count must not be negative, got %d", c.Count)
	}
	if c.MaxSize < 0 {
		return invalid("max_size must not be negative, got %d", c.MaxSize)
	}
	if c.Headroom < 0 {
		return invalid("headroom must not be negative, got %d", c.Headroom)
	}
	if c.Jobs < 1 {
		return invalid("jobs must be at least 1, got %d", c.Jobs)
	}
	if c.Rate < 0 {
		return invalid("rate must not be negative, got %g", c.Rate)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf(format, args...))
}
