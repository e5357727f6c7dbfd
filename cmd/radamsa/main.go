// Command radamsa generates fuzz cases from a sample input.
//
//	radamsa --wasm radamsa.wasm -n 100 -o out/case-%04d.bin sample.txt
//	echo 'hello world' | radamsa --wasm radamsa.wasm -s 42
//	radamsa --wasm radamsa.wasm -i sample.txt
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"
	"github.com/tetratelabs/wazero"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/wippyai/radamsa-go"
	"github.com/wippyai/radamsa-go/engine"
	"github.com/wippyai/radamsa-go/errors"
	"github.com/wippyai/radamsa-go/internal/config"
	"github.com/wippyai/radamsa-go/internal/corpus"
)

// nativeEngine is set in binaries built with -tags radamsa_native.
var nativeEngine func() radamsa.Engine

type options struct {
	cfg         config.Config
	input       string
	interactive bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], ".")
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs resolves the configuration with this precedence (highest wins):
// defaults, FileName in workDir, --config file, flags.
func parseArgs(args []string, workDir string) (options, error) {
	fs := flag.NewFlagSet("radamsa", flag.ContinueOnError)
	fs.SortFlags = false

	var (
		configPath  = fs.StringP("config", "c", "", "JSONC config file")
		engineName  = fs.String("engine", "", "engine: wasm or native")
		wasmPath    = fs.String("wasm", "", "path to radamsa.wasm")
		cacheDir    = fs.String("cache-dir", "", "directory for the wazero compilation cache")
		memPages    = fs.Uint32("memory-limit-pages", 0, "wasm memory limit per instance, in 64KB pages")
		mode        = fs.StringP("mode", "m", "", "generate or mutate")
		count       = fs.IntP("count", "n", 0, "number of cases")
		seed        = fs.Uint32P("seed", "s", 0, "base seed; case i uses seed+i (default: implicit)")
		maxSize     = fs.Int("max-size", 0, "generate output capacity in bytes")
		headroom    = fs.Int("headroom", 0, "zero bytes appended to the input in mutate mode")
		jobs        = fs.IntP("jobs", "j", 0, "worker goroutines")
		rateLimit   = fs.Float64("rate", 0, "cases per second (0 is unlimited)")
		output      = fs.StringP("output", "o", "", "output file pattern, e.g. out/case-%04d.bin (default: stdout)")
		stats       = fs.String("stats", "", "print run statistics to stderr: table or yaml")
		logLevel    = fs.String("log-level", "", "debug, info, warn or error")
		interactive = fs.BoolP("interactive", "i", false, "step through cases in a terminal UI")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: radamsa [flags] [input-file]")
		fmt.Fprintln(fs.Output(), "Reads the sample from stdin when no file is given.")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 1 {
		return options{}, errors.InvalidInput(errors.PhaseConfig, "at most one input file")
	}
	if *interactive && (fs.Arg(0) == "" || fs.Arg(0) == "-") {
		return options{}, errors.InvalidInput(errors.PhaseConfig, "interactive mode reads the terminal and needs an input file")
	}

	cfg, _, err := config.LoadDir(config.Default(), workDir)
	if err != nil {
		return options{}, err
	}
	if *configPath != "" {
		if cfg, err = config.Load(cfg, *configPath); err != nil {
			return options{}, err
		}
	}

	// Apply CLI overrides. Only flags given on the command line count, so an
	// explicit zero wins over the files.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Engine = *engineName
		case "wasm":
			cfg.Wasm = *wasmPath
		case "cache-dir":
			cfg.CacheDir = *cacheDir
		case "memory-limit-pages":
			cfg.MemoryLimitPages = *memPages
		case "mode":
			cfg.Mode = *mode
		case "count":
			cfg.Count = *count
		case "seed":
			cfg.Seed = seed
		case "max-size":
			cfg.MaxSize = *maxSize
		case "headroom":
			cfg.Headroom = *headroom
		case "jobs":
			cfg.Jobs = *jobs
		case "rate":
			cfg.Rate = *rateLimit
		case "output":
			cfg.Output = *output
		case "stats":
			cfg.Stats = *stats
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	return options{cfg: cfg, input: fs.Arg(0), interactive: *interactive}, nil
}

func run(opts options) error {
	cfg := opts.cfg

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	undo, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf))
	defer undo()
	if err != nil {
		log.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	radamsa.SetLogger(log)
	engine.SetLogger(log)

	input, err := readInput(opts.input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, closeEngine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	// Fail with a readable error instead of the Mutator's fatal path.
	if err := eng.Init(); err != nil {
		return err
	}

	m := radamsa.New(eng, radamsa.WithLogger(log), radamsa.WithDefaultMaxSize(cfg.MaxSize))

	if opts.interactive {
		return runInteractive(m, input, cfg)
	}

	var sink corpus.Sink
	if cfg.Output == "" {
		sink = corpus.NewWriterSink(os.Stdout)
	} else {
		fileSink, err := corpus.NewFileSink(cfg.Output)
		if err != nil {
			return err
		}
		sink = fileSink
	}

	runOpts := corpus.Options{
		Seed:     cfg.Seed,
		Logger:   log,
		Mode:     corpusMode(cfg.Mode),
		Count:    cfg.Count,
		MaxSize:  cfg.MaxSize,
		Headroom: cfg.Headroom,
		Jobs:     cfg.Jobs,
	}
	if cfg.Rate > 0 {
		runOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	stats, runErr := corpus.Run(ctx, m, input, runOpts, sink)
	if err := printStats(os.Stderr, stats, cfg.Stats); err != nil {
		return err
	}
	return runErr
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.DisableStacktrace = lvl > zapcore.DebugLevel
	return zcfg.Build()
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// newEngine builds the configured engine and a function releasing it.
func newEngine(ctx context.Context, cfg config.Config) (radamsa.Engine, func(), error) {
	switch cfg.Engine {
	case config.EngineNative:
		if nativeEngine == nil {
			return nil, nil, errors.Unsupported(errors.PhaseConfig,
				"native engine not compiled in; rebuild with -tags radamsa_native")
		}
		return nativeEngine(), func() {}, nil

	default:
		data, err := os.ReadFile(cfg.Wasm)
		if err != nil {
			return nil, nil, errors.Load("read "+cfg.Wasm, err)
		}

		ecfg := &engine.Config{
			Module:           cfg.Wasm,
			MemoryLimitPages: cfg.MemoryLimitPages,
			MaxIdleInstances: cfg.Jobs,
		}
		var cache wazero.CompilationCache
		if cfg.CacheDir != "" {
			cache, err = wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache")
			}
			ecfg.CompilationCache = cache
		}

		eng, err := engine.NewWazeroEngine(ctx, data, ecfg)
		if err != nil {
			if cache != nil {
				_ = cache.Close(ctx)
			}
			return nil, nil, err
		}
		closer := func() {
			_ = eng.Close(ctx)
			if cache != nil {
				_ = cache.Close(ctx)
			}
		}
		return eng, closer, nil
	}
}

func corpusMode(mode string) corpus.Mode {
	if mode == config.ModeMutate {
		return corpus.Mutate
	}
	return corpus.Generate
}

func printStats(w io.Writer, stats *corpus.Stats, format string) error {
	if stats == nil {
		return nil
	}
	switch format {
	case config.StatsTable:
		return stats.WriteTable(w)
	case config.StatsYAML:
		data, err := stats.YAML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return nil
}
