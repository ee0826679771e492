package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	mmdrender "github.com/alnah/go-mmdrender"
	"github.com/alnah/go-mmdrender/internal/assets"
	"github.com/alnah/go-mmdrender/internal/config"
	"github.com/alnah/go-mmdrender/internal/fileutil"
	"github.com/alnah/go-mmdrender/internal/hints"
	"github.com/alnah/go-mmdrender/internal/logging"
	"github.com/alnah/go-mmdrender/internal/markdown"
	"github.com/alnah/go-mmdrender/internal/metrics"
	"github.com/alnah/go-mmdrender/internal/server"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage              = errors.New("invalid usage")
	ErrReadInput          = errors.New("failed to read input")
	ErrWriteOutput        = errors.New("failed to write output")
	ErrInvalidBatch       = errors.New("invalid batch input")
	ErrInvalidTimeout     = errors.New("invalid timeout")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// cliLogLevel is the default level outside server mode, so a one-shot run
// prints nothing but warnings.
const cliLogLevel = "warn"

// runMain dispatches subcommands and returns the process exit code.
func runMain(args []string, env *Environment) int {
	if len(args) > 1 {
		switch args[1] {
		case "version":
			fmt.Fprintf(env.Stdout, "mmdrender %s (mermaid %s)\n", Version, assets.MermaidVersion)
			return ExitSuccess
		case "doctor":
			return runDoctorCmd(args[2:], env)
		case "help":
			runHelp(args[2:], env)
			return ExitSuccess
		}
	}

	flags, positional, err := parseFlags(args[1:])
	if errors.Is(err, flag.ErrHelp) {
		printUsage(env.Stdout)
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		printUsage(env.Stderr)
		return ExitUsage
	}
	if len(positional) > 0 {
		fmt.Fprintf(env.Stderr, "error: unexpected argument %q (use -i for input files)\n", positional[0])
		return ExitUsage
	}
	if flags.version {
		fmt.Fprintf(env.Stdout, "mmdrender %s (mermaid %s)\n", Version, assets.MermaidVersion)
		return ExitSuccess
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if cfg, err := run(ctx, flags, env); err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, flags, cfg))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// run loads configuration and starts the selected mode. The resolved
// configuration is returned with any error so hints can refer to it; it is
// nil when loading failed.
func run(ctx context.Context, flags *cliFlags, env *Environment) (*config.Config, error) {
	if err := validateFlags(flags); err != nil {
		return nil, err
	}

	config.WarnUnknownEnvVars(env.Stderr)
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	if flags.printConfig {
		out, err := cfg.YAML()
		if err != nil {
			return cfg, err
		}
		_, err = env.Stdout.Write(out)
		return cfg, err
	}

	log, err := env.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", config.ErrInvalidValue, err)
	}
	defer func() { _ = log.Sync() }()

	if flags.server.enabled {
		return cfg, runServer(ctx, cfg, log, env)
	}
	return cfg, runOnce(ctx, flags, cfg, log, env)
}

// validateFlags rejects flag combinations that have no meaning.
func validateFlags(flags *cliFlags) error {
	if flags.io.workers < 0 || flags.io.workers > config.MaxWorkers {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidWorkerCount, flags.io.workers, config.MaxWorkers)
	}
	if flags.io.batch && flags.io.markdown {
		return fmt.Errorf("%w: --batch and --markdown are mutually exclusive", ErrUsage)
	}
	if flags.server.enabled && flags.renderer.remote != "" {
		return fmt.Errorf("%w: --server cannot be combined with --remote", ErrUsage)
	}
	return nil
}

// loadConfig applies defaults < config file < environment < flags.
// The file comes from --config, else MMDRENDER_CONFIG.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	name := configName(flags)

	cfg := config.DefaultConfig()
	if !flags.server.enabled {
		cfg.Logging.Level = cliLogLevel
	}
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := mergeFlags(flags, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configName returns --config, else MMDRENDER_CONFIG.
func configName(flags *cliFlags) string {
	if flags.common.config != "" {
		return flags.common.config
	}
	return os.Getenv(config.EnvConfigPath)
}

// mergeFlags copies explicitly set flags into cfg (CLI wins).
func mergeFlags(flags *cliFlags, cfg *config.Config) error {
	set := flags.changed

	if set["host"] {
		cfg.Server.Host = flags.server.host
	}
	if set["port"] {
		cfg.Server.Port = flags.server.port
	}
	if set["workers"] {
		cfg.Render.Workers = flags.io.workers
	}
	if set["timeout"] {
		d, err := time.ParseDuration(flags.renderer.timeout)
		if err != nil {
			return fmt.Errorf("%w: %q (use e.g. 30s, 2m)", ErrInvalidTimeout, flags.renderer.timeout)
		}
		if d <= 0 {
			return fmt.Errorf("%w: must be positive, got %s", ErrInvalidTimeout, flags.renderer.timeout)
		}
		cfg.Render.Timeout = d
	}
	if set["asset-path"] {
		cfg.Assets.BasePath = flags.renderer.assetPath
	}
	if set["offline"] {
		cfg.Assets.Offline = flags.renderer.offline
	}
	if flags.common.verbose {
		cfg.Logging.Level = "debug"
	}
	if set["log-level"] {
		cfg.Logging.Level = flags.common.logLevel
	}
	return nil
}

// runServer serves HTTP until ctx is canceled.
func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger, env *Environment) error {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	engine, err := env.OpenLocal(cfg, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("closing renderer", zap.Error(err))
		}
	}()

	log.Info("starting server",
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()),
		zap.Duration("render_timeout", cfg.Render.Timeout))

	return server.New(engine, cfg, log, m).Run(ctx)
}

// runOnce renders the input once: a single diagram, a JSON batch, or every
// diagram of a Markdown document.
func runOnce(ctx context.Context, flags *cliFlags, cfg *config.Config, log *zap.Logger, env *Environment) error {
	input, err := readInput(flags.io.input, env.Stdin)
	if err != nil {
		return err
	}

	var texts []string
	switch {
	case flags.io.batch:
		if texts, err = decodeBatch(input); err != nil {
			return err
		}
	case flags.io.markdown:
		blocks, err := markdown.NewExtractor().Extract(ctx, input)
		if err != nil {
			return err
		}
		texts = make([]string, len(blocks))
		for i, b := range blocks {
			texts[i] = b.Text
		}
		log.Debug("extracted diagrams", zap.Int("count", len(texts)))
	}

	engine, err := openEngine(flags, cfg, log, env)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("closing renderer", zap.Error(err))
		}
	}()

	start := env.Now()
	var out []byte
	if flags.io.batch || flags.io.markdown {
		results := renderBatch(ctx, engine, texts, resolveWorkers(cfg.Render.Workers), log)
		if out, err = encodeBatch(results); err != nil {
			return err
		}
	} else {
		svg, err := engine.RenderSVG(ctx, string(input))
		if err != nil {
			// A diagram that does not render yields empty output, not a failure.
			log.Warn("diagram failed", zap.String("message", mmdrender.Message(err)), zap.Error(err))
		}
		out = []byte(svg)
	}
	log.Debug("done", zap.Duration("elapsed", env.Now().Sub(start)))

	if err := fileutil.WriteOutput(flags.io.output, out, env.Stdout); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	return ctx.Err()
}

// openEngine picks the remote client when --remote is set.
func openEngine(flags *cliFlags, cfg *config.Config, log *zap.Logger, env *Environment) (Engine, error) {
	if flags.renderer.remote != "" {
		log.Debug("using remote renderer", zap.String("url", flags.renderer.remote))
		return env.OpenRemote(flags.renderer.remote, cfg)
	}
	return env.OpenLocal(cfg, log, nil)
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("%w: stdin: %v", ErrReadInput, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	return data, nil
}

// hintFor returns an actionable hint for err, or "". cfg is the resolved
// configuration, nil when loading it failed.
func hintFor(err error, flags *cliFlags, cfg *config.Config) string {
	switch {
	case errors.Is(err, mmdrender.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, assets.ErrPayloadNotFound):
		return hints.ForPayloadNotFound(cfg != nil && cfg.Assets.Offline)
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(config.SearchPaths(configName(flags)))
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	case errors.Is(err, server.ErrListen):
		port := config.DefaultPort
		if cfg != nil {
			port = cfg.Server.Port
		}
		return hints.ForAddressInUse(port)
	case errors.Is(err, mmdrender.ErrTimeout):
		return hints.ForTimeout()
	}
	return ""
}
