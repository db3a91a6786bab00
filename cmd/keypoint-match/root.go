package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/keypoint-match/internal/pipeline"
)

// logLevelEnv names the environment variable read when --log-level is not
// given.
const logLevelEnv = "KEYPOINT_MATCH_LOG_LEVEL"

// rootOptions are the flags shared by every subcommand. Pipeline flags
// override the config file only when given explicitly.
type rootOptions struct {
	configPath  string
	logLevel    string
	patternPath string
	contrast    float64
	edge        float64
	maxDistance int
	crossCheck  bool
	stretch     bool
	workers     int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "keypoint-match",
		Short:        "Detect, describe and match image keypoints",
		SilenceUsage: true,
	}

	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newDetectCmd(opts),
		newMatchCmd(opts),
		newPatternCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) addFlags(f *pflag.FlagSet) {
	f.StringVar(&o.configPath, "config", "", "JSON config file overlaid on the defaults")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error (default $"+logLevelEnv+" or info)")
	f.StringVar(&o.patternPath, "pattern", "", "test-pattern file; generated from the config when empty")
	f.Float64Var(&o.contrast, "contrast", 0, "minimum absolute DoG response")
	f.Float64Var(&o.edge, "edge-ratio", 0, "principal curvature ratio limit")
	f.IntVar(&o.maxDistance, "max-distance", -1, "drop matches farther than this many bits (-1 keeps all)")
	f.BoolVar(&o.crossCheck, "cross-check", false, "keep only mutual nearest matches")
	f.BoolVar(&o.stretch, "stretch", false, "min-max normalize each image before detection")
	f.IntVar(&o.workers, "workers", 0, "parallelism bound, 0 uses GOMAXPROCS")
}

// parseLevel maps a level name to a slog level. An empty name means info.
func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// newLogger returns a text logger writing to w. Stdout is left free for
// command output and the MCP protocol.
func (o *rootOptions) newLogger(w io.Writer) (*slog.Logger, error) {
	name := o.logLevel
	if name == "" {
		name = os.Getenv(logLevelEnv)
	}
	level, err := parseLevel(name)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// config loads the config file, if any, and applies explicitly set flags.
func (o *rootOptions) config(cmd *cobra.Command) (*pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(o.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("pattern") {
		cfg.PatternPath = o.patternPath
	}
	if flags.Changed("contrast") {
		cfg.ContrastThreshold = o.contrast
	}
	if flags.Changed("edge-ratio") {
		cfg.EdgeThreshold = o.edge
	}
	if flags.Changed("max-distance") {
		if o.maxDistance < 0 {
			cfg.MaxDistance = nil
		} else {
			d := o.maxDistance
			cfg.MaxDistance = &d
		}
	}
	if flags.Changed("cross-check") {
		cfg.CrossCheck = o.crossCheck
	}
	if flags.Changed("stretch") {
		cfg.StretchContrast = o.stretch
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the logger and the pipeline every processing command needs.
func (o *rootOptions) setup(cmd *cobra.Command) (*pipeline.Pipeline, *slog.Logger, error) {
	logger, err := o.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	pattern, err := cfg.LoadPattern()
	if err != nil {
		return nil, nil, err
	}
	pipe, err := pipeline.New(cfg, pattern, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("pipeline ready",
		"levels", cfg.Levels,
		"pairs", pattern.Len(),
		"contrast", cfg.ContrastThreshold,
		"edge_ratio", cfg.EdgeThreshold)
	return pipe, logger, nil
}
