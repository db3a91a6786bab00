package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/keypoint-match/internal/brief"
	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/pyramid"
)

// ErrInvalidConfig reports a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default values for the descriptor and pattern settings.
const (
	DefaultPatternBits = 256
	DefaultPatchSize   = 9
	DefaultPatternSeed = 1
)

// Config holds every tunable of the pipeline. The zero value is not
// usable; start from DefaultConfig or LoadConfig.
type Config struct {
	// Scale space.
	Sigma0 float64 `json:"sigma0"`
	K      float64 `json:"k"`
	Levels []int   `json:"levels"`

	// Extremum filtering.
	ContrastThreshold float64 `json:"contrast_threshold"`
	EdgeThreshold     float64 `json:"edge_threshold"`

	// PatternPath names a test-pattern file. When empty a pattern is
	// generated from PatternBits, PatchSize and PatternSeed.
	PatternPath string `json:"pattern_path,omitempty"`
	PatternBits int    `json:"pattern_bits"`
	PatchSize   int    `json:"patch_size"`
	PatternSeed int64  `json:"pattern_seed"`

	// MaxDistance, when set, drops matches farther than this many bits.
	MaxDistance *int `json:"max_distance,omitempty"`

	// CrossCheck keeps only mutual nearest-neighbour matches.
	CrossCheck bool `json:"cross_check"`

	// StretchContrast min-max normalizes each input image before pyramid
	// construction.
	StretchContrast bool `json:"stretch_contrast"`

	// Workers bounds per-image parallelism in detection and matching, and
	// the number of images processed at once. Zero means GOMAXPROCS.
	Workers int `json:"workers"`
}

// DefaultConfig returns the defaults: sigma0 1, k √2, exponents -1..5,
// contrast 0.03, edge ratio 12 and a generated 256-pair pattern over a 9×9
// patch.
func DefaultConfig() *Config {
	pp := pyramid.DefaultParams()
	dp := detection.DefaultParams()
	return &Config{
		Sigma0:            pp.Sigma0,
		K:                 pp.K,
		Levels:            pp.Levels,
		ContrastThreshold: dp.ContrastThreshold,
		EdgeThreshold:     dp.EdgeThreshold,
		PatternBits:       DefaultPatternBits,
		PatchSize:         DefaultPatchSize,
		PatternSeed:       DefaultPatternSeed,
	}
}

// LoadConfig reads a JSON config file and overlays it on DefaultConfig.
// Fields omitted from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PyramidParams returns the scale-space part of the config.
func (c *Config) PyramidParams() pyramid.Params {
	return pyramid.Params{Sigma0: c.Sigma0, K: c.K, Levels: c.Levels}
}

// DetectionParams returns the extremum-filter part of the config.
func (c *Config) DetectionParams() detection.Params {
	return detection.Params{
		ContrastThreshold: c.ContrastThreshold,
		EdgeThreshold:     c.EdgeThreshold,
		Workers:           c.Workers,
	}
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.PyramidParams().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(c.Levels) < 4 {
		return fmt.Errorf("%w: need at least 4 levels for one interior DoG level, got %d",
			ErrInvalidConfig, len(c.Levels))
	}
	if err := c.DetectionParams().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.PatternPath == "" {
		if c.PatternBits <= 0 {
			return fmt.Errorf("%w: pattern_bits must be positive, got %d", ErrInvalidConfig, c.PatternBits)
		}
		if c.PatchSize < 2 {
			return fmt.Errorf("%w: patch_size must be at least 2, got %d", ErrInvalidConfig, c.PatchSize)
		}
	}
	if c.MaxDistance != nil && *c.MaxDistance < 0 {
		return fmt.Errorf("%w: max_distance must be non-negative, got %d", ErrInvalidConfig, *c.MaxDistance)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// LoadPattern returns the test pattern described by the config: the file at
// PatternPath if set, otherwise a generated pattern.
func (c *Config) LoadPattern() (*brief.Pattern, error) {
	if c.PatternPath != "" {
		return brief.LoadPattern(c.PatternPath)
	}
	return brief.GeneratePattern(c.PatternBits, c.PatchSize, c.PatternSeed)
}
