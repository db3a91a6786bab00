package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/keypoint-match/internal/brief"
	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/matching"
	"github.com/ironsheep/keypoint-match/internal/pyramid"
)

// Timings records how long each stage of one Extract call took.
type Timings struct {
	Gaussian time.Duration `json:"gaussian_ns"`
	DoG      time.Duration `json:"dog_ns"`
	Detect   time.Duration `json:"detect_ns"`
	Describe time.Duration `json:"describe_ns"`
}

// Total returns the sum of all stages.
func (t Timings) Total() time.Duration {
	return t.Gaussian + t.DoG + t.Detect + t.Describe
}

// Add returns the stage-wise sum of t and o.
func (t Timings) Add(o Timings) Timings {
	return Timings{
		Gaussian: t.Gaussian + o.Gaussian,
		DoG:      t.DoG + o.DoG,
		Detect:   t.Detect + o.Detect,
		Describe: t.Describe + o.Describe,
	}
}

// Features is the result of running the detection half of the pipeline on
// one image.
type Features struct {
	*brief.Set

	Width   int
	Height  int
	Timings Timings
}

// MatchReport is the result of matching two feature sets.
type MatchReport struct {
	*matching.Result

	Elapsed time.Duration
}

// Pipeline runs the keypoint stages with one configuration and one shared
// test pattern. It holds no per-image state and is safe for concurrent use.
type Pipeline struct {
	cfg     *Config
	pattern *brief.Pattern
	logger  *slog.Logger
}

// New validates cfg and returns a pipeline that describes keypoints with
// pattern. A nil logger discards all output.
func New(cfg *Config, pattern *brief.Pattern, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, pattern: pattern, logger: logger}, nil
}

// Config returns the pipeline configuration. Callers must not modify it.
func (p *Pipeline) Config() *Config {
	return p.cfg
}

// Pattern returns the shared test pattern.
func (p *Pipeline) Pattern() *brief.Pattern {
	return p.pattern
}

// Extract detects and describes the keypoints of img.
//
// Descriptors are sampled from the finest Gaussian level. The pyramids are
// released when Extract returns; only the keypoints and descriptors
// survive.
func (p *Pipeline) Extract(img *imaging.Buffer) (*Features, error) {
	var t Timings

	start := time.Now()
	gauss, err := pyramid.BuildGaussian(img, p.cfg.PyramidParams())
	if err != nil {
		return nil, fmt.Errorf("gaussian pyramid: %w", err)
	}
	t.Gaussian = time.Since(start)

	start = time.Now()
	dog, err := pyramid.BuildDoG(gauss)
	if err != nil {
		return nil, fmt.Errorf("DoG pyramid: %w", err)
	}
	t.DoG = time.Since(start)

	start = time.Now()
	keypoints, err := detection.Detect(dog, p.cfg.DetectionParams())
	if err != nil {
		return nil, fmt.Errorf("detect keypoints: %w", err)
	}
	t.Detect = time.Since(start)

	start = time.Now()
	set, err := brief.Compute(gauss.Finest(), keypoints, p.pattern)
	if err != nil {
		return nil, fmt.Errorf("compute descriptors: %w", err)
	}
	t.Describe = time.Since(start)

	p.logger.Debug("extracted features",
		"width", img.Width,
		"height", img.Height,
		"keypoints", len(keypoints),
		"elapsed", t.Total())

	return &Features{Set: set, Width: img.Width, Height: img.Height, Timings: t}, nil
}

// ExtractAll runs Extract on every image, several at a time, and returns
// the results in input order. The first failure cancels the remaining
// work.
func (p *Pipeline) ExtractAll(ctx context.Context, imgs []*imaging.Buffer) ([]*Features, error) {
	out := make([]*Features, len(imgs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.imageWorkers())
	for i, img := range imgs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := p.Extract(img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Match pairs the descriptors of a with those of b using the configured
// threshold and cross check.
func (p *Pipeline) Match(a, b *Features) (*MatchReport, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil features", brief.ErrPatternMismatch)
	}

	opts := []matching.Option{matching.WithWorkers(p.cfg.Workers)}
	if p.cfg.MaxDistance != nil {
		opts = append(opts, matching.WithMaxDistance(*p.cfg.MaxDistance))
	}
	if p.cfg.CrossCheck {
		opts = append(opts, matching.WithCrossCheck())
	}

	start := time.Now()
	res, err := matching.Match(a.Set, b.Set, opts...)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	p.logger.Debug("matched features",
		"query", a.Len(),
		"train", b.Len(),
		"matches", res.Len(),
		"elapsed", elapsed)

	return &MatchReport{Result: res, Elapsed: elapsed}, nil
}

func (p *Pipeline) imageWorkers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
