package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/keypoint-match/internal/brief"
	"github.com/ironsheep/keypoint-match/internal/imaging"
)

// createBlobImage returns a w×h buffer of soft bright and dark discs on a
// mid-gray field, with a little seeded noise so descriptors differ.
func createBlobImage(t *testing.T, w, h int, seed int64) *imaging.Buffer {
	t.Helper()
	buf, err := imaging.NewBuffer(w, h)
	if err != nil {
		t.Fatalf("NewBuffer failed: %v", err)
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range buf.Pix {
		buf.Pix[i] = 0.5 + (rng.Float64()-0.5)*0.05
	}
	for n := 0; n < 12; n++ {
		cx, cy := 6+rng.Intn(w-12), 6+rng.Intn(h-12)
		r := 2 + rng.Intn(3)
		v := 1.0
		if n%2 == 1 {
			v = 0
		}
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
					buf.Set(x, y, v)
				}
			}
		}
	}
	return buf
}

func newTestPipeline(t *testing.T, cfg *Config) *Pipeline {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pattern, err := cfg.LoadPattern()
	if err != nil {
		t.Fatalf("LoadPattern failed: %v", err)
	}
	p, err := New(cfg, pattern, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func TestNew_Invalid(t *testing.T) {
	pattern, _ := brief.GeneratePattern(16, 5, 1)

	cfg := DefaultConfig()
	cfg.Sigma0 = 0
	if _, err := New(cfg, pattern, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("bad config: got %v, want ErrInvalidConfig", err)
	}
	if _, err := New(DefaultConfig(), nil, nil); !errors.Is(err, brief.ErrInvalidPattern) {
		t.Errorf("nil pattern: got %v, want ErrInvalidPattern", err)
	}
}

func TestExtract(t *testing.T) {
	p := newTestPipeline(t, nil)
	img := createBlobImage(t, 64, 48, 1)

	f, err := p.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if f.Width != 64 || f.Height != 48 {
		t.Errorf("dimensions: got %dx%d", f.Width, f.Height)
	}
	if f.Len() == 0 {
		t.Fatal("blob image should produce keypoints")
	}
	if len(f.Keypoints) != len(f.Descriptors) {
		t.Errorf("misaligned set: %d keypoints, %d descriptors", len(f.Keypoints), len(f.Descriptors))
	}
	for i, kp := range f.Keypoints {
		if kp.X <= 0 || kp.X >= 63 || kp.Y <= 0 || kp.Y >= 47 {
			t.Errorf("keypoint %d on border: %+v", i, kp)
		}
		if f.Descriptors[i].Len() != DefaultPatternBits {
			t.Errorf("descriptor %d: %d bits", i, f.Descriptors[i].Len())
		}
	}
	if f.Timings.Total() < 0 {
		t.Errorf("negative total time %v", f.Timings.Total())
	}
}

func TestExtract_InvalidImage(t *testing.T) {
	p := newTestPipeline(t, nil)
	if _, err := p.Extract(&imaging.Buffer{}); !errors.Is(err, imaging.ErrInvalidDimensions) {
		t.Errorf("got %v, want ErrInvalidDimensions", err)
	}
}

func TestMatch_SelfIsIdentity(t *testing.T) {
	p := newTestPipeline(t, nil)
	img := createBlobImage(t, 80, 60, 2)

	a, err := p.Extract(img)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := p.Extract(img.Clone())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	rep, err := p.Match(a, b)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if rep.Len() != a.Len() {
		t.Fatalf("Len: got %d, want %d", rep.Len(), a.Len())
	}
	for i := range rep.Indices1 {
		if rep.Distances[i] != 0 {
			t.Errorf("match %d: distance %d, want 0", i, rep.Distances[i])
		}
		j := rep.Indices2[i]
		if j == i {
			continue
		}
		// Only a duplicate descriptor at a lower index may win.
		if j > i || !a.Descriptors[i].Equal(b.Descriptors[j]) {
			t.Errorf("match %d: paired with %d", i, j)
		}
	}
}

func TestMatch_UsesConfiguredFilters(t *testing.T) {
	zero := 0
	cfg := DefaultConfig()
	cfg.MaxDistance = &zero
	p := newTestPipeline(t, cfg)

	a, _ := p.Extract(createBlobImage(t, 64, 64, 3))
	b, _ := p.Extract(createBlobImage(t, 64, 64, 4))

	rep, err := p.Match(a, b)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	for i, d := range rep.Distances {
		if d != 0 {
			t.Errorf("match %d at distance %d exceeds threshold 0", i, d)
		}
	}
}

func TestExtractAll_MatchesSequentialResults(t *testing.T) {
	p := newTestPipeline(t, nil)
	imgs := []*imaging.Buffer{
		createBlobImage(t, 40, 40, 5),
		createBlobImage(t, 50, 30, 6),
		createBlobImage(t, 36, 44, 7),
	}

	all, err := p.ExtractAll(context.Background(), imgs)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	for i, img := range imgs {
		one, _ := p.Extract(img)
		if diff := cmp.Diff(one.Keypoints, all[i].Keypoints); diff != "" {
			t.Errorf("image %d keypoints differ (-sequential +batch):\n%s", i, diff)
		}
		for j := range one.Descriptors {
			if !one.Descriptors[j].Equal(all[i].Descriptors[j]) {
				t.Errorf("image %d descriptor %d differs", i, j)
			}
		}
	}
}

func TestExtractAll_Error(t *testing.T) {
	p := newTestPipeline(t, nil)
	imgs := []*imaging.Buffer{createBlobImage(t, 20, 20, 1), {}}
	if _, err := p.ExtractAll(context.Background(), imgs); err == nil {
		t.Error("expected an error for an empty buffer")
	}
}

func writePNG(t *testing.T, dir, name string, buf *imaging.Buffer) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, buf.ToGray()); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestExtractFiles_SkipUnreadable(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, nil)
	paths := []string{
		writePNG(t, dir, "a.png", createBlobImage(t, 48, 48, 8)),
		filepath.Join(dir, "missing.png"),
		writePNG(t, dir, "c.png", createBlobImage(t, 48, 48, 9)),
	}

	features, err := p.ExtractFiles(context.Background(), imaging.NewImageCache(), paths, true)
	if err != nil {
		t.Fatalf("ExtractFiles failed: %v", err)
	}
	if features[0] == nil || features[1] != nil || features[2] == nil {
		t.Fatalf("unexpected nil pattern: %v", []bool{features[0] == nil, features[1] == nil, features[2] == nil})
	}

	reports, err := p.MatchSequence(features)
	if err != nil {
		t.Fatalf("MatchSequence failed: %v", err)
	}
	if len(reports) != 1 || reports[0].From != 0 || reports[0].To != 2 {
		t.Errorf("reports: got %+v, want a single 0→2 pair", reports)
	}
}

func TestExtractFiles_AbortOnUnreadable(t *testing.T) {
	p := newTestPipeline(t, nil)
	_, err := p.ExtractFiles(context.Background(), imaging.NewImageCache(),
		[]string{"/nonexistent/a.png"}, false)
	if !errors.Is(err, imaging.ErrLoad) {
		t.Errorf("got %v, want ErrLoad", err)
	}
}

func TestExtractFiles_ColorInput(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), uint8(y * 8), 128, 255})
		}
	}
	path := filepath.Join(dir, "color.png")
	f, _ := os.Create(path)
	png.Encode(f, img)
	f.Close()

	p := newTestPipeline(t, nil)
	features, err := p.ExtractFiles(context.Background(), imaging.NewImageCache(), []string{path}, false)
	if err != nil {
		t.Fatalf("ExtractFiles failed: %v", err)
	}
	if features[0].Width != 32 || features[0].Height != 32 {
		t.Errorf("dimensions: got %dx%d", features[0].Width, features[0].Height)
	}
}

func TestTimings(t *testing.T) {
	a := Timings{Gaussian: 1, DoG: 2, Detect: 3, Describe: 4}
	b := Timings{Gaussian: 10, DoG: 20, Detect: 30, Describe: 40}
	sum := a.Add(b)
	if sum.Total() != 110 {
		t.Errorf("Total: got %d, want 110", sum.Total())
	}
	if sum.Detect != 33 {
		t.Errorf("Detect: got %d, want 33", sum.Detect)
	}
}
