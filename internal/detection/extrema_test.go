package detection

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/pyramid"
)

// createFlatDoG returns n zero-filled DoG levels of size w×h.
func createFlatDoG(t *testing.T, n, w, h int) *pyramid.Pyramid {
	t.Helper()
	bufs := make([]*imaging.Buffer, n)
	for i := range bufs {
		b, err := imaging.NewBuffer(w, h)
		if err != nil {
			t.Fatalf("NewBuffer failed: %v", err)
		}
		bufs[i] = b
	}
	p, err := pyramid.FromBuffers(bufs...)
	if err != nil {
		t.Fatalf("FromBuffers failed: %v", err)
	}
	return p
}

// createNoiseDoG returns n levels of seeded uniform noise in [-1, 1).
func createNoiseDoG(t *testing.T, n, w, h int, seed int64) *pyramid.Pyramid {
	t.Helper()
	p := createFlatDoG(t, n, w, h)
	rng := rand.New(rand.NewSource(seed))
	for i := range p.Levels {
		for j := range p.At(i).Pix {
			p.At(i).Pix[j] = rng.Float64()*2 - 1
		}
	}
	return p
}

func TestDetect_IsolatedMaximum(t *testing.T) {
	dog := createFlatDoG(t, 3, 9, 9)
	dog.At(1).Set(4, 4, 10)

	got, err := Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := []Keypoint{{X: 4, Y: 4, Level: 1, Response: 10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keypoints mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_IsolatedMinimum(t *testing.T) {
	dog := createFlatDoG(t, 3, 9, 9)
	dog.At(1).Set(2, 6, -10)

	got, err := Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := []Keypoint{{X: 2, Y: 6, Level: 1, Response: -10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keypoints mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_TieDisqualifies(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *pyramid.Pyramid)
	}{
		{"spatial plateau", func(p *pyramid.Pyramid) {
			p.At(1).Set(4, 4, 10)
			p.At(1).Set(5, 4, 10)
		}},
		{"equal value on level above", func(p *pyramid.Pyramid) {
			p.At(1).Set(4, 4, 10)
			p.At(2).Set(3, 3, 10)
		}},
		{"equal value on level below", func(p *pyramid.Pyramid) {
			p.At(1).Set(4, 4, 10)
			p.At(0).Set(4, 4, 10)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dog := createFlatDoG(t, 3, 9, 9)
			tt.setup(dog)
			got, err := Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no keypoints, got %v", got)
			}
		})
	}
}

func TestDetect_ContrastFilter(t *testing.T) {
	dog := createFlatDoG(t, 3, 9, 9)
	dog.At(1).Set(4, 4, 0.02)

	got, err := Detect(dog, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("low-contrast peak should be rejected, got %v", got)
	}

	dog.At(1).Set(4, 4, 0.03)
	got, _ = Detect(dog, DefaultParams())
	if len(got) != 1 {
		t.Errorf("peak at exactly the threshold should be kept, got %v", got)
	}
}

func TestDetect_EdgeFilter(t *testing.T) {
	// A ridge along x: Dxx = -1, Dyy = -20, curvature ratio 441/20 ≈ 22.
	dog := createFlatDoG(t, 3, 9, 9)
	dog.At(1).Set(4, 4, 10)
	dog.At(1).Set(3, 4, 9.5)
	dog.At(1).Set(5, 4, 9.5)

	got, err := Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("edge-like peak should be rejected with r=12, got %v", got)
	}

	got, _ = Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 100})
	if len(got) != 1 || got[0].X != 4 || got[0].Y != 4 {
		t.Errorf("edge-like peak should survive with r=100, got %v", got)
	}
}

func TestDetect_SaddleRejected(t *testing.T) {
	// Strict maximum whose mixed derivative dominates: Det < 0.
	dog := createFlatDoG(t, 3, 9, 9)
	d := dog.At(1)
	d.Set(4, 4, 10)
	d.Set(3, 4, 9)
	d.Set(5, 4, 9)
	d.Set(4, 3, 9)
	d.Set(4, 5, 9)
	d.Set(3, 3, 9.9)
	d.Set(5, 5, 9.9)

	got, err := Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("saddle should be rejected, got %v", got)
	}

	// Filling the other diagonal cancels Dxy and leaves a round blob.
	d.Set(5, 3, 9.9)
	d.Set(3, 5, 9.9)
	got, _ = Detect(dog, Params{ContrastThreshold: 1, EdgeThreshold: 12})
	if len(got) != 1 {
		t.Errorf("round peak should be kept, got %v", got)
	}
}

func TestDetect_NeverBorderOrOuterLevel(t *testing.T) {
	dog := createNoiseDoG(t, 6, 40, 30, 1)

	got, err := Detect(dog, Params{ContrastThreshold: 0, EdgeThreshold: 1000})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("noise pyramid should produce some extrema")
	}
	for _, kp := range got {
		if kp.X <= 0 || kp.X >= 39 || kp.Y <= 0 || kp.Y >= 29 {
			t.Errorf("keypoint on border: %+v", kp)
		}
		if kp.Level <= 0 || kp.Level >= 5 {
			t.Errorf("keypoint on outer DoG level: %+v", kp)
		}
	}
}

func TestDetect_ScanOrder(t *testing.T) {
	dog := createNoiseDoG(t, 5, 32, 32, 7)
	got, err := Detect(dog, Params{ContrastThreshold: 0, EdgeThreshold: 1000, Workers: 8})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for i := 1; i < len(got); i++ {
		a, b := got[i-1], got[i]
		ordered := a.Level < b.Level ||
			(a.Level == b.Level && a.Y < b.Y) ||
			(a.Level == b.Level && a.Y == b.Y && a.X < b.X)
		if !ordered {
			t.Fatalf("keypoints %d and %d out of scan order: %+v, %+v", i-1, i, a, b)
		}
	}
}

func TestDetect_DeterministicAcrossWorkerCounts(t *testing.T) {
	dog := createNoiseDoG(t, 5, 48, 36, 42)

	serial, err := Detect(dog, Params{ContrastThreshold: 0.1, EdgeThreshold: 12, Workers: 1})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, workers := range []int{2, 7, 0} {
		parallel, err := Detect(dog, Params{ContrastThreshold: 0.1, EdgeThreshold: 12, Workers: workers})
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if diff := cmp.Diff(serial, parallel); diff != "" {
			t.Errorf("workers=%d differs from serial scan (-serial +parallel):\n%s", workers, diff)
		}
	}
}

func TestDetect_TooFewLevels(t *testing.T) {
	dog := createFlatDoG(t, 2, 9, 9)
	dog.At(1).Set(4, 4, 10)

	got, err := Detect(dog, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("two DoG levels have no interior level, got %v", got)
	}
}

func TestDetect_InvalidParams(t *testing.T) {
	dog := createFlatDoG(t, 3, 9, 9)

	tests := []struct {
		name   string
		params Params
	}{
		{"negative contrast", Params{ContrastThreshold: -0.1, EdgeThreshold: 12}},
		{"zero edge ratio", Params{ContrastThreshold: 0.03, EdgeThreshold: 0}},
		{"negative edge ratio", Params{ContrastThreshold: 0.03, EdgeThreshold: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Detect(dog, tt.params); !errors.Is(err, ErrInvalidThreshold) {
				t.Errorf("got %v, want ErrInvalidThreshold", err)
			}
		})
	}
}

func TestDetect_BlobInRealPyramid(t *testing.T) {
	const size, cx, cy = 40, 20, 20
	img, _ := imaging.NewBuffer(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= 9 {
				img.Set(x, y, 1)
			}
		}
	}

	g, err := pyramid.BuildGaussian(img, pyramid.DefaultParams())
	if err != nil {
		t.Fatalf("BuildGaussian failed: %v", err)
	}
	dog, err := pyramid.BuildDoG(g)
	if err != nil {
		t.Fatalf("BuildDoG failed: %v", err)
	}
	got, err := Detect(dog, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	found := false
	for _, kp := range got {
		if abs(kp.X-cx) <= 2 && abs(kp.Y-cy) <= 2 {
			found = true
			if kp.Response >= 0 {
				t.Errorf("bright blob should be a DoG minimum, got response %g", kp.Response)
			}
		}
	}
	if !found {
		t.Errorf("no keypoint near blob center, got %v", got)
	}
}

func TestEdgeLimit(t *testing.T) {
	p := Params{EdgeThreshold: 12}
	if got, want := p.EdgeLimit(), 169.0/12.0; got != want {
		t.Errorf("EdgeLimit: got %g, want %g", got, want)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestDetect_NonFiniteRejected(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		dog := createFlatDoG(t, 3, 9, 9)
		dog.At(1).Set(4, 4, v)

		got, err := Detect(dog, DefaultParams())
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("sample %v should not be a keypoint, got %v", v, got)
		}
	}
}
