package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/keypoint-match/internal/matching"
)

func TestDistanceBins(t *testing.T) {
	res := &matching.Result{
		Indices1:  []int{0, 1, 2, 3, 4},
		Indices2:  []int{0, 0, 0, 0, 0},
		Distances: []int{0, 3, 4, 15, 16},
	}
	// 4 bins over [0,15]: width 4, overflow lands in the last bin.
	got := DistanceBins(res, 15, 4)
	want := []int{2, 1, 0, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestDistanceHistogram(t *testing.T) {
	res := &matching.Result{
		Indices1:  []int{0, 1, 2},
		Indices2:  []int{2, 1, 0},
		Distances: []int{10, 40, 41},
	}
	path := filepath.Join(t.TempDir(), "distances.png")
	if err := DistanceHistogram(res, 256, path); err != nil {
		t.Fatalf("DistanceHistogram failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("histogram not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("histogram file is empty")
	}
}

func TestDistanceHistogram_Empty(t *testing.T) {
	res := &matching.Result{}
	err := DistanceHistogram(res, 256, filepath.Join(t.TempDir(), "h.png"))
	if !errors.Is(err, ErrNoMatches) {
		t.Errorf("got %v, want ErrNoMatches", err)
	}
}

func TestDistanceBins_NonPositiveBins(t *testing.T) {
	res := &matching.Result{Indices1: []int{0}, Indices2: []int{0}, Distances: []int{7}}
	for _, bins := range []int{0, -3} {
		if got := DistanceBins(res, 256, bins); got != nil {
			t.Errorf("bins=%d: got %v, want nil", bins, got)
		}
	}
}
