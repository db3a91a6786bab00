package detection

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/pyramid"
)

// ErrInvalidThreshold reports a contrast or edge threshold outside its
// valid range.
var ErrInvalidThreshold = errors.New("invalid detection threshold")

// Keypoint is a scale-space extremum at integer pixel coordinates.
type Keypoint struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)

	// Level is the DoG level the extremum was found on. Descriptors are
	// sampled from the finest Gaussian level regardless of it.
	Level int `json:"level"`

	// Response is the DoG value at the extremum. Negative for minima.
	Response float64 `json:"response"`
}

// Params controls extremum filtering.
type Params struct {
	// ContrastThreshold rejects candidates whose absolute DoG response is
	// below it. Must be non-negative. Default 0.03.
	ContrastThreshold float64 `json:"contrast_threshold"`

	// EdgeThreshold is the principal-curvature ratio r. Candidates with
	// Tr²/Det above (r+1)²/r are rejected as edge responses. Must be
	// positive. Default 12.
	EdgeThreshold float64 `json:"edge_threshold"`

	// Workers bounds the number of rows scanned concurrently. Zero or
	// negative means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
}

// DefaultParams returns the contrast threshold 0.03 and edge ratio 12.
func DefaultParams() Params {
	return Params{
		ContrastThreshold: 0.03,
		EdgeThreshold:     12,
	}
}

// Validate checks the thresholds.
func (p Params) Validate() error {
	if !(p.ContrastThreshold >= 0) || math.IsInf(p.ContrastThreshold, 1) {
		return fmt.Errorf("%w: contrast threshold must be non-negative, got %g",
			ErrInvalidThreshold, p.ContrastThreshold)
	}
	if !(p.EdgeThreshold > 0) || math.IsInf(p.EdgeThreshold, 1) {
		return fmt.Errorf("%w: edge threshold must be positive, got %g",
			ErrInvalidThreshold, p.EdgeThreshold)
	}
	return nil
}

// EdgeLimit returns (r+1)²/r, the largest curvature ratio Tr²/Det that a
// keypoint may have.
func (p Params) EdgeLimit() float64 {
	r := p.EdgeThreshold
	return (r + 1) * (r + 1) / r
}

// Detect finds contrast- and edge-filtered scale-space extrema in dog.
//
// # Algorithm
//
//  1. Candidates: every pixel of DoG levels 1..M-2 that is not on the image
//     border is compared to its 26 neighbours (8 on its own level, 9 on
//     each adjacent level). It must be strictly greater than all of them
//     or strictly less than all of them; any tie disqualifies it.
//
//  2. Contrast: candidates with |D| < ContrastThreshold are dropped.
//
//  3. Edge response: the spatial Hessian is taken by central finite
//     differences. Candidates with Det <= 0 (saddles) or
//     Tr²/Det > (r+1)²/r (elongated, edge-like curvature) are dropped.
//
// Rows are scanned concurrently but the result is always ordered by level,
// then row, then column, so repeated runs return identical slices.
//
// A pyramid with fewer than three levels has no interior level and yields
// no keypoints.
func Detect(dog *pyramid.Pyramid, params Params) ([]Keypoint, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dog == nil {
		return nil, fmt.Errorf("%w: nil DoG pyramid", imaging.ErrInvalidDimensions)
	}
	for i, lvl := range dog.Levels {
		if lvl.Buffer == nil || lvl.Width != dog.Width || lvl.Height != dog.Height ||
			len(lvl.Pix) != dog.Width*dog.Height {
			return nil, fmt.Errorf("%w: DoG level %d", imaging.ErrDimensionMismatch, i)
		}
	}

	w, h, m := dog.Width, dog.Height, dog.Len()
	if m < 3 || w < 3 || h < 3 {
		return []Keypoint{}, nil
	}

	rowsPerLevel := h - 2
	rows := make([][]Keypoint, (m-2)*rowsPerLevel)
	limit := params.EdgeLimit()

	var g errgroup.Group
	g.SetLimit(workerCount(params.Workers))
	for level := 1; level <= m-2; level++ {
		below, cur, above := dog.At(level-1), dog.At(level), dog.At(level+1)
		for y := 1; y < h-1; y++ {
			slot := (level-1)*rowsPerLevel + (y - 1)
			g.Go(func() error {
				rows[slot] = scanRow(below, cur, above, level, y, params.ContrastThreshold, limit)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, r := range rows {
		n += len(r)
	}
	keypoints := make([]Keypoint, 0, n)
	for _, r := range rows {
		keypoints = append(keypoints, r...)
	}
	return keypoints, nil
}

// scanRow returns the keypoints of row y on DoG level cur.
func scanRow(below, cur, above *imaging.Buffer, level, y int, contrast, edgeLimit float64) []Keypoint {
	var out []Keypoint
	for x := 1; x < cur.Width-1; x++ {
		v := cur.At(x, y)
		// Written so NaN fails too.
		if !(math.Abs(v) >= contrast) || math.IsInf(v, 0) {
			continue
		}
		if !isExtremum(below, cur, above, x, y, v) {
			continue
		}
		if isEdgeResponse(cur, x, y, edgeLimit) {
			continue
		}
		out = append(out, Keypoint{X: x, Y: y, Level: level, Response: v})
	}
	return out
}

// isExtremum reports whether v at (x, y) is strictly above or strictly below
// all 26 scale-space neighbours.
func isExtremum(below, cur, above *imaging.Buffer, x, y int, v float64) bool {
	isMax, isMin := true, true
	for _, b := range [3]*imaging.Buffer{below, cur, above} {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if b == cur && dx == 0 && dy == 0 {
					continue
				}
				n := b.At(x+dx, y+dy)
				if n >= v {
					isMax = false
				}
				if n <= v {
					isMin = false
				}
				if !isMax && !isMin {
					return false
				}
			}
		}
	}
	return true
}

// isEdgeResponse reports whether the spatial curvature at (x, y) is
// unstable: a saddle (Det <= 0) or a ratio Tr²/Det above edgeLimit.
func isEdgeResponse(d *imaging.Buffer, x, y int, edgeLimit float64) bool {
	c := d.At(x, y)
	dxx := d.At(x+1, y) + d.At(x-1, y) - 2*c
	dyy := d.At(x, y+1) + d.At(x, y-1) - 2*c
	dxy := (d.At(x+1, y+1) - d.At(x+1, y-1) - d.At(x-1, y+1) + d.At(x-1, y-1)) / 4

	tr := dxx + dyy
	det := dxx*dyy - dxy*dxy
	if det <= 0 {
		return true
	}
	return tr*tr/det > edgeLimit
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}
