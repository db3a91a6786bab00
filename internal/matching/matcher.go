package matching

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/keypoint-match/internal/brief"
)

// ErrMisalignedSet reports a descriptor set whose keypoint and descriptor
// slices differ in length.
var ErrMisalignedSet = errors.New("keypoints and descriptors are not aligned")

// Result holds the accepted matches in query order.
//
// Indices1[i] indexes set A and Indices2[i] indexes set B; Distances[i] is
// their Hamming distance. Indices1 is strictly increasing.
type Result struct {
	Indices1  []int `json:"indices1"`
	Indices2  []int `json:"indices2"`
	Distances []int `json:"distances"`
}

// Len returns the number of matches.
func (r *Result) Len() int {
	return len(r.Indices1)
}

type options struct {
	maxDistance int
	crossCheck  bool
	workers     int
}

// Option configures Match.
type Option func(*options)

// WithMaxDistance drops matches whose distance exceeds d. A negative d
// disables the threshold, which is the default.
func WithMaxDistance(d int) Option {
	return func(o *options) {
		o.maxDistance = d
	}
}

// WithCrossCheck keeps a match (i, j) only when i is also the nearest
// neighbour of j in A.
func WithCrossCheck() Option {
	return func(o *options) {
		o.crossCheck = true
	}
}

// WithWorkers bounds the number of query descriptors processed
// concurrently. Zero or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Match pairs every descriptor in a with its nearest descriptor in b.
//
// Without options every entry of a produces exactly one match, so
// Result.Len() == a.Len() whenever b is non-empty. An empty b yields an
// empty result. Sets built from patterns of different lengths are rejected
// with brief.ErrPatternMismatch.
func Match(a, b *brief.Set, opts ...Option) (*Result, error) {
	o := options{maxDistance: -1}
	for _, opt := range opts {
		opt(&o)
	}

	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil descriptor set", brief.ErrPatternMismatch)
	}
	if a.Bits != b.Bits {
		return nil, fmt.Errorf("%w: %d-bit set vs %d-bit set", brief.ErrPatternMismatch, a.Bits, b.Bits)
	}
	if err := checkLengths(a); err != nil {
		return nil, err
	}
	if err := checkLengths(b); err != nil {
		return nil, err
	}

	res := &Result{Indices1: []int{}, Indices2: []int{}, Distances: []int{}}
	if a.Len() == 0 || b.Len() == 0 {
		return res, nil
	}

	forward, err := nearest(a.Descriptors, b.Descriptors, o.workers)
	if err != nil {
		return nil, err
	}
	var backward []neighbour
	if o.crossCheck {
		if backward, err = nearest(b.Descriptors, a.Descriptors, o.workers); err != nil {
			return nil, err
		}
	}

	for i, nb := range forward {
		if o.maxDistance >= 0 && nb.distance > o.maxDistance {
			continue
		}
		if o.crossCheck && backward[nb.index].index != i {
			continue
		}
		res.Indices1 = append(res.Indices1, i)
		res.Indices2 = append(res.Indices2, nb.index)
		res.Distances = append(res.Distances, nb.distance)
	}
	return res, nil
}

type neighbour struct {
	index    int
	distance int
}

// nearest returns, for each query, the lowest-index train descriptor at
// minimum Hamming distance.
func nearest(query, train []brief.Descriptor, workers int) ([]neighbour, error) {
	out := make([]neighbour, len(query))

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(query) + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}

	var g errgroup.Group
	for start := 0; start < len(query); start += chunk {
		end := min(start+chunk, len(query))
		g.Go(func() error {
			for i := start; i < end; i++ {
				best := neighbour{index: -1}
				for j := range train {
					d, err := query[i].Distance(train[j])
					if err != nil {
						return fmt.Errorf("query %d, train %d: %w", i, j, err)
					}
					if best.index < 0 || d < best.distance {
						best = neighbour{index: j, distance: d}
						if d == 0 {
							break
						}
					}
				}
				out[i] = best
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func checkLengths(s *brief.Set) error {
	if len(s.Keypoints) != len(s.Descriptors) {
		return fmt.Errorf("%w: %d keypoints but %d descriptors",
			ErrMisalignedSet, len(s.Keypoints), len(s.Descriptors))
	}
	for i, d := range s.Descriptors {
		if d.Len() == 0 || d.Len() != s.Bits {
			return fmt.Errorf("%w: descriptor %d has %d bits in a %d-bit set",
				brief.ErrPatternMismatch, i, d.Len(), s.Bits)
		}
	}
	return nil
}
