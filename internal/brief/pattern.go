package brief

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
)

var (
	// ErrInvalidPattern reports a malformed or empty test pattern.
	ErrInvalidPattern = errors.New("invalid test pattern")

	// ErrPatternMismatch reports descriptors of different lengths, which
	// means they were computed with different patterns.
	ErrPatternMismatch = errors.New("descriptor length mismatch")
)

// Offset is a pixel displacement relative to a keypoint.
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Pattern is the set of sample-pair offsets shared by every descriptor
// computation in a run. It is read-only once built.
type Pattern struct {
	// A holds the first offset of each pair.
	A []Offset

	// B holds the second offset of each pair. len(B) == len(A).
	B []Offset
}

// Len returns the number of test pairs, which is also the descriptor
// length in bits.
func (p *Pattern) Len() int {
	return len(p.A)
}

// Validate checks that the pattern has at least one pair and that A and B
// are aligned.
func (p *Pattern) Validate() error {
	if p == nil || len(p.A) == 0 {
		return fmt.Errorf("%w: no test pairs", ErrInvalidPattern)
	}
	if len(p.A) != len(p.B) {
		return fmt.Errorf("%w: %d A offsets but %d B offsets", ErrInvalidPattern, len(p.A), len(p.B))
	}
	return nil
}

// Radius returns the largest absolute offset component in the pattern.
func (p *Pattern) Radius() int {
	var r int
	for i := range p.A {
		for _, v := range [4]int{p.A[i].DX, p.A[i].DY, p.B[i].DX, p.B[i].DY} {
			if v < 0 {
				v = -v
			}
			if v > r {
				r = v
			}
		}
	}
	return r
}

// ReadPattern parses a pattern from r.
//
// The count must be positive and must be followed by exactly that many
// rows of four integers; missing or non-integer values are errors. Any
// trailing content after the last row is ignored.
func ReadPattern(r io.Reader) (*Pattern, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, fmt.Errorf("failed to read pattern: %w", err)
			}
			return 0, fmt.Errorf("%w: unexpected end of input reading %s", ErrInvalidPattern, what)
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, what, err)
		}
		return v, nil
	}

	n, err := next("pair count")
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: pair count must be positive, got %d", ErrInvalidPattern, n)
	}

	p := &Pattern{A: make([]Offset, n), B: make([]Offset, n)}
	for i := 0; i < n; i++ {
		var v [4]int
		for j := range v {
			if v[j], err = next(fmt.Sprintf("pair %d", i)); err != nil {
				return nil, err
			}
		}
		p.A[i] = Offset{DX: v[0], DY: v[1]}
		p.B[i] = Offset{DX: v[2], DY: v[3]}
	}
	return p, nil
}

// LoadPattern reads a pattern file from disk.
func LoadPattern(path string) (*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern: %w", err)
	}
	defer f.Close()

	p, err := ReadPattern(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteTo writes the pattern in the text format accepted by ReadPattern.
func (p *Pattern) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	n, err := fmt.Fprintf(bw, "%d\n", p.Len())
	total += int64(n)
	if err != nil {
		return total, err
	}
	for i := range p.A {
		n, err = fmt.Fprintf(bw, "%d %d %d %d\n", p.A[i].DX, p.A[i].DY, p.B[i].DX, p.B[i].DY)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// SavePattern writes the pattern to a file, replacing any existing file.
func SavePattern(p *Pattern, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create pattern file: %w", err)
	}
	if _, err := p.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write pattern: %w", err)
	}
	return f.Close()
}

// GeneratePattern draws n test pairs for a square patch of side patchSize.
//
// Both offsets of each pair are sampled independently from an isotropic
// Gaussian with sigma = patchSize/5, rounded to integers and clipped to
// the patch, i.e. to [-patchSize/2, patchSize/2]. The same seed always
// yields the same pattern.
func GeneratePattern(n, patchSize int, seed int64) (*Pattern, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: pair count must be positive, got %d", ErrInvalidPattern, n)
	}
	if patchSize < 2 {
		return nil, fmt.Errorf("%w: patch size must be at least 2, got %d", ErrInvalidPattern, patchSize)
	}

	rng := rand.New(rand.NewSource(seed))
	sigma := float64(patchSize) / 5
	half := patchSize / 2
	draw := func() int {
		v := int(math.Round(rng.NormFloat64() * sigma))
		if v < -half {
			return -half
		}
		if v > half {
			return half
		}
		return v
	}

	p := &Pattern{A: make([]Offset, n), B: make([]Offset, n)}
	for i := 0; i < n; i++ {
		p.A[i] = Offset{DX: draw(), DY: draw()}
		p.B[i] = Offset{DX: draw(), DY: draw()}
	}
	return p, nil
}
