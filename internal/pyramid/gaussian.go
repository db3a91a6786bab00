package pyramid

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/keypoint-match/internal/imaging"
)

// MaxSigma is the largest blur a level may request.
const MaxSigma = 1 << 16

// ErrInvalidParameter reports a non-positive scale parameter or an unusable
// level list.
var ErrInvalidParameter = errors.New("invalid pyramid parameter")

// Params controls Gaussian pyramid construction.
type Params struct {
	// Sigma0 is the base standard deviation. Must be positive.
	Sigma0 float64 `json:"sigma0"`

	// K is the scale multiplier between successive exponents. Must be
	// positive.
	K float64 `json:"k"`

	// Levels lists the exponents e, one pyramid level each, in output order.
	// Negative exponents give scales finer than Sigma0.
	Levels []int `json:"levels"`
}

// DefaultParams returns sigma0 = 1, k = √2 and exponents -1 through 5.
func DefaultParams() Params {
	return Params{
		Sigma0: 1,
		K:      math.Sqrt2,
		Levels: []int{-1, 0, 1, 2, 3, 4, 5},
	}
}

// Validate checks the parameters without building anything.
func (p Params) Validate() error {
	if !(p.Sigma0 > 0) || math.IsInf(p.Sigma0, 0) {
		return fmt.Errorf("%w: sigma0 must be positive, got %g", ErrInvalidParameter, p.Sigma0)
	}
	if !(p.K > 0) || math.IsInf(p.K, 0) {
		return fmt.Errorf("%w: k must be positive, got %g", ErrInvalidParameter, p.K)
	}
	if len(p.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidParameter)
	}
	for _, e := range p.Levels {
		if s := p.Sigma(e); !(s > 0) || s > MaxSigma {
			return fmt.Errorf("%w: exponent %d gives sigma %g outside (0, %d]",
				ErrInvalidParameter, e, s, MaxSigma)
		}
	}
	return nil
}

// Sigma returns the effective standard deviation for exponent e.
func (p Params) Sigma(e int) float64 {
	return p.Sigma0 * math.Pow(p.K, float64(e))
}

// Level is one image of a pyramid together with the scale it represents.
type Level struct {
	*imaging.Buffer

	// Exponent is the level exponent e. For a DoG level it is the exponent
	// of the lower of the two Gaussian levels it was taken from.
	Exponent int

	// Sigma is the blur applied to produce the level. For a DoG level it is
	// the sigma of the lower Gaussian level.
	Sigma float64
}

// Pyramid is an ordered sequence of equally sized levels.
//
// The pyramid owns its buffers; downstream stages read them and the whole
// pyramid is dropped once descriptors have been computed.
type Pyramid struct {
	Width  int
	Height int
	Levels []Level
}

// Len returns the number of levels.
func (p *Pyramid) Len() int {
	return len(p.Levels)
}

// At returns the buffer of level i.
func (p *Pyramid) At(i int) *imaging.Buffer {
	return p.Levels[i].Buffer
}

// Finest returns the level with the smallest sigma, the most detailed image
// in the pyramid. Ties keep the earlier level.
func (p *Pyramid) Finest() *imaging.Buffer {
	best := 0
	for i := range p.Levels {
		if p.Levels[i].Sigma < p.Levels[best].Sigma {
			best = i
		}
	}
	return p.Levels[best].Buffer
}

// FromBuffers assembles a pyramid from caller-owned buffers, all of which
// must share one size. Exponents are assigned 0..n-1 and sigmas are left at
// zero.
func FromBuffers(bufs ...*imaging.Buffer) (*Pyramid, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidParameter)
	}
	if bufs[0] == nil {
		return nil, fmt.Errorf("%w: level 0 is nil", ErrInvalidParameter)
	}
	p := &Pyramid{
		Width:  bufs[0].Width,
		Height: bufs[0].Height,
		Levels: make([]Level, len(bufs)),
	}
	for i, b := range bufs {
		if !bufs[0].SameSize(b) {
			return nil, fmt.Errorf("%w: level %d", imaging.ErrDimensionMismatch, i)
		}
		p.Levels[i] = Level{Buffer: b, Exponent: i}
	}
	return p, nil
}

// BuildGaussian blurs img once per exponent in params.Levels and returns
// the levels in that order.
//
// Levels are independent of each other, so they are computed concurrently;
// the output order is fixed by the exponent list.
func BuildGaussian(img *imaging.Buffer, params Params) (*Pyramid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", imaging.ErrInvalidDimensions)
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Pix) != img.Width*img.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d samples",
			imaging.ErrInvalidDimensions, img.Width, img.Height, len(img.Pix))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := &Pyramid{
		Width:  img.Width,
		Height: img.Height,
		Levels: make([]Level, len(params.Levels)),
	}

	var g errgroup.Group
	for i, e := range params.Levels {
		sigma := params.Sigma(e)
		g.Go(func() error {
			p.Levels[i] = Level{
				Buffer:   GaussianBlur(img, sigma),
				Exponent: e,
				Sigma:    sigma,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// KernelRadius returns the half-width of the Gaussian kernel used for sigma:
// ceil(3*sigma), at least 1 and at most 3*MaxSigma.
func KernelRadius(sigma float64) int {
	if sigma > MaxSigma {
		return 3 * MaxSigma
	}
	r := int(math.Ceil(3 * sigma))
	if r < 1 {
		r = 1
	}
	return r
}

// GaussianKernel returns the normalized 1-D kernel of length 2*radius+1.
func GaussianKernel(sigma float64) []float64 {
	radius := KernelRadius(sigma)
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur returns a new buffer holding src convolved with an isotropic
// Gaussian of the given sigma.
//
// The 2-D kernel is applied as two separable 1-D passes, horizontal then
// vertical. Border pixels are replicated.
func GaussianBlur(src *imaging.Buffer, sigma float64) *imaging.Buffer {
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2
	w, h := src.Width, src.Height

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += row[imaging.Clamp(x+k, 0, w-1)] * kernel[k+radius]
			}
			tmp[y*w+x] = sum
		}
	}

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += tmp[imaging.Clamp(y+k, 0, h-1)*w+x] * kernel[k+radius]
			}
			out[y*w+x] = sum
		}
	}

	return &imaging.Buffer{Width: w, Height: h, Pix: out}
}
