package pyramid

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/keypoint-match/internal/imaging"
)

// BuildDoG derives the Difference-of-Gaussian pyramid from g.
//
// Level i of the result is g[i+1] - g[i], so the result has one level fewer
// than g. A pyramid with fewer than two levels, or with levels whose sizes
// disagree, is rejected: both indicate an upstream misconfiguration.
func BuildDoG(g *Pyramid) (*Pyramid, error) {
	if g == nil || g.Len() < 2 {
		n := 0
		if g != nil {
			n = g.Len()
		}
		return nil, fmt.Errorf("%w: DoG needs at least 2 Gaussian levels, got %d",
			ErrInvalidParameter, n)
	}

	dog := &Pyramid{
		Width:  g.Width,
		Height: g.Height,
		Levels: make([]Level, g.Len()-1),
	}
	for i := 0; i < g.Len()-1; i++ {
		lo, hi := g.Levels[i], g.Levels[i+1]
		if lo.Width != g.Width || lo.Height != g.Height || !lo.SameSize(hi.Buffer) {
			return nil, fmt.Errorf("%w: levels %d and %d", imaging.ErrDimensionMismatch, i, i+1)
		}
		diff := make([]float64, len(lo.Pix))
		floats.SubTo(diff, hi.Pix, lo.Pix)
		dog.Levels[i] = Level{
			Buffer:   &imaging.Buffer{Width: g.Width, Height: g.Height, Pix: diff},
			Exponent: lo.Exponent,
			Sigma:    lo.Sigma,
		}
	}
	return dog, nil
}
