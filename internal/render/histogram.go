package render

import (
	"errors"
	"fmt"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironsheep/keypoint-match/internal/matching"
)

// ErrNoMatches reports an attempt to plot an empty match result.
var ErrNoMatches = errors.New("no matches to plot")

// DistanceBins counts match distances in bins equal-width bins covering
// [0, descriptorBits]. The last bin absorbs the remainder. Returns nil when
// bins is not positive.
func DistanceBins(res *matching.Result, descriptorBits, bins int) []int {
	if bins <= 0 {
		return nil
	}
	counts := make([]int, bins)
	width := max((descriptorBits+bins)/bins, 1)
	for _, d := range res.Distances {
		i := min(max(d/width, 0), bins-1)
		counts[i]++
	}
	return counts
}

// DistanceHistogram plots the distribution of match distances as a bar
// chart and saves it to path. The image format follows the extension
// (png, svg, pdf...).
func DistanceHistogram(res *matching.Result, descriptorBits int, path string) error {
	if res == nil || res.Len() == 0 {
		return ErrNoMatches
	}
	const bins = 16
	counts := DistanceBins(res, descriptorBits, bins)
	width := max((descriptorBits+bins)/bins, 1)

	values := make(plotter.Values, bins)
	labels := make([]string, bins)
	for i, c := range counts {
		values[i] = float64(c)
		labels[i] = strconv.Itoa(i * width)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Hamming distance of %d matches", res.Len())
	p.X.Label.Text = "distance (bin start)"
	p.Y.Label.Text = "matches"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("failed to build chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(labels...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
