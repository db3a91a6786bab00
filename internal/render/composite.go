package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/matching"
)

// ErrIndexOutOfRange reports a match index that does not address a
// keypoint.
var ErrIndexOutOfRange = errors.New("match index out of range")

// Palette returns n evenly spaced, fully saturated hues. The same n always
// yields the same colors.
func Palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		hue := 360 * float64(i) / float64(max(n, 1))
		out[i] = colorful.Hsv(hue, 0.85, 1).Clamped()
	}
	return out
}

// SideBySide pastes a and b next to each other on a black canvas as tall
// as the taller image.
func SideBySide(a, b image.Image) *image.NRGBA {
	ab, bb := a.Bounds(), b.Bounds()
	canvas := imaging.New(ab.Dx()+bb.Dx(), max(ab.Dy(), bb.Dy()), color.Black)
	canvas = imaging.Paste(canvas, a, image.Pt(0, 0))
	return imaging.Paste(canvas, b, image.Pt(ab.Dx(), 0))
}

// MatchComposite draws a and b side by side and joins every matched pair of
// keypoints with a line. Line colors cycle through a fixed palette.
func MatchComposite(a, b image.Image, kpsA, kpsB []detection.Keypoint, res *matching.Result) (*image.NRGBA, error) {
	canvas := SideBySide(a, b)
	offset := a.Bounds().Dx()
	colors := Palette(12)

	for i := range res.Indices1 {
		i1, i2 := res.Indices1[i], res.Indices2[i]
		if i1 < 0 || i1 >= len(kpsA) || i2 < 0 || i2 >= len(kpsB) {
			return nil, fmt.Errorf("%w: match %d pairs %d with %d", ErrIndexOutOfRange, i, i1, i2)
		}
		p1, p2 := kpsA[i1], kpsB[i2]
		drawLine(canvas, p1.X, p1.Y, p2.X+offset, p2.Y, colors[i%len(colors)])
	}
	return canvas, nil
}

// KeypointOverlay copies img and marks every keypoint with a small cross,
// colored by its DoG level.
func KeypointOverlay(img image.Image, kps []detection.Keypoint) *image.NRGBA {
	out := imaging.Clone(img)
	maxLevel := 0
	for _, kp := range kps {
		maxLevel = max(maxLevel, kp.Level)
	}
	colors := Palette(maxLevel + 1)
	for _, kp := range kps {
		c := colors[max(kp.Level, 0)]
		drawLine(out, kp.X-2, kp.Y, kp.X+2, kp.Y, c)
		drawLine(out, kp.X, kp.Y-2, kp.X, kp.Y+2, c)
	}
	return out
}

// Save writes img to path; the format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// drawLine draws a 1-pixel Bresenham line, skipping points outside img.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
