package imaging

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
)

// Buffer is a single-channel image of floating-point intensities.
//
// Samples are stored row-major: the value at (x, y) is Pix[y*Width+x].
// Every level of a scale-space pyramid is a Buffer of the same size as the
// source image.
type Buffer struct {
	// Width is the number of columns.
	Width int

	// Height is the number of rows.
	Height int

	// Pix holds Width*Height samples.
	Pix []float64
}

// NewBuffer allocates a zero-filled buffer of the given size.
//
// Returns an error wrapping ErrInvalidDimensions when either side is not
// positive.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}, nil
}

// NewBufferFrom wraps existing row-major samples in a Buffer.
//
// The slice is used directly, not copied. Its length must equal
// width*height.
func NewBufferFrom(width, height int, pix []float64) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("%w: %d samples for %dx%d buffer",
			ErrDimensionMismatch, len(pix), width, height)
	}
	return &Buffer{Width: width, Height: height, Pix: pix}, nil
}

// At returns the sample at (x, y). The coordinates must be in bounds.
func (b *Buffer) At(x, y int) float64 {
	return b.Pix[y*b.Width+x]
}

// Set stores v at (x, y). The coordinates must be in bounds.
func (b *Buffer) Set(x, y int, v float64) {
	b.Pix[y*b.Width+x] = v
}

// Clamped returns the sample at (x, y) after clamping the coordinates to the
// buffer, which replicates the border pixels outward indefinitely.
func (b *Buffer) Clamped(x, y int) float64 {
	return b.Pix[Clamp(y, 0, b.Height-1)*b.Width+Clamp(x, 0, b.Width-1)]
}

// Bounds returns the buffer extent as an image rectangle anchored at (0,0).
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// SameSize reports whether o has the same width and height as b.
func (b *Buffer) SameSize(o *Buffer) bool {
	return o != nil && b.Width == o.Width && b.Height == o.Height
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	pix := make([]float64, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Normalize stretches the samples in place so the minimum maps to 0 and the
// maximum to 1. A flat buffer becomes all zeros.
func (b *Buffer) Normalize() {
	lo := floats.Min(b.Pix)
	hi := floats.Max(b.Pix)
	span := hi - lo
	if span == 0 {
		for i := range b.Pix {
			b.Pix[i] = 0
		}
		return
	}
	floats.AddConst(-lo, b.Pix)
	floats.Scale(1/span, b.Pix)
}

// FromGray converts an 8-bit grayscale image into a buffer with intensities
// in [0, 1].
//
// The image bounds need not start at (0,0); the buffer is always anchored at
// the origin.
func FromGray(img *image.Gray) (*Buffer, error) {
	bounds := img.Bounds()
	buf, err := NewBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < buf.Height; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < buf.Width; x++ {
			buf.Pix[y*buf.Width+x] = float64(row[x]) / 255.0
		}
	}
	return buf, nil
}

// FromRGBA converts a gray-valued RGBA image, such as the output of bild's
// grayscale effect, into a buffer with intensities in [0, 1]. Only the red
// channel is read.
func FromRGBA(img *image.RGBA) (*Buffer, error) {
	bounds := img.Bounds()
	buf, err := NewBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < buf.Height; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < buf.Width; x++ {
			buf.Pix[y*buf.Width+x] = float64(row[4*x]) / 255.0
		}
	}
	return buf, nil
}

// ToGray converts the buffer back to an 8-bit grayscale image, clipping
// samples outside [0, 1].
func (b *Buffer) ToGray() *image.Gray {
	img := image.NewGray(b.Bounds())
	for i, v := range b.Pix {
		switch {
		case v <= 0:
			img.Pix[i] = 0
		case v >= 1:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v*255 + 0.5)
		}
	}
	return img
}

// Clamp constrains an integer value to the range [lo, hi].
// Used for boundary handling in convolution and sampling.
func Clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
