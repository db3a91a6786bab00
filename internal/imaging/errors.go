package imaging

import "errors"

var (
	// ErrInvalidDimensions reports a non-positive width or height.
	ErrInvalidDimensions = errors.New("invalid image dimensions")

	// ErrDimensionMismatch reports two buffers that were expected to share
	// a size but do not.
	ErrDimensionMismatch = errors.New("image dimensions do not match")

	// ErrLoad wraps any failure to open or decode an image file.
	ErrLoad = errors.New("failed to load image")
)
