// Package imaging loads images from disk and converts them into the
// normalized floating-point buffers consumed by the keypoint pipeline.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// A Buffer stores its samples row-major, so the sample at (x, y) lives at
// Pix[y*Width+x].
//
// # Normalization
//
// Buffers produced by FromGray hold intensities in [0, 1], obtained by
// dividing 8-bit gray levels by 255. Normalize applies a min-max stretch for
// callers that want every image to span the full range regardless of its
// exposure.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Buffers are plain values
// with no internal locking: the pipeline treats them as read-only once built,
// so concurrent readers are fine but writers must be synchronized by the
// caller.
//
// # Error Handling
//
// Size violations return errors wrapping ErrInvalidDimensions or
// ErrDimensionMismatch. Failures to open or decode a file wrap ErrLoad so a
// batch caller can tell a bad input apart from a programming error.
package imaging
