// Package detection finds keypoints as scale-space extrema of a
// Difference-of-Gaussian pyramid.
//
// A candidate is a pixel of an interior DoG level that is strictly greater
// or strictly smaller than all 26 neighbours in its own level and the two
// adjacent levels. Candidates are then filtered twice:
//
//   - Contrast: |D| below ContrastThreshold is discarded.
//   - Edge response: the 2×2 Hessian of the level is estimated by finite
//     differences and candidates with Det <= 0 or Tr²/Det above
//     (r+1)²/r are discarded, where r is EdgeThreshold.
//
// Rows are scanned in parallel, but Detect always returns keypoints ordered
// by level, then row, then column.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
package detection
