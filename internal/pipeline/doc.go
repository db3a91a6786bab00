// Package pipeline wires the keypoint stages together: Gaussian pyramid,
// DoG pyramid, extremum detection, BRIEF description and matching.
//
// Each call to Extract owns every intermediate buffer it creates and drops
// them before returning, so independent images can be processed on
// separate goroutines with no shared mutable state. The only shared input
// is the read-only test pattern.
//
// Stage timings are returned with each result rather than accumulated on
// the Pipeline.
package pipeline
