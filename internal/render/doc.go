// Package render produces debugging visuals for keypoints and matches.
//
// Nothing here affects detection or matching results. Composites place
// the two images side by side, left image at the origin and right image
// offset by the left image's width, and join matched keypoints with
// colored lines.
package render
