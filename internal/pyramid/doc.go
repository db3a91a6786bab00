// Package pyramid builds the fixed-resolution scale spaces used for keypoint
// detection.
//
// A Gaussian pyramid holds one blurred copy of the source image per level
// exponent e, each blurred with standard deviation Sigma0*K^e. Every level
// is blurred from the original image, never from the previous level, and
// all levels keep the source dimensions.
//
// A Difference-of-Gaussian (DoG) pyramid is derived from adjacent Gaussian
// levels and approximates the scale-normalized Laplacian used to localize
// blob-like features.
//
// # Boundary Handling
//
// Convolution replicates border pixels outward (clamp-to-edge). The same
// policy is applied at every level so that levels stay spatially aligned.
package pyramid
