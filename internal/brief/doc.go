// Package brief computes BRIEF (Binary Robust Independent Elementary
// Features) descriptors.
//
// A descriptor is an N-bit vector. Bit i compares two intensities sampled
// around the keypoint at the offsets of pair i of a shared test Pattern:
// the bit is set when the sample at offset A[i] is darker than the sample
// at offset B[i]. Samples falling outside the image are clamped to the
// nearest border pixel.
//
// Descriptors are compared by Hamming distance, the number of differing
// bits. Both descriptor sets of a match must come from the same pattern.
//
// # Pattern File Format
//
// A pattern file is whitespace-separated text: the pair count N followed
// by N rows of four integers "x1 y1 x2 y2", the offsets of sample A and
// sample B relative to the keypoint.
package brief
