// Package matching pairs BRIEF descriptor sets from two images.
//
// Matching is brute force: every descriptor of the query set A is compared
// with every descriptor of the train set B by Hamming distance and paired
// with the closest one. When several B descriptors share the minimum
// distance the lowest index wins, so results never depend on how the work
// was scheduled.
//
// Two optional filters reduce noise: an acceptance threshold on the
// distance, and a cross check that keeps a pair only when each descriptor
// is the other's nearest neighbour.
package matching
