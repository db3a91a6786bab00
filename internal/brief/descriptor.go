package brief

import (
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/imaging"
)

// Descriptor is a fixed-length BRIEF bit vector.
type Descriptor struct {
	bits *bitset.BitSet
}

// NewDescriptor returns an all-zero descriptor of n bits.
func NewDescriptor(n int) Descriptor {
	return Descriptor{bits: bitset.New(uint(n))}
}

// ParseDescriptor builds a descriptor from a string of '0' and '1'
// characters, bit 0 first.
func ParseDescriptor(s string) (Descriptor, error) {
	d := NewDescriptor(len(s))
	for i, c := range s {
		switch c {
		case '1':
			d.bits.Set(uint(i))
		case '0':
		default:
			return Descriptor{}, fmt.Errorf("invalid descriptor character %q at %d", c, i)
		}
	}
	return d, nil
}

// Len returns the number of bits.
func (d Descriptor) Len() int {
	if d.bits == nil {
		return 0
	}
	return int(d.bits.Len())
}

// Bit reports whether bit i is set.
func (d Descriptor) Bit(i int) bool {
	return d.bits != nil && d.bits.Test(uint(i))
}

// Set sets bit i.
func (d Descriptor) Set(i int) {
	d.bits.Set(uint(i))
}

// Count returns the number of set bits.
func (d Descriptor) Count() int {
	if d.bits == nil {
		return 0
	}
	return int(d.bits.Count())
}

// Distance returns the Hamming distance between d and o.
//
// Returns an error wrapping ErrPatternMismatch when the lengths differ or
// either descriptor is empty.
func (d Descriptor) Distance(o Descriptor) (int, error) {
	if d.Len() == 0 || o.Len() == 0 {
		return 0, fmt.Errorf("%w: empty descriptor", ErrPatternMismatch)
	}
	if d.Len() != o.Len() {
		return 0, fmt.Errorf("%w: %d bits vs %d bits", ErrPatternMismatch, d.Len(), o.Len())
	}
	return d.hamming(o), nil
}

// hamming assumes equal lengths.
func (d Descriptor) hamming(o Descriptor) int {
	return int(d.bits.SymmetricDifferenceCardinality(o.bits))
}

// Equal reports whether d and o have the same length and bits.
func (d Descriptor) Equal(o Descriptor) bool {
	return d.Len() == o.Len() && (d.Len() == 0 || d.bits.Equal(o.bits))
}

// Clone returns an independent copy.
func (d Descriptor) Clone() Descriptor {
	if d.bits == nil {
		return Descriptor{}
	}
	return Descriptor{bits: d.bits.Clone()}
}

// String renders the bits as '0'/'1' characters, bit 0 first.
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.Grow(d.Len())
	for i := 0; i < d.Len(); i++ {
		if d.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Set is the descriptor set of one image: keypoints and descriptors
// aligned by index.
type Set struct {
	Keypoints   []detection.Keypoint
	Descriptors []Descriptor

	// Bits is the descriptor length shared by every entry.
	Bits int
}

// Len returns the number of described keypoints.
func (s *Set) Len() int {
	return len(s.Descriptors)
}

// Compute builds one descriptor per keypoint from ref using pattern.
//
// For pair i, bit i is set when ref(p+A[i]) < ref(p+B[i]), with both sample
// positions clamped to the image. The result preserves the keypoint order.
// The keypoint slice is copied, so the caller may reuse it.
func Compute(ref *imaging.Buffer, keypoints []detection.Keypoint, pattern *Pattern) (*Set, error) {
	if ref == nil || ref.Width <= 0 || ref.Height <= 0 || len(ref.Pix) != ref.Width*ref.Height {
		return nil, fmt.Errorf("%w: reference image", imaging.ErrInvalidDimensions)
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	n := pattern.Len()
	set := &Set{
		Keypoints:   make([]detection.Keypoint, len(keypoints)),
		Descriptors: make([]Descriptor, len(keypoints)),
		Bits:        n,
	}
	copy(set.Keypoints, keypoints)

	for k, kp := range keypoints {
		d := NewDescriptor(n)
		for i := 0; i < n; i++ {
			a, b := pattern.A[i], pattern.B[i]
			if ref.Clamped(kp.X+a.DX, kp.Y+a.DY) < ref.Clamped(kp.X+b.DX, kp.Y+b.DY) {
				d.Set(i)
			}
		}
		set.Descriptors[k] = d
	}
	return set, nil
}
