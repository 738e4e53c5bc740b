// Package lengthcoder hides the payload length among the first carrier
// positions. The length bits are scattered by a permutation and masked with
// a keystream, both derived from the carrier capacity alone, so the
// recovering side can rebuild them from the image dimensions.
//
// Bit order is LSB-first within each byte, and the capacity is keyed
// little-endian. Both are fixed: existing carriers depend on them.
package lengthcoder

import (
	"math/bits"

	"github.com/faanross/simulacra_img/internal/prng"
	"github.com/faanross/simulacra_img/internal/spec"
)

// NumBits returns the width of the length field for capacity: enough bits to
// represent 1.5 times the capacity.
func NumBits(capacity uint32) int {
	c := uint64(capacity)
	return bits.Len64(c + c/2)
}

// FieldSize returns the number of bytes Encode produces for capacity.
func FieldSize(capacity uint32) int {
	return (NumBits(capacity) + 7) / 8
}

// Generator holds the permutation and mask for one capacity. Generators are
// not cached; Encode and Decode each build their own.
type Generator struct {
	perm []int
	mask [spec.MAX_LENGTH_SIZE]byte
}

// NewGenerator derives the permutation and mask for capacity.
func NewGenerator(capacity uint32) *Generator {
	n := NumBits(capacity)
	rng := prng.NewSeeded(capacity)

	perm := make([]int, n)
	for j := range perm {
		perm[j] = j
	}
	for iter := 0; iter < spec.SHUFFLE_ITERATIONS; iter++ {
		for j := 0; j < n; j++ {
			k := (int(rng.Byte()) * (j + 1)) >> 8
			perm[j] = perm[k]
			perm[k] = j
		}
	}

	g := &Generator{perm: perm}
	rng.Read(g.mask[:])
	return g
}

// Permutation returns the field position of each length bit. The slice is
// owned by the generator.
func (g *Generator) Permutation() []int {
	return g.perm
}

// Mask returns a copy of the keystream.
func (g *Generator) Mask() []byte {
	m := make([]byte, len(g.mask))
	copy(m, g.mask[:])
	return m
}

// Encode scatters the low NumBits(capacity) bits of length and masks them.
// Higher bits of length are dropped.
func Encode(length uint64, capacity uint32) []byte {
	g := NewGenerator(capacity)
	out := make([]byte, FieldSize(capacity))
	for i, p := range g.perm {
		if length&(1<<uint(i)) != 0 {
			out[p>>3] |= 1 << uint(p&7)
		}
	}
	g.xor(out)
	return out
}

// Decode unmasks data in place and gathers the length bits. Malformed input
// decodes to a wrong length, never to an error; callers validate the result.
func Decode(data []byte, capacity uint32) uint64 {
	g := NewGenerator(capacity)
	g.xor(data)

	var length uint64
	for i, p := range g.perm {
		idx := p >> 3
		if idx >= len(data) {
			continue
		}
		if data[idx]&(1<<uint(p&7)) != 0 {
			length |= 1 << uint(i)
		}
	}
	return length
}

func (g *Generator) xor(buf []byte) {
	for i := range buf {
		if i >= len(g.mask) {
			return
		}
		buf[i] ^= g.mask[i]
	}
}
