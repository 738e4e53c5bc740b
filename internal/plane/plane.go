// Package plane reads and writes the bit plane a carrier hides data in.
//
// Every pixel holds one bit: the parity of the least significant bits of its
// red, green and blue channels. Position p is the pixel at
// (p % width, p / width) relative to the image origin.
package plane

import (
	"image"

	"github.com/willf/bitset"
)

// Bit returns the bit held at position p.
func Bit(img image.Image, p int) bool {
	b := img.Bounds()
	x := b.Min.X + p%b.Dx()
	y := b.Min.Y + p/b.Dx()
	if rgba, ok := img.(*image.RGBA); ok {
		c := rgba.RGBAAt(x, y)
		return (c.R^c.G^c.B)&1 == 1
	}
	r, g, bl, _ := img.At(x, y).RGBA()
	return (uint8(r>>8)^uint8(g>>8)^uint8(bl>>8))&1 == 1
}

// Embed makes position p hold bit. When the parity has to change, one
// channel's LSB is flipped; which one is chosen from the pixel's own higher
// noise bits so that no channel carries all of the changes.
func Embed(img *image.RGBA, p int, bit bool) {
	b := img.Bounds()
	x := b.Min.X + p%b.Dx()
	y := b.Min.Y + p/b.Dx()
	c := img.RGBAAt(x, y)
	if ((c.R^c.G^c.B)&1 == 1) == bit {
		return
	}
	switch ((c.R >> 1) ^ (c.G >> 2) ^ (c.B >> 3)) % 3 {
	case 0:
		c.R ^= 1
	case 1:
		c.G ^= 1
	default:
		c.B ^= 1
	}
	img.SetRGBA(x, y, c)
}

// Extract reads the whole plane.
func Extract(img image.Image) *bitset.BitSet {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	bits := bitset.New(uint(n))
	for p := 0; p < n; p++ {
		if Bit(img, p) {
			bits.Set(uint(p))
		}
	}
	return bits
}

// Pack converts n bits starting at from into bytes, LSB first.
func Pack(bits *bitset.BitSet, from, n int) []byte {
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if bits.Test(uint(from + i)) {
			out[i>>3] |= 1 << uint(i&7)
		}
	}
	return out
}

// Unpack is the inverse of Pack: it stores the first n bits of data into
// bits starting at from.
func Unpack(bits *bitset.BitSet, from int, data []byte, n int) {
	for i := 0; i < n; i++ {
		if data[i>>3]&(1<<uint(i&7)) != 0 {
			bits.Set(uint(from + i))
		} else {
			bits.Clear(uint(from + i))
		}
	}
}
