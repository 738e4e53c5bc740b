// Package prng provides a deterministic, block-cipher based pseudo random
// byte source. The same key always yields the same byte sequence, which is
// what lets the concealment side and the recovery side agree on bit
// positions and masks without storing them.
package prng

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"github.com/faanross/simulacra_img/internal/spec"
)

// Reader is AES-256 in counter mode over an all-zero IV. Each instance owns
// its cipher state and must not be shared between goroutines.
type Reader struct {
	stream cipher.Stream
	buf    [aes.BlockSize]byte
	pos    int
}

// SeedKey places seed in the first SEED_SIZE bytes of a key (little-endian)
// and leaves the rest zero.
func SeedKey(seed uint32) [spec.KEY_SIZE]byte {
	var key [spec.KEY_SIZE]byte
	binary.LittleEndian.PutUint32(key[:spec.SEED_SIZE], seed)
	return key
}

// New creates a Reader keyed by key.
func New(key [spec.KEY_SIZE]byte) *Reader {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// Only reachable with an invalid key size, which the array type rules out.
		panic(err)
	}
	iv := make([]byte, aes.BlockSize)
	return &Reader{
		stream: cipher.NewCTR(block, iv),
		pos:    aes.BlockSize,
	}
}

// NewSeeded is shorthand for New(SeedKey(seed)).
func NewSeeded(seed uint32) *Reader {
	return New(SeedKey(seed))
}

// Read fills p with keystream bytes. It never fails.
func (r *Reader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.Byte()
	}
	return len(p), nil
}

// Byte returns the next keystream byte.
func (r *Reader) Byte() byte {
	if r.pos == len(r.buf) {
		r.refill()
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

// refill encrypts the next counter block. XORing the keystream into a zero
// block yields the raw keystream.
func (r *Reader) refill() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.stream.XORKeyStream(r.buf[:], r.buf[:])
	r.pos = 0
}
