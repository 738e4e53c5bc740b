// Package randstream provides bounded streams of random filler data. The
// concealment engine fills every carrier position after the payload from
// one of these so that the LSB plane looks uniformly random.
package randstream

import (
	"crypto/rand"
	"io"

	"github.com/faanross/simulacra_img/internal/prng"
)

// Reader yields exactly n bytes from its source and then io.EOF.
type Reader struct {
	src       io.Reader
	remaining int64

	cur  byte
	nbit uint
}

// New wraps src. A nil src selects crypto/rand.
func New(src io.Reader, n int64) *Reader {
	if src == nil {
		src = rand.Reader
	}
	return &Reader{src: src, remaining: n}
}

// NewSeeded returns a reproducible stream of n bytes keyed by seed.
func NewSeeded(seed uint32, n int64) *Reader {
	return New(prng.NewSeeded(seed), n)
}

// Remaining reports how many bytes are left.
func (r *Reader) Remaining() int64 {
	return r.remaining
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := io.ReadFull(r.src, p)
	r.remaining -= int64(n)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// ReadBit returns the next bit, LSB first within each byte.
func (r *Reader) ReadBit() (bool, error) {
	if r.nbit == 0 {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return false, err
		}
		r.cur = b[0]
		r.nbit = 8
	}
	bit := r.cur&1 == 1
	r.cur >>= 1
	r.nbit--
	return bit, nil
}
