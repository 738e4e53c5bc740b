package encoder

import (
	"crypto/rand"
	"image"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/lengthcoder"
	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/plane"
	"github.com/faanross/simulacra_img/internal/randstream"
	"github.com/faanross/simulacra_img/internal/scrypto"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

// Options configures a SecureStegoEncoder.
type Options struct {
	Sizer      carrier.Sizer
	CellSize   int
	Iterations int
	Compress   bool
	// Rand feeds salt, nonce, carrier pattern and filler; nil selects crypto/rand.
	Rand   io.Reader
	Logger logger.Logger
}

// DefaultOptions returns options with the default sizer and a discarding logger.
func DefaultOptions() Options {
	return Options{
		Sizer:      carrier.DefaultSizer(),
		CellSize:   spec.DEFAULT_CELL_SIZE,
		Iterations: spec.PBKDF2_ITERS,
		Compress:   true,
		Logger:     logger.NewDiscard(),
	}
}

// SecureStegoEncoder hides an encrypted message in a generated carrier.
type SecureStegoEncoder struct {
	password      []byte
	message       []byte
	opts          Options
	securePayload []byte
	capacity      uint32
	numLengthBits int
}

// NewSecureStegoEncoder creates an encoder with encryption
func NewSecureStegoEncoder(message []byte, password []byte, opts Options) *SecureStegoEncoder {
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscard()
	}
	return &SecureStegoEncoder{
		password: password,
		message:  message,
		opts:     opts,
	}
}

// PrepareSecurePayload seals the message into the frame that gets embedded.
func (sse *SecureStegoEncoder) PrepareSecurePayload() error {
	payload, err := scrypto.Seal(sse.message, sse.password, scrypto.SealOptions{
		Iterations: sse.opts.Iterations,
		Compress:   sse.opts.Compress,
		Rand:       sse.opts.Rand,
	})
	if err != nil {
		return errors.Wrap(err, "sealing message")
	}
	sse.securePayload = payload

	sse.opts.Logger.Infof("Sealed %s into %s (AES-256-GCM, PBKDF2-%d)",
		humanize.IBytes(uint64(len(sse.message))), humanize.IBytes(uint64(len(payload))), sse.opts.Iterations)
	return nil
}

// CreateStegoImage generates a carrier and embeds the length field, the
// sealed payload and random filler, in that order.
func (sse *SecureStegoEncoder) CreateStegoImage() (*image.RGBA, error) {
	if err := sse.PrepareSecurePayload(); err != nil {
		return nil, err
	}

	img, err := sse.opts.Sizer.Generate(int64(len(sse.securePayload)), sse.opts.CellSize, sse.opts.Rand)
	if err != nil {
		return nil, err
	}

	sse.capacity = carrier.Capacity(img)
	sse.numLengthBits = lengthcoder.NumBits(sse.capacity)
	payloadBits := len(sse.securePayload) * spec.BITS_PER_BYTE
	used := sse.numLengthBits + payloadBits
	if uint64(used) > uint64(sse.capacity) {
		return nil, errors.Wrapf(carrier.ErrPayloadTooLarge, "%d bits needed, carrier holds %d", used, sse.capacity)
	}

	bits := bitset.New(uint(used))
	field := lengthcoder.Encode(uint64(len(sse.securePayload)), sse.capacity)
	plane.Unpack(bits, 0, field, sse.numLengthBits)
	plane.Unpack(bits, sse.numLengthBits, sse.securePayload, payloadBits)

	fillBits := int(sse.capacity) - used
	filler := randstream.New(sse.opts.Rand, int64(fillBits+7)/8)

	for p := 0; p < int(sse.capacity); p++ {
		bit := false
		if p < used {
			bit = bits.Test(uint(p))
		} else if bit, err = filler.ReadBit(); err != nil {
			return nil, errors.Wrap(err, "reading filler")
		}
		plane.Embed(img, p, bit)
	}

	bounds := img.Bounds()
	sse.opts.Logger.Infof("Carrier %dx%d, capacity %d bits, length field %d bits, utilization %.1f%%",
		bounds.Dx(), bounds.Dy(), sse.capacity, sse.numLengthBits, float64(used)*100/float64(sse.capacity))
	return img, nil
}

// Capacity returns the carrier capacity of the last CreateStegoImage call.
func (sse *SecureStegoEncoder) Capacity() uint32 {
	return sse.capacity
}

// PayloadSize returns the sealed frame size in bytes.
func (sse *SecureStegoEncoder) PayloadSize() int {
	return len(sse.securePayload)
}
