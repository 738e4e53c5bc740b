package decoder

import (
	"image"

	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/lengthcoder"
	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/plane"
	"github.com/faanross/simulacra_img/internal/scrypto"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

// ErrCorruptLength means the recovered length field cannot describe a
// payload in this carrier: not a carrier, or a damaged one.
var ErrCorruptLength = errors.New("length field does not fit the carrier")

// Options configures a SecureStegoDecoder.
type Options struct {
	Iterations int
	Logger     logger.Logger
}

// DefaultOptions returns the default iteration count and a discarding logger.
func DefaultOptions() Options {
	return Options{
		Iterations: spec.PBKDF2_ITERS,
		Logger:     logger.NewDiscard(),
	}
}

// ExtractedMessage contains decrypted message and metadata
type ExtractedMessage struct {
	Message       []byte
	WasCompressed bool
	EncryptedSize int
	DecryptedSize int
	Authenticated bool
}

// SecureStegoDecoder handles extraction and decryption
type SecureStegoDecoder struct {
	img           image.Image
	capacity      uint32
	password      []byte
	opts          Options
	bits          *bitset.BitSet
	securePayload []byte
}

// NewSecureStegoDecoder creates a decoder instance
func NewSecureStegoDecoder(img image.Image, password []byte, opts Options) *SecureStegoDecoder {
	if opts.Logger == nil {
		opts.Logger = logger.NewDiscard()
	}
	return &SecureStegoDecoder{
		img:      img,
		capacity: carrier.Capacity(img),
		password: password,
		opts:     opts,
	}
}

// ExtractBitStream reads the carrier's bit plane.
func (ssd *SecureStegoDecoder) ExtractBitStream() {
	ssd.bits = plane.Extract(ssd.img)
	ssd.opts.Logger.Debugf("Extracted %d bits from carrier", ssd.capacity)
}

// ExtractSecurePayload recovers the length field and the sealed frame.
func (ssd *SecureStegoDecoder) ExtractSecurePayload() error {
	if ssd.bits == nil {
		ssd.ExtractBitStream()
	}

	n := lengthcoder.NumBits(ssd.capacity)
	field := plane.Pack(ssd.bits, 0, n)
	length := lengthcoder.Decode(field, ssd.capacity)

	maxBytes := (uint64(ssd.capacity) - uint64(n)) / spec.BITS_PER_BYTE
	if length > maxBytes {
		return errors.Wrapf(ErrCorruptLength, "payload length %d exceeds available %d bytes", length, maxBytes)
	}
	if length < spec.MIN_FRAME_SIZE {
		return errors.Wrapf(ErrCorruptLength, "payload too small to contain encrypted data: %d < %d",
			length, spec.MIN_FRAME_SIZE)
	}

	ssd.securePayload = plane.Pack(ssd.bits, n, int(length)*spec.BITS_PER_BYTE)
	ssd.opts.Logger.Debugf("Payload length %d bytes, length field %d bits", length, n)
	return nil
}

// DecryptPayload decrypts the extracted payload
func (ssd *SecureStegoDecoder) DecryptPayload() (*ExtractedMessage, error) {
	if ssd.securePayload == nil {
		return nil, errors.New("no payload extracted")
	}
	opened, err := scrypto.Open(ssd.securePayload, ssd.password, ssd.opts.Iterations)
	if err != nil {
		return nil, err
	}
	return &ExtractedMessage{
		Message:       opened.Message,
		WasCompressed: opened.WasCompressed,
		EncryptedSize: opened.EncryptedSize,
		DecryptedSize: opened.DecryptedSize,
		Authenticated: true,
	}, nil
}

// Reveal runs the full extraction for img.
func Reveal(img image.Image, password []byte, opts Options) (*ExtractedMessage, error) {
	ssd := NewSecureStegoDecoder(img, password, opts)
	if err := ssd.ExtractSecurePayload(); err != nil {
		return nil, err
	}
	return ssd.DecryptPayload()
}

// TryPasswords attempts decryption with each password in turn. The carrier
// is read once. It returns the message and the index of the password that
// worked.
func TryPasswords(img image.Image, passwords []string, opts Options) (*ExtractedMessage, int, error) {
	ssd := NewSecureStegoDecoder(img, nil, opts)
	if err := ssd.ExtractSecurePayload(); err != nil {
		return nil, -1, err
	}

	for i, pass := range passwords {
		ssd.password = []byte(pass)
		result, err := ssd.DecryptPayload()
		if err == nil {
			ssd.opts.Logger.Infof("Attempt %d/%d: success", i+1, len(passwords))
			return result, i, nil
		}
		if errors.Is(err, scrypto.ErrAuthentication) {
			ssd.opts.Logger.Infof("Attempt %d/%d: wrong password", i+1, len(passwords))
			continue
		}
		return nil, -1, err
	}
	return nil, -1, errors.Wrapf(scrypto.ErrAuthentication, "all %d passwords failed", len(passwords))
}
