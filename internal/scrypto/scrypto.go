package scrypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/term"
)

var (
	// ErrAuthentication means the frame did not authenticate: wrong password
	// or corrupted carrier.
	ErrAuthentication = errors.New("authentication failed - wrong password or corrupted data")

	// ErrFrameTooShort means the frame cannot hold salt, nonce, magic and tag.
	ErrFrameTooShort = errors.New("payload too small for decryption")

	// ErrDecompressedTooLarge means a compressed message inflates past the
	// allowed limit.
	ErrDecompressedTooLarge = errors.New("decompressed message too large")
)

// SealOptions controls how a message is sealed.
type SealOptions struct {
	Iterations int
	Compress   bool
	// Rand supplies salt and nonce; nil selects crypto/rand.
	Rand io.Reader
}

// Opened contains a decrypted message and metadata.
type Opened struct {
	Message       []byte
	WasCompressed bool
	EncryptedSize int
	DecryptedSize int
}

// DeriveKey generates an encryption key from password using PBKDF2.
func DeriveKey(password, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = spec.PBKDF2_ITERS
	}
	return pbkdf2.Key(password, salt, iterations, spec.KEY_SIZE, sha256.New)
}

// Seal encrypts message with AES-256-GCM and returns the frame
// [Salt(32)][Nonce(12)][Ciphertext][AuthTag(16)].
// The plaintext is [Magic(4)][Flag(1)][Data], Flag 1 meaning gzip.
func Seal(message, password []byte, opts SealOptions) ([]byte, error) {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	data := message
	compressed := false
	if opts.Compress {
		c, err := CompressData(message)
		if err != nil {
			return nil, errors.Wrap(err, "compression failed")
		}
		if len(c) < len(message) {
			data = c
			compressed = true
		}
	}

	frame := make([]byte, spec.FRAME_HEADER_SIZE, spec.FRAME_HEADER_SIZE+spec.MAGIC_SIZE+spec.FLAG_SIZE+len(data)+spec.TAG_SIZE)
	salt := frame[:spec.SALT_SIZE]
	nonce := frame[spec.SALT_SIZE:spec.FRAME_HEADER_SIZE]
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return nil, errors.Wrap(err, "salt generation failed")
	}
	if _, err := io.ReadFull(rnd, nonce); err != nil {
		return nil, errors.Wrap(err, "nonce generation failed")
	}

	gcm, err := newGCM(DeriveKey(password, salt, opts.Iterations))
	if err != nil {
		return nil, err
	}

	plain := make([]byte, spec.MAGIC_SIZE+spec.FLAG_SIZE+len(data))
	binary.BigEndian.PutUint32(plain[:spec.MAGIC_SIZE], spec.MAGIC_HEADER)
	if compressed {
		plain[spec.MAGIC_SIZE] = 1
	}
	copy(plain[spec.MAGIC_SIZE+spec.FLAG_SIZE:], data)

	return gcm.Seal(frame, nonce, plain, nil), nil
}

// Open reverses Seal.
func Open(frame, password []byte, iterations int) (*Opened, error) {
	if len(frame) < spec.MIN_FRAME_SIZE {
		return nil, errors.Wrapf(ErrFrameTooShort, "%d bytes", len(frame))
	}
	salt := frame[:spec.SALT_SIZE]
	nonce := frame[spec.SALT_SIZE:spec.FRAME_HEADER_SIZE]
	ciphertext := frame[spec.FRAME_HEADER_SIZE:]

	gcm, err := newGCM(DeriveKey(password, salt, iterations))
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	magic := binary.BigEndian.Uint32(plain[:spec.MAGIC_SIZE])
	if magic != spec.MAGIC_HEADER {
		return nil, errors.Errorf("invalid magic header: %X (expected %X)", magic, spec.MAGIC_HEADER)
	}

	out := &Opened{
		Message:       plain[spec.MAGIC_SIZE+spec.FLAG_SIZE:],
		EncryptedSize: len(ciphertext),
	}
	if plain[spec.MAGIC_SIZE] == 1 {
		msg, err := DecompressData(out.Message)
		if err != nil {
			return nil, errors.Wrap(err, "decompression failed")
		}
		out.Message = msg
		out.WasCompressed = true
	}
	out.DecryptedSize = len(out.Message)
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "cipher creation failed")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "GCM creation failed")
	}
	return gcm, nil
}

// CompressData gzips data.
func CompressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		return nil, errors.Wrap(err, "compression write failed")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "compression close failed")
	}
	return buf.Bytes(), nil
}

// DecompressData reverses CompressData. Output is capped at
// spec.DEFAULT_MAX_PAYLOAD_LENGTH bytes.
func DecompressData(data []byte) ([]byte, error) {
	return DecompressLimit(data, spec.DEFAULT_MAX_PAYLOAD_LENGTH)
}

// DecompressLimit reverses CompressData, failing with
// ErrDecompressedTooLarge once more than limit bytes come out.
func DecompressLimit(data []byte, limit int64) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out, err := ioutil.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, errors.Wrapf(ErrDecompressedTooLarge, "limit %d bytes", limit)
	}
	return out, nil
}

// GetSecurePassword prompts for password with hidden input
func GetSecurePassword(prompt string, minLen int) ([]byte, error) {
	os.Stderr.WriteString(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	os.Stderr.WriteString("\n")
	if err != nil {
		return nil, errors.Wrap(err, "password read failed")
	}
	if len(password) < minLen {
		return nil, errors.Errorf("password must be at least %d characters", minLen)
	}
	return password, nil
}
