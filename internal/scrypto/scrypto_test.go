package scrypto

import (
	"bytes"
	"testing"

	"github.com/faanross/simulacra_img/internal/prng"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testIters = 1000

func TestSealOpen(t *testing.T) {
	msg := []byte("meet at the usual place")
	frame, err := Seal(msg, []byte("correct horse"), SealOptions{Iterations: testIters})
	require.NoError(t, err)
	require.Len(t, frame, spec.MIN_FRAME_SIZE+len(msg))

	opened, err := Open(frame, []byte("correct horse"), testIters)
	require.NoError(t, err)
	require.Equal(t, msg, opened.Message)
	require.False(t, opened.WasCompressed)
	require.Equal(t, len(msg), opened.DecryptedSize)
}

// Ensure compressible input is stored compressed and restored.
func TestSealCompressed(t *testing.T) {
	msg := bytes.Repeat([]byte("abcdefgh"), 512)
	frame, err := Seal(msg, []byte("password"), SealOptions{Iterations: testIters, Compress: true})
	require.NoError(t, err)
	require.True(t, len(frame) < len(msg))

	opened, err := Open(frame, []byte("password"), testIters)
	require.NoError(t, err)
	require.True(t, opened.WasCompressed)
	require.Equal(t, msg, opened.Message)
}

// Ensure incompressible input is stored as is even when asked to compress.
func TestSealIncompressible(t *testing.T) {
	msg := make([]byte, 64)
	prng.NewSeeded(5).Read(msg)
	frame, err := Seal(msg, []byte("password"), SealOptions{Iterations: testIters, Compress: true})
	require.NoError(t, err)
	require.Len(t, frame, spec.MIN_FRAME_SIZE+len(msg))

	opened, err := Open(frame, []byte("password"), testIters)
	require.NoError(t, err)
	require.False(t, opened.WasCompressed)
}

func TestOpenWrongPassword(t *testing.T) {
	frame, err := Seal([]byte("secret"), []byte("password"), SealOptions{Iterations: testIters})
	require.NoError(t, err)
	_, err = Open(frame, []byte("passw0rd"), testIters)
	require.True(t, errors.Is(err, ErrAuthentication))
}

func TestOpenTooShort(t *testing.T) {
	_, err := Open(make([]byte, spec.MIN_FRAME_SIZE-1), []byte("password"), testIters)
	require.True(t, errors.Is(err, ErrFrameTooShort))
}

// Ensure a deterministic salt/nonce source gives a deterministic frame.
func TestSealDeterministicRand(t *testing.T) {
	opts := SealOptions{Iterations: testIters, Rand: prng.NewSeeded(1)}
	a, err := Seal([]byte("x"), []byte("password"), opts)
	require.NoError(t, err)
	opts.Rand = prng.NewSeeded(1)
	b, err := Seal([]byte("x"), []byte("password"), opts)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDeriveKeyDefaultIterations(t *testing.T) {
	salt := []byte("salt")
	require.Equal(t, DeriveKey([]byte("pw"), salt, spec.PBKDF2_ITERS), DeriveKey([]byte("pw"), salt, 0))
	require.Len(t, DeriveKey([]byte("pw"), salt, 1), spec.KEY_SIZE)
}

// Ensure decompression stops at the limit instead of inflating without bound.
func TestDecompressLimit(t *testing.T) {
	data := make([]byte, 4096)
	c, err := CompressData(data)
	require.NoError(t, err)

	out, err := DecompressLimit(c, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, data, out)

	_, err = DecompressLimit(c, int64(len(data))-1)
	require.True(t, errors.Is(err, ErrDecompressedTooLarge))
}

// Ensure a sealed gzip bomb is rejected on Open.
func TestOpenDecompressedTooLarge(t *testing.T) {
	c, err := CompressData(make([]byte, spec.DEFAULT_MAX_PAYLOAD_LENGTH+1))
	require.NoError(t, err)
	_, err = DecompressData(c)
	require.True(t, errors.Is(err, ErrDecompressedTooLarge))

	frame, err := Seal(make([]byte, spec.DEFAULT_MAX_PAYLOAD_LENGTH+1), []byte("password"),
		SealOptions{Iterations: testIters, Compress: true})
	require.NoError(t, err)
	_, err = Open(frame, []byte("password"), testIters)
	require.True(t, errors.Is(err, ErrDecompressedTooLarge))
}
