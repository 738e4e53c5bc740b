package carrier

import (
	"image"
	"math"
	"path/filepath"
	"testing"

	"github.com/faanross/simulacra_img/internal/prng"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Ensure tiny payloads get the minimum carrier.
func TestDimensionsMinimum(t *testing.T) {
	s := DefaultSizer()
	w, h, err := s.Dimensions(1)
	require.NoError(t, err)
	require.Equal(t, 128, w)
	require.Equal(t, 96, h)

	w, h, err = s.Dimensions(0)
	require.NoError(t, err)
	require.Equal(t, 128, w)
	require.Equal(t, 96, h)
}

// Ensure larger payloads fit, keep roughly 4:3 and land on the interval.
func TestDimensionsFit(t *testing.T) {
	s := DefaultSizer()
	for _, length := range []int64{1500, 4096, 100000, 1 << 20, spec.DEFAULT_MAX_PAYLOAD_LENGTH} {
		w, h, err := s.Dimensions(length)
		require.NoError(t, err)
		require.Zero(t, w%spec.SIZE_INTERVAL)
		require.Zero(t, h%spec.SIZE_INTERVAL)
		need := length*spec.BITS_PER_BYTE + spec.FRAME_OVERHEAD_BITS
		require.True(t, int64(w)*int64(h) >= need, "length %d: %dx%d", length, w, h)
		ratio := float64(w) / float64(h)
		require.InDelta(t, 4.0/3.0, ratio, 0.2, "length %d", length)
	}
}

func TestDimensionsMonotonic(t *testing.T) {
	s := DefaultSizer()
	prev := int64(0)
	for length := int64(0); length < 50000; length += 97 {
		w, h, err := s.Dimensions(length)
		require.NoError(t, err)
		require.True(t, int64(w)*int64(h) >= prev)
		prev = int64(w) * int64(h)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	s := DefaultSizer()
	_, _, err := s.Dimensions(s.MaxPayloadLength + 1)
	require.True(t, errors.Is(err, ErrPayloadTooLarge))

	_, _, err = s.Dimensions(-1)
	require.True(t, errors.Is(err, ErrPayloadTooLarge))

	_, err = s.Generate(s.MaxPayloadLength+1, 0, prng.NewSeeded(1))
	require.True(t, errors.Is(err, ErrPayloadTooLarge))
}

// Ensure capacities that would not fit in 32 bits are refused.
func TestPayloadBeyondCapacity(t *testing.T) {
	s := DefaultSizer()
	s.MaxPayloadLength = math.MaxInt64 / 16
	_, _, err := s.Dimensions(1 << 30)
	require.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestNotEnoughMemory(t *testing.T) {
	s := DefaultSizer()
	s.MaxImageBytes = 128 * 96 * 4
	_, err := s.Generate(1, 0, prng.NewSeeded(1))
	require.NoError(t, err)

	_, err = s.Generate(10000, 0, prng.NewSeeded(1))
	require.True(t, errors.Is(err, ErrNotEnoughMemory))
}

func TestGenerate(t *testing.T) {
	s := DefaultSizer()
	img, err := s.Generate(5000, 16, prng.NewSeeded(3))
	require.NoError(t, err)
	w, h, _ := s.Dimensions(5000)
	require.Equal(t, image.Rect(0, 0, w, h), img.Bounds())
	require.Equal(t, uint32(w*h), Capacity(img))

	// Pixels in one cell share the high nibble.
	a := img.RGBAAt(0, 0)
	b := img.RGBAAt(15, 15)
	require.Equal(t, a.R&0xF0, b.R&0xF0)
	require.Equal(t, uint8(255), a.A)

	again, err := s.Generate(5000, 16, prng.NewSeeded(3))
	require.NoError(t, err)
	require.Equal(t, img.Pix, again.Pix)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	img, err := DefaultSizer().Generate(10, 0, prng.NewSeeded(9))
	require.NoError(t, err)

	for _, name := range []string{"carrier.png", "carrier.BMP"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, img))
		loaded, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, img.Bounds(), loaded.Bounds())
		for y := 0; y < 96; y += 7 {
			for x := 0; x < 128; x += 5 {
				r1, g1, b1, _ := img.At(x, y).RGBA()
				r2, g2, b2, _ := loaded.At(x, y).RGBA()
				require.Equal(t, []uint32{r1, g1, b1}, []uint32{r2, g2, b2}, name)
			}
		}
	}

	_, err = Load(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

// Ensure an allocation the runtime or the image package refuses is reported
// as ErrNotEnoughMemory when no byte budget is set.
func TestAllocateRecoversPanic(t *testing.T) {
	s := DefaultSizer()
	s.MaxImageBytes = 0

	// Byte count fits in an int but exceeds any address space.
	_, err := s.allocate(1<<30, 1<<30)
	require.True(t, errors.Is(err, ErrNotEnoughMemory))

	// Byte count overflows an int.
	_, err = s.allocate(math.MaxInt32, math.MaxInt32)
	require.True(t, errors.Is(err, ErrNotEnoughMemory))
}
