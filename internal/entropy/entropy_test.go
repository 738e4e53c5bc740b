package entropy

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/encoder"
	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/prng"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Ensure a concealed carrier reads as random.
func TestAnalyzeCarrier(t *testing.T) {
	opts := encoder.DefaultOptions()
	opts.Iterations = 1000
	opts.Rand = prng.NewSeeded(1)
	img, err := encoder.NewSecureStegoEncoder([]byte("hidden"), []byte("password"), opts).CreateStegoImage()
	require.NoError(t, err)

	m := Analyze(img)
	require.Equal(t, int(carrier.Capacity(img)), m.Bits)
	require.Equal(t, m.Bits/8, m.Bytes)
	require.InDelta(t, 0.5, m.OnesRatio, 0.05)
	require.True(t, m.Entropy > 7.5, "entropy %f", m.Entropy)
	require.NotEqual(t, Low, m.Verdict)
}

// Ensure a flat image is flagged.
func TestAnalyzeFlat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	m := Analyze(img)
	require.Zero(t, m.Entropy)
	require.Zero(t, m.OnesRatio)
	require.Equal(t, Low, m.Verdict)

	var buf bytes.Buffer
	l := logger.NewLogger(uint32(log.InfoLevel))
	l.SetWriter(&buf)
	m.Log(l)
	require.Contains(t, buf.String(), "low entropy")
}

func TestAnalyzeEmpty(t *testing.T) {
	m := Analyze(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.Zero(t, m.Bits)
	require.Equal(t, Low, m.Verdict)
}
