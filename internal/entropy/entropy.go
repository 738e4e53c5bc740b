// Package entropy measures how random a carrier's hidden bit plane looks.
package entropy

import (
	"image"
	"math"

	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/plane"
)

// Verdict classifies a plane by its byte entropy.
type Verdict int

const (
	Low Verdict = iota
	Good
	High
)

func (v Verdict) String() string {
	switch v {
	case High:
		return "high entropy - statistically indistinguishable from random"
	case Good:
		return "good entropy - difficult to detect"
	default:
		return "low entropy - may be detectable"
	}
}

// Metrics describes the bit plane of one image.
type Metrics struct {
	Bits      int
	Bytes     int
	Entropy   float64 // bits per byte, max 8
	OnesRatio float64
	// ChiSquare of the byte histogram against a uniform distribution
	// (255 degrees of freedom).
	ChiSquare float64
	Verdict   Verdict
}

// Analyze computes Metrics for img.
func Analyze(img image.Image) Metrics {
	bits := plane.Extract(img)
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	packed := plane.Pack(bits, 0, n/8*8)

	m := Metrics{Bits: n, Bytes: len(packed)}
	if n > 0 {
		m.OnesRatio = float64(bits.Count()) / float64(n)
	}
	if len(packed) == 0 {
		return m
	}

	var freq [256]int
	for _, v := range packed {
		freq[v]++
	}
	total := float64(len(packed))
	expected := total / 256
	for _, count := range freq {
		if count > 0 {
			p := float64(count) / total
			m.Entropy -= p * math.Log2(p)
		}
		d := float64(count) - expected
		m.ChiSquare += d * d / expected
	}

	switch {
	case m.Entropy > 7.9:
		m.Verdict = High
	case m.Entropy > 7.5:
		m.Verdict = Good
	default:
		m.Verdict = Low
	}
	return m
}

// Log reports m through l.
func (m Metrics) Log(l logger.Logger) {
	l.Infof("Bit plane: %d bits (%d bytes)", m.Bits, m.Bytes)
	l.Infof("Entropy: %.4f bits per byte (max: 8.0)", m.Entropy)
	l.Infof("Ones: %.1f%%, chi-square: %.1f", m.OnesRatio*100, m.ChiSquare)
	if m.Verdict == Low {
		l.Warnf("Verdict: %s", m.Verdict)
		return
	}
	l.Infof("Verdict: %s", m.Verdict)
}
