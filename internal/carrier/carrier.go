// Package carrier sizes and generates the images that carry concealed data.
//
// A carrier is always generated fresh for a payload: its dimensions follow
// from the payload length, and its pixels are a random cell pattern whose
// low bits are later overwritten by the concealment engine.
package carrier

import (
	"image"
	"image/color"
	"io"
	"math"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/faanross/simulacra_img/internal/spec"
	"github.com/pkg/errors"
)

var (
	// ErrPayloadTooLarge is returned when a payload exceeds what a carrier
	// can address. It is raised before any allocation.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNotEnoughMemory is returned when the pixel buffer cannot be
	// materialised.
	ErrNotEnoughMemory = errors.New("not enough memory to generate carrier image")
)

// Sizer holds the sizing parameters. The zero value is not usable, start
// from DefaultSizer.
type Sizer struct {
	WidthFactor      int
	HeightFactor     int
	Interval         int
	MinMultiplier    int
	BitsPerPixel     int
	MaxPayloadLength int64
	// MaxImageBytes bounds the RGBA buffer; zero means unbounded.
	MaxImageBytes int64
}

// DefaultSizer returns the 4:3, 16px interval sizing used by default.
func DefaultSizer() Sizer {
	return Sizer{
		WidthFactor:      spec.WIDTH_FACTOR,
		HeightFactor:     spec.HEIGHT_FACTOR,
		Interval:         spec.SIZE_INTERVAL,
		MinMultiplier:    spec.MIN_SIZE_MULTIPLIER,
		BitsPerPixel:     spec.BITS_PER_PIXEL,
		MaxPayloadLength: spec.DEFAULT_MAX_PAYLOAD_LENGTH,
		MaxImageBytes:    spec.DEFAULT_MAX_IMAGE_BYTES,
	}
}

// MinWidth is the narrowest carrier the sizer produces.
func (s Sizer) MinWidth() int {
	return s.WidthFactor * s.MinMultiplier * s.Interval
}

// MinHeight is the shortest carrier the sizer produces.
func (s Sizer) MinHeight() int {
	return s.HeightFactor * s.MinMultiplier * s.Interval
}

// Dimensions returns a width and height whose pixel count holds
// payloadLength bytes plus the length field.
func (s Sizer) Dimensions(payloadLength int64) (int, int, error) {
	if payloadLength < 0 || payloadLength > s.MaxPayloadLength {
		return 0, 0, errors.Wrapf(ErrPayloadTooLarge, "%d bytes, maximum is %s",
			payloadLength, humanize.IBytes(uint64(s.MaxPayloadLength)))
	}

	bits := payloadLength*spec.BITS_PER_BYTE + spec.FRAME_OVERHEAD_BITS
	bpp := int64(s.BitsPerPixel)
	pixels := (bits + bpp - 1) / bpp

	wf := float64(s.WidthFactor)
	hf := float64(s.HeightFactor)
	unit := math.Sqrt(float64(pixels) / (wf * hf))

	width := roundUp(int(math.Ceil(unit*wf)), s.Interval)
	height := roundUp(int(math.Ceil(unit*hf)), s.Interval)
	for int64(width)*int64(height) < pixels {
		width += s.Interval
	}

	if width < s.MinWidth() {
		width = s.MinWidth()
	}
	if height < s.MinHeight() {
		height = s.MinHeight()
	}

	// Capacities are keyed as 32-bit values.
	if int64(width)*int64(height) > math.MaxUint32 {
		return 0, 0, errors.Wrapf(ErrPayloadTooLarge, "%dx%d carrier exceeds addressable capacity", width, height)
	}
	return width, height, nil
}

// Generate sizes a carrier for payloadLength and fills it with a random
// pattern of cellSize square cells drawn from rnd.
func (s Sizer) Generate(payloadLength int64, cellSize int, rnd io.Reader) (*image.RGBA, error) {
	width, height, err := s.Dimensions(payloadLength)
	if err != nil {
		return nil, err
	}
	img, err := s.allocate(width, height)
	if err != nil {
		return nil, err
	}
	if err := fillCells(img, cellSize, rnd); err != nil {
		return nil, err
	}
	return img, nil
}

func (s Sizer) allocate(width, height int) (img *image.RGBA, err error) {
	need := int64(width) * int64(height) * 4
	if s.MaxImageBytes > 0 && need > s.MaxImageBytes {
		return nil, errors.Wrapf(ErrNotEnoughMemory, "%dx%d needs %s, budget is %s",
			width, height, humanize.IBytes(uint64(need)), humanize.IBytes(uint64(s.MaxImageBytes)))
	}
	defer func() {
		if r := recover(); r != nil {
			if !isAllocPanic(r) {
				panic(r)
			}
			img = nil
			err = errors.Wrapf(ErrNotEnoughMemory, "%dx%d: %v", width, height, r)
		}
	}()
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// isAllocPanic reports whether r came from a failed pixel buffer allocation:
// either the runtime refusing the slice or the image package rejecting
// dimensions whose byte count overflows.
func isAllocPanic(r interface{}) bool {
	switch v := r.(type) {
	case runtime.Error:
		return true
	case string:
		return strings.HasPrefix(v, "image: ")
	}
	return false
}

// fillCells paints each cell with a random base colour and adds random
// noise to the low nibble of every channel.
func fillCells(img *image.RGBA, cellSize int, rnd io.Reader) error {
	if cellSize <= 0 {
		cellSize = spec.DEFAULT_CELL_SIZE
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	cellsX := (width + cellSize - 1) / cellSize

	bases := make([]byte, cellsX*spec.CHANNELS)
	noise := make([]byte, width*spec.CHANNELS)
	for y := 0; y < height; y++ {
		if y%cellSize == 0 {
			if _, err := io.ReadFull(rnd, bases); err != nil {
				return errors.Wrap(err, "reading cell colours")
			}
		}
		if _, err := io.ReadFull(rnd, noise); err != nil {
			return errors.Wrap(err, "reading pixel noise")
		}
		for x := 0; x < width; x++ {
			base := bases[(x/cellSize)*spec.CHANNELS:]
			n := noise[x*spec.CHANNELS:]
			img.SetRGBA(x, y, color.RGBA{
				R: base[0]&0xF0 | n[0]&0x0F,
				G: base[1]&0xF0 | n[1]&0x0F,
				B: base[2]&0xF0 | n[2]&0x0F,
				A: 255,
			})
		}
	}
	return nil
}

// Capacity returns the number of positions img offers, one per pixel.
func Capacity(img image.Image) uint32 {
	b := img.Bounds()
	return uint32(b.Dx() * b.Dy())
}

func roundUp(v, interval int) int {
	if interval <= 1 {
		return v
	}
	return (v + interval - 1) / interval * interval
}
