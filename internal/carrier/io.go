package carrier

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// Save writes img to path, as BMP when the extension is .bmp and PNG
// otherwise. Both are lossless, which the LSB plane requires.
func Save(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create carrier file")
	}

	if isBMP(path) {
		err = bmp.Encode(file, img)
	} else {
		err = png.Encode(file, img)
	}
	if err != nil {
		file.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return errors.Wrap(file.Close(), "closing carrier file")
}

// Load reads a carrier written by Save.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open carrier file")
	}
	defer file.Close()

	var img image.Image
	if isBMP(path) {
		img, err = bmp.Decode(file)
	} else {
		img, err = png.Decode(file)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

func isBMP(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bmp")
}
