package ocr

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// minWidth is the width small photos are upscaled to; Tesseract misreads
// glyphs shorter than about 20 pixels.
const minWidth = 1600

// Preprocess prepares a sign photo for recognition: it applies EXIF
// orientation, converts to grayscale, upscales small images, raises contrast
// and sharpens. The result is PNG encoded.
func Preprocess(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}

	gray := imaging.Grayscale(img)
	if gray.Bounds().Dx() < minWidth {
		gray = imaging.Resize(gray, minWidth, 0, imaging.Lanczos)
	}
	gray = imaging.AdjustContrast(gray, 30)
	gray = imaging.Sharpen(gray, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}
	return buf.Bytes(), nil
}
