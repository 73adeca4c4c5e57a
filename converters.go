package main

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
)

func isHEIC(header []byte) bool {
	// heic files start with a 'ftyp' box after a 4-byte size.
	// [4 bytes size][4 bytes 'ftyp'][brand identifier]
	// https://mp4ra.org/registered-types/brands
	brands := [][]byte{
		[]byte("ftypheic"),
		[]byte("ftypheix"),
		[]byte("ftypmif1"),
	}

	if len(header) < 12 {
		return false
	}
	for _, brand := range brands {
		if bytes.Equal(header[4:12], brand) {
			return true
		}
	}
	return false
}

// decodeImage decodes any supported still image. HEIC goes through goheif;
// everything else (JPEG, PNG, TIFF) through imaging. Takeout sometimes ships
// HEIC data under a .jpg name, so the header decides, not the extension.
func decodeImage(data []byte, ext string) (image.Image, error) {
	if ext == "heic" || isHEIC(data) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("HEIC decoding failed: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decoding failed: %w", err)
	}
	return img, nil
}

// toRGB flattens img into an opaque NRGBA so every source (paletted PNG, CMYK
// JPEG, 16-bit TIFF, YCbCr HEIC) takes the same encode path.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
