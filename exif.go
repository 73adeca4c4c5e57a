package main

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	"github.com/jdeng/goheif"
	goexif "github.com/rwcarlsen/goexif/exif"
)

const (
	exifIfdPath = "IFD/Exif"
	gpsIfdPath  = "IFD/GPSInfo"
)

// extractExif returns the EXIF block (starting at the TIFF header) embedded in
// an encoded image of the given extension, or nil if it has none.
func extractExif(data []byte, ext string) ([]byte, error) {
	switch ext {
	case "jpg", "jpeg":
		return exifFromJpeg(data)
	case "png":
		return exifFromPng(data)
	case "heic":
		return exifFromHeic(data)
	}
	// TIFF tags are the file itself; there is no separate block to carry over.
	return nil, nil
}

func exifFromJpeg(data []byte) ([]byte, error) {
	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JPEG segments: %w", err)
	}

	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, nil
	}

	_, raw, err := sl.Exif()
	if errors.Is(err, exif.ErrNoExif) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading JPEG EXIF: %w", err)
	}
	return raw, nil
}

func exifFromPng(data []byte) ([]byte, error) {
	intfc, err := pngstructure.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing PNG chunks: %w", err)
	}

	cs, ok := intfc.(*pngstructure.ChunkSlice)
	if !ok {
		return nil, nil
	}

	_, raw, err := cs.Exif()
	if errors.Is(err, exif.ErrNoExif) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading PNG eXIf chunk: %w", err)
	}
	return raw, nil
}

func exifFromHeic(data []byte) ([]byte, error) {
	item, err := goheif.ExtractExif(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading HEIC EXIF item: %w", err)
	}

	// The item starts with an offset and the "Exif\0\0" marker.
	raw, err := exif.SearchAndExtractExif(item)
	if errors.Is(err, exif.ErrNoExif) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return raw, nil
}

// readOrientation returns the EXIF orientation stored in a raw EXIF block or a
// TIFF file, defaulting to 1 (upright).
func readOrientation(raw []byte) int {
	if len(raw) == 0 {
		return 1
	}

	x, err := goexif.Decode(bytes.NewReader(raw))
	if x == nil || err != nil && goexif.IsCriticalError(err) {
		return 1
	}

	tag, err := x.Get(goexif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// mergeExif writes the capture time and location of rec into an existing EXIF
// block and returns the re-encoded block. Orientation is reset to 1 because the
// pixels have already been rotated upright.
func mergeExif(raw []byte, rec MetadataRecord) ([]byte, error) {
	rootIb, err := builderFromBlock(raw)
	if err != nil {
		return nil, err
	}

	ts := exifcommon.ExifFullTimestampString(rec.CaptureTime())
	if err := rootIb.SetStandardWithName("DateTime", ts); err != nil {
		return nil, fmt.Errorf("setting DateTime: %w", err)
	}
	if err := rootIb.SetStandardWithName("Orientation", []uint16{1}); err != nil {
		return nil, fmt.Errorf("setting Orientation: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", exifIfdPath, err)
	}
	for _, name := range []string{"DateTimeOriginal", "DateTimeDigitized"} {
		if err := exifIb.SetStandardWithName(name, ts); err != nil {
			return nil, fmt.Errorf("setting %s: %w", name, err)
		}
	}

	if rec.Geo != nil {
		if err := setGPS(rootIb, *rec.Geo); err != nil {
			return nil, err
		}
	}

	block, err := exif.NewIfdByteEncoder().EncodeToExif(rootIb)
	if err != nil {
		return nil, fmt.Errorf("encoding EXIF: %w", err)
	}
	return block, nil
}

func setGPS(rootIb *exif.IfdBuilder, geo GeoData) error {
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, gpsIfdPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", gpsIfdPath, err)
	}

	latRef, lngRef := "N", "E"
	if geo.Latitude < 0 {
		latRef = "S"
	}
	if geo.Longitude < 0 {
		lngRef = "W"
	}

	tags := []struct {
		name  string
		value interface{}
	}{
		{"GPSVersionID", []byte{2, 2, 0, 0}},
		{"GPSLatitudeRef", latRef},
		{"GPSLatitude", degreesToRationals(geo.Latitude)},
		{"GPSLongitudeRef", lngRef},
		{"GPSLongitude", degreesToRationals(geo.Longitude)},
	}
	for _, t := range tags {
		if err := gpsIb.SetStandardWithName(t.name, t.value); err != nil {
			return fmt.Errorf("setting %s: %w", t.name, err)
		}
	}
	return nil
}

// Seconds are stored in units of 1/secondsDenominator.
const secondsDenominator = 10000

// degreesToRationals converts decimal degrees to the EXIF degrees/minutes/seconds
// triple. The sign is carried by the matching Ref tag. Rounding happens once on
// the total, so seconds stay below 60 and minutes below 60.
func degreesToRationals(v float64) []exifcommon.Rational {
	const perMinute = 60 * secondsDenominator
	const perDegree = 60 * perMinute

	total := int64(math.Round(math.Abs(v) * perDegree))
	deg, rest := total/perDegree, total%perDegree
	mins, sec := rest/perMinute, rest%perMinute

	return []exifcommon.Rational{
		{Numerator: uint32(deg), Denominator: 1},
		{Numerator: uint32(mins), Denominator: 1},
		{Numerator: uint32(sec), Denominator: secondsDenominator},
	}
}

// embedExif replaces (or inserts) the APP1 EXIF segment of an encoded JPEG.
func embedExif(jpegData, block []byte) ([]byte, error) {
	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(jpegData)
	if err != nil {
		return nil, fmt.Errorf("parsing encoded JPEG: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("encoded JPEG has no segment list")
	}

	ib, err := builderFromBlock(block)
	if err != nil {
		return nil, err
	}
	if err := sl.SetExif(ib); err != nil {
		return nil, fmt.Errorf("setting EXIF segment: %w", err)
	}

	var b bytes.Buffer
	if err := sl.Write(&b); err != nil {
		return nil, fmt.Errorf("failed to write modified JPEG: %w", err)
	}
	return b.Bytes(), nil
}

func builderFromBlock(raw []byte) (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, raw)
	if err != nil {
		return nil, fmt.Errorf("collecting EXIF IFDs: %w", err)
	}
	return exif.NewIfdBuilderFromExistingChain(index.RootIfd), nil
}
