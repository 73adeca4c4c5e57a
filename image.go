package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// imageExporter re-encodes still images as upright JPEGs carrying the
// sidecar's capture time and location.
type imageExporter struct {
	root         string
	outRoot      string
	quality      int
	maxDimension int // 0 disables downsampling
	restoreTime  func(path string, epoch int64) error
	logger       *zap.Logger
}

func newImageExporter(cfg Config, logger *zap.Logger) *imageExporter {
	return &imageExporter{
		root:         cfg.Root,
		outRoot:      cfg.Output,
		quality:      cfg.Quality,
		maxDimension: cfg.MaxDimension,
		restoreTime:  setCreationTime,
		logger:       logger.Named("image"),
	}
}

func (e *imageExporter) Export(ctx context.Context, item MediaItem, rec MetadataRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log := e.logger.With(zap.String("media_path", item.MediaPath))

	data, err := os.ReadFile(item.MediaPath)
	if err != nil {
		return "", newItemError(KindDecode, item, err)
	}

	ext := extensionOf(item.MediaPath)
	if isHEIC(data) {
		ext = "heic"
	}

	src, err := decodeImage(data, ext)
	if err != nil {
		return "", newItemError(KindDecode, item, err)
	}
	img := toRGB(src)

	block, err := extractExif(data, ext)
	if err != nil {
		log.Debug("ignoring unreadable EXIF", zap.Error(err))
		block = nil
	}

	orientationSource := block
	if ext == "tif" || ext == "tiff" {
		orientationSource = data
	}
	orientation := readOrientation(orientationSource)
	img = normalizeOrientation(img, orientation)

	var out image.Image = img
	if e.maxDimension > 0 {
		out = resize.Thumbnail(uint(e.maxDimension), uint(e.maxDimension), img, resize.Lanczos3)
	}

	dst, err := outputPath(e.root, e.outRoot, item.MediaPath)
	if err != nil {
		return "", newItemError(KindEncode, item, err)
	}
	if err := ensureParentDir(dst); err != nil {
		return "", newItemError(KindEncode, item, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
		return "", newItemError(KindEncode, item, fmt.Errorf("JPEG encoding failed: %w", err))
	}
	encoded := buf.Bytes()

	if block != nil {
		merged, err := mergeExif(block, rec)
		if err != nil {
			return "", newItemError(KindEncode, item, err)
		}
		encoded, err = embedExif(encoded, merged)
		if err != nil {
			return "", newItemError(KindEncode, item, err)
		}
	}

	if err := os.WriteFile(dst, encoded, 0644); err != nil {
		return "", newItemError(KindEncode, item, err)
	}

	if err := e.restoreTime(dst, rec.PhotoTakenTime); err != nil {
		log.Warn("could not restore file timestamp",
			zap.String("output_path", dst),
			zap.String("kind", string(KindTimestampRestore)),
			zap.Error(err))
	}

	log.Debug("image exported",
		zap.String("output_path", dst),
		zap.Int("orientation", orientation),
		zap.Bool("exif", block != nil))
	return dst, nil
}

// normalizeOrientation rotates pixels so that orientation 1 describes them.
// imaging rotates counter-clockwise. Mirrored orientations are left alone.
func normalizeOrientation(img *image.NRGBA, orientation int) *image.NRGBA {
	switch orientation {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
