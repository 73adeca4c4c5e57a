package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// testImage is w x h with the top half red and the bottom half blue, so a
// rotation can be told apart from a flip.
func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if y >= h/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// jpegWithOrientation returns an encoded JPEG. orientation 0 means no EXIF at all.
func jpegWithOrientation(t *testing.T, w, h, orientation int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("Failed to encode test JPEG: %v", err)
	}
	if orientation == 0 {
		return buf.Bytes()
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		t.Fatalf("Failed to create IFD mapping: %v", err)
	}
	ib := exif.NewIfdBuilder(im, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := ib.SetStandardWithName("Orientation", []uint16{uint16(orientation)}); err != nil {
		t.Fatalf("Failed to set orientation: %v", err)
	}
	if err := ib.SetStandardWithName("Make", "TestCam"); err != nil {
		t.Fatalf("Failed to set make: %v", err)
	}
	block, err := exif.NewIfdByteEncoder().EncodeToExif(ib)
	if err != nil {
		t.Fatalf("Failed to encode EXIF: %v", err)
	}

	data, err := embedExif(buf.Bytes(), block)
	if err != nil {
		t.Fatalf("Failed to embed EXIF: %v", err)
	}
	return data
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("Failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	writeFile(t, path, []byte("x"))
}

func decodeConfig(t *testing.T, path string) image.Config {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return cfg
}

// recordingObserver keeps every event for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	started   []MediaItem
	succeeded []MediaItem
	failed    map[string]ErrorKind // metadata path -> kind
	done      []BatchResult
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{failed: make(map[string]ErrorKind)}
}

func (o *recordingObserver) ItemStarted(item MediaItem) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, item)
}

func (o *recordingObserver) ItemSucceeded(item MediaItem, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded = append(o.succeeded, item)
}

func (o *recordingObserver) ItemFailed(item MediaItem, kind ErrorKind, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[item.MetadataPath] = kind
}

func (o *recordingObserver) BatchDone(result BatchResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, result)
}

type encoderCall struct {
	src, dst string
	tags     VideoTags
}

// fakeEncoder copies src to dst and records what it was asked to do.
type fakeEncoder struct {
	mu    sync.Mutex
	calls []encoderCall
	err   error
}

func (f *fakeEncoder) CopyWithTags(_ context.Context, src, dst string, tags VideoTags) error {
	f.mu.Lock()
	f.calls = append(f.calls, encoderCall{src: src, dst: dst, tags: tags})
	f.mu.Unlock()

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return err
	}
	return f.err
}
