package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatLocation(t *testing.T) {
	testCases := []struct {
		geo  GeoData
		want string
	}{
		{GeoData{1.5, -2.5}, "1.5+-2.5"},
		{GeoData{10, 20}, "10.0+20.0"},
		{GeoData{-33.8688, 151.2093}, "-33.8688+151.2093"},
		{GeoData{0.1, -0.000001}, "0.1+-0.000001"},
	}
	for _, tc := range testCases {
		if got := formatLocation(tc.geo); got != tc.want {
			t.Errorf("formatLocation(%v) = %q, want %q", tc.geo, got, tc.want)
		}
	}
}

func TestVideoTagsArgs(t *testing.T) {
	rec := MetadataRecord{
		PhotoTakenTime: 1600000000,
		Title:          "VID.mov",
		Description:    "beach",
		Geo:            &GeoData{Latitude: 1.5, Longitude: -2.5},
	}

	args := videoTags(rec).metadataArgs()
	want := []string{
		"-metadata", "title=VID.mov",
		"-metadata", "description=beach",
		"-metadata", "creation_time=2020-09-13T12:26:40+00:00",
		"-metadata", "location=1.5+-2.5",
		"-metadata", "location-eng=1.5+-2.5",
	}
	if !slices.Equal(args, want) {
		t.Errorf("Expected %q, got %q", want, args)
	}

	rec.Geo = nil
	for _, a := range videoTags(rec).metadataArgs() {
		if strings.HasPrefix(a, "location") {
			t.Errorf("Location tag without geodata: %s", a)
		}
	}
}

func TestFFmpegArgsStreamCopy(t *testing.T) {
	f := &ffmpegEncoder{binary: "ffmpeg"}
	args := f.args("in.mov", "out.mov", VideoTags{CreationTime: time.Unix(0, 0)})

	if args[len(args)-1] != "out.mov" {
		t.Errorf("Destination must be last, got %q", args)
	}
	i := slices.Index(args, "-c")
	if i < 0 || args[i+1] != "copy" {
		t.Errorf("Expected -c copy, got %q", args)
	}
	if j := slices.Index(args, "-i"); j < 0 || args[j+1] != "in.mov" || j > i {
		t.Errorf("Expected -i in.mov before the codec option, got %q", args)
	}
}

func newTestVideoExporter(t *testing.T, root, out string, enc Encoder) *videoExporter {
	cfg := defaultConfig()
	cfg.Root, cfg.Output = root, out
	return newVideoExporter(cfg, enc, zaptest.NewLogger(t))
}

func TestVideoExport(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	media := filepath.Join(root, "Trip", "VID.MOV")
	writeFile(t, media, []byte("moov"))

	enc := &fakeEncoder{}
	e := newTestVideoExporter(t, root, out, enc)
	rec := MetadataRecord{PhotoTakenTime: 1600000000, Title: "t", Geo: &GeoData{Latitude: 1.5, Longitude: -2.5}}

	dst, err := e.Export(context.Background(), MediaItem{MetadataPath: media + ".json", MediaPath: media}, rec)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if want := filepath.Join(out, "Trip", "VID.MOV"); dst != want {
		t.Errorf("Expected %s, got %s", want, dst)
	}

	if len(enc.calls) != 1 {
		t.Fatalf("Expected one encoder call, got %d", len(enc.calls))
	}
	if got := enc.calls[0].tags.Location; got != "1.5+-2.5" {
		t.Errorf("Expected location 1.5+-2.5, got %q", got)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Failed to stat output: %v", err)
	}
	if info.ModTime().Unix() != 1600000000 {
		t.Errorf("Expected mtime 1600000000, got %d", info.ModTime().Unix())
	}
}

func TestVideoExportEncoderFailure(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	media := filepath.Join(root, "VID.mp4")
	writeFile(t, media, []byte("moov"))

	enc := &fakeEncoder{err: errors.New("exit status 1")}
	e := newTestVideoExporter(t, root, out, enc)

	_, err := e.Export(context.Background(), MediaItem{MetadataPath: media + ".json", MediaPath: media}, MetadataRecord{PhotoTakenTime: 1600000000})
	if kindOf(err) != KindEncoderInvocation {
		t.Fatalf("Expected an encoder invocation error, got %v", err)
	}

	// The partial output still gets its timestamp.
	info, err := os.Stat(filepath.Join(out, "VID.mp4"))
	if err != nil {
		t.Fatalf("Failed to stat partial output: %v", err)
	}
	if info.ModTime().Unix() != 1600000000 {
		t.Errorf("Expected mtime 1600000000, got %d", info.ModTime().Unix())
	}
}

func TestFFmpegEncoderMissingBinary(t *testing.T) {
	f := &ffmpegEncoder{binary: filepath.Join(t.TempDir(), "no-such-ffmpeg"), logger: zaptest.NewLogger(t)}
	err := f.CopyWithTags(context.Background(), "in.mp4", "out.mp4", VideoTags{})
	if err == nil {
		t.Errorf("Expected an error for a missing binary")
	}
}

func TestFFmpegEncoderStreamCopies(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	gen := exec.Command(ffmpeg, "-nostdin", "-y", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=5:duration=1",
		"-c:v", "mpeg4", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg cannot generate a test clip: %v: %s", err, out)
	}

	f := &ffmpegEncoder{binary: ffmpeg, timeout: time.Minute, logger: zaptest.NewLogger(t)}
	dst := filepath.Join(dir, "dst.mp4")
	tags := videoTags(MetadataRecord{PhotoTakenTime: 1600000000, Title: "t", Description: "d", Geo: &GeoData{Latitude: 1.5, Longitude: -2.5}})
	if err := f.CopyWithTags(context.Background(), src, dst, tags); err != nil {
		t.Fatalf("CopyWithTags failed: %v", err)
	}

	fields := make(map[string]string)
	if err := inspectVideo(dst, fields); err != nil {
		t.Fatalf("inspectVideo failed: %v", err)
	}
	switch ct := fields["CreationTime"]; ct {
	case "2020-09-13T12:26:40+00:00":
	case "":
		t.Logf("This ffmpeg build did not parse the creation_time offset")
	default:
		t.Errorf("Expected creation time 2020-09-13T12:26:40+00:00, got %q", ct)
	}
	if !strings.HasPrefix(fields["Location"], "+1.5") {
		t.Logf("Location box: %q", fields["Location"])
	}
}

func TestVideoExportTimestampFailureIsWarning(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	media := filepath.Join(root, "VID.mp4")
	writeFile(t, media, []byte("moov"))

	core, logs := observer.New(zapcore.WarnLevel)
	cfg := defaultConfig()
	cfg.Root, cfg.Output = root, out
	e := newVideoExporter(cfg, &fakeEncoder{}, zap.New(core))
	e.restoreTime = func(string, int64) error { return errors.New("read-only file system") }

	if _, err := e.Export(context.Background(), MediaItem{MetadataPath: media + ".json", MediaPath: media}, MetadataRecord{PhotoTakenTime: 1}); err != nil {
		t.Fatalf("Export should not fail on a timestamp error: %v", err)
	}
	if n := logs.FilterField(zap.String("kind", string(KindTimestampRestore))).Len(); n != 1 {
		t.Errorf("Expected one timestamp_restore warning, got %v", logs.All())
	}
}
