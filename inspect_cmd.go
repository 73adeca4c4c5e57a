package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/barasher/go-exiftool"
	"github.com/dhowden/tag"
	goexif "github.com/rwcarlsen/goexif/exif"
)

// runInspectCommand prints the tags an export restored, so a run can be
// checked without a separate metadata tool.
func runInspectCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("takeout-restore inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	useExiftool := fs.Bool("exiftool", false, "Read tags with exiftool (must be on PATH)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: inspect needs at least one file")
		return exitUsage
	}

	read := inspectFile
	if *useExiftool {
		et, err := exiftool.NewExiftool()
		if err != nil {
			fmt.Fprintf(stderr, "Error when initializing exiftool: %v\n", err)
			return exitUsage
		}
		defer et.Close()
		read = func(path string) (map[string]string, error) {
			return inspectWithExiftool(et, path)
		}
	}

	code := exitOK
	for _, path := range fs.Args() {
		fields, err := read(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error concerning %s: %v\n", path, err)
			code = exitFailures
			continue
		}
		printFields(stdout, path, fields)
	}
	return code
}

func printFields(w io.Writer, path string, fields map[string]string) {
	fmt.Fprintln(w, path)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(w, "  [%s] %s\n", k, fields[k])
	}
}

// inspectFile reads the restored tags of an exported image or video.
func inspectFile(path string) (map[string]string, error) {
	fields := make(map[string]string)
	if sum, err := fileHash(path); err == nil {
		fields["MD5"] = sum
	}
	if info, err := os.Stat(path); err == nil {
		fields["FileModifyDate"] = info.ModTime().UTC().Format(time.RFC3339)
	}

	var err error
	switch classify(path) {
	case CodecImage:
		err = inspectImage(path, fields)
	case CodecVideo:
		err = inspectVideo(path, fields)
	default:
		err = fmt.Errorf("extension %q is not supported", extensionOf(path))
	}
	return fields, err
}

func inspectImage(path string, fields map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := extensionOf(path)
	if isHEIC(data) {
		ext = "heic"
	}
	block, err := extractExif(data, ext)
	if err != nil {
		return err
	}
	if ext == "tif" || ext == "tiff" {
		block = data
	}
	if block == nil {
		fields["EXIF"] = "none"
		return nil
	}

	x, err := goexif.Decode(bytes.NewReader(block))
	if x == nil || err != nil && goexif.IsCriticalError(err) {
		return fmt.Errorf("decoding EXIF: %w", err)
	}

	for _, name := range []goexif.FieldName{goexif.DateTime, goexif.DateTimeOriginal, goexif.DateTimeDigitized} {
		if t, err := x.Get(name); err == nil {
			if s, err := t.StringVal(); err == nil {
				fields[string(name)] = s
			}
		}
	}
	fields["Orientation"] = strconv.Itoa(readOrientation(block))
	if lat, lng, err := x.LatLong(); err == nil {
		fields["GPSPosition"] = formatLocation(GeoData{Latitude: lat, Longitude: lng})
	}
	return nil
}

// QuickTime and MP4 timestamps count seconds from 1904-01-01 UTC.
var isoBaseMediaEpoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

func inspectVideo(path string, fields map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = mp4.ReadBoxStructure(f, func(h *mp4.ReadHandle) (any, error) {
		if h.BoxInfo.IsSupportedType() && h.BoxInfo.Type.String() != "mdat" {
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading payload from handle: %w", err)
			}
			if b, ok := box.(*mp4.Mvhd); ok {
				if ct := b.GetCreationTime(); ct != 0 {
					created := isoBaseMediaEpoch.Add(time.Duration(ct) * time.Second)
					fields["CreationTime"] = created.Format(creationTimeLayout)
				}
			}
			return h.Expand()
		} else if h.BoxInfo.Context.UnderUdta && h.BoxInfo.Type == [4]byte{'©', 'x', 'y', 'z'} {
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("reading ©xyz box data: %w", err)
			}
			fields["Location"] = parseXYZ(buf.String())
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("reading boxes: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return nil
	} else if err != nil {
		// Box-level fields above are still worth printing.
		fields["TagError"] = err.Error()
		return nil
	}
	if m.Title() != "" {
		fields["Title"] = m.Title()
	}
	if m.Comment() != "" {
		fields["Comment"] = m.Comment()
	}
	if desc, ok := m.Raw()["desc"].(string); ok && desc != "" {
		fields["Description"] = desc
	}
	return nil
}

// parseXYZ drops the size/language prefix QuickTime puts before "+lat+lng/".
func parseXYZ(s string) string {
	if i := strings.IndexAny(s, "+-"); i >= 0 {
		s = s[i:]
	}
	return strings.TrimSuffix(s, "/")
}

func inspectWithExiftool(et *exiftool.Exiftool, path string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, fileInfo := range et.ExtractMetadata(path) {
		if fileInfo.Err != nil {
			return nil, fileInfo.Err
		}
		for k, v := range fileInfo.Fields {
			fields[k] = fmt.Sprint(v)
		}
	}
	return fields, nil
}
