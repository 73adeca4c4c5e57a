package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// VideoTags are the container metadata tags written into an exported video.
type VideoTags struct {
	Title        string
	Description  string
	CreationTime time.Time
	Location     string // "<lat>+<lng>", empty without geodata
}

const creationTimeLayout = "2006-01-02T15:04:05-07:00"

func videoTags(rec MetadataRecord) VideoTags {
	tags := VideoTags{
		Title:        rec.Title,
		Description:  rec.Description,
		CreationTime: rec.CaptureTime(),
	}
	if rec.Geo != nil {
		tags.Location = formatLocation(*rec.Geo)
	}
	return tags
}

// formatLocation joins latitude and longitude with '+' whatever their sign,
// so a negative longitude reads "1.5+-2.5".
func formatLocation(g GeoData) string {
	return formatCoordinate(g.Latitude) + "+" + formatCoordinate(g.Longitude)
}

// formatCoordinate prints the shortest exact decimal, keeping ".0" on whole numbers.
func formatCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// metadataArgs renders tags as repeated "-metadata key=value" arguments.
func (t VideoTags) metadataArgs() []string {
	pairs := []string{
		"title=" + t.Title,
		"description=" + t.Description,
		"creation_time=" + t.CreationTime.UTC().Format(creationTimeLayout),
	}
	if t.Location != "" {
		pairs = append(pairs, "location="+t.Location, "location-eng="+t.Location)
	}

	args := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		args = append(args, "-metadata", p)
	}
	return args
}

// Encoder stream-copies a video into dst while attaching tags.
type Encoder interface {
	CopyWithTags(ctx context.Context, src, dst string, tags VideoTags) error
}

// ffmpegEncoder shells out to an ffmpeg binary.
type ffmpegEncoder struct {
	binary  string
	timeout time.Duration // 0 means no limit
	logger  *zap.Logger
}

func newFFmpegEncoder(cfg Config, logger *zap.Logger) *ffmpegEncoder {
	return &ffmpegEncoder{
		binary:  cfg.FFmpeg,
		timeout: cfg.encoderTimeout,
		logger:  logger.Named("ffmpeg"),
	}
}

func (f *ffmpegEncoder) args(src, dst string, tags VideoTags) []string {
	args := []string{"-nostdin", "-y", "-loglevel", "error", "-i", src}
	args = append(args, tags.metadataArgs()...)
	return append(args, "-c", "copy", dst)
}

func (f *ffmpegEncoder) CopyWithTags(ctx context.Context, src, dst string, tags VideoTags) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := f.args(src, dst, tags)
	f.logger.Debug("running encoder", zap.String("binary", f.binary), zap.Strings("args", args))

	out, err := exec.CommandContext(ctx, f.binary, args...).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", f.binary, ctx.Err())
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", f.binary, err)
		}
		return fmt.Errorf("%s: %w: %s", f.binary, err, msg)
	}
	return nil
}

// videoExporter re-muxes videos through an Encoder without re-encoding.
type videoExporter struct {
	root        string
	outRoot     string
	encoder     Encoder
	restoreTime func(path string, epoch int64) error
	logger      *zap.Logger
}

func newVideoExporter(cfg Config, encoder Encoder, logger *zap.Logger) *videoExporter {
	return &videoExporter{
		root:        cfg.Root,
		outRoot:     cfg.Output,
		encoder:     encoder,
		restoreTime: setCreationTime,
		logger:      logger.Named("video"),
	}
}

func (e *videoExporter) Export(ctx context.Context, item MediaItem, rec MetadataRecord) (string, error) {
	log := e.logger.With(zap.String("media_path", item.MediaPath))

	dst, err := outputPath(e.root, e.outRoot, item.MediaPath)
	if err != nil {
		return "", newItemError(KindEncoderInvocation, item, err)
	}
	if err := ensureParentDir(dst); err != nil {
		return "", newItemError(KindEncoderInvocation, item, err)
	}

	encErr := e.encoder.CopyWithTags(ctx, item.MediaPath, dst, videoTags(rec))

	// The timestamp is restored on whatever the encoder left behind, even after
	// a failure.
	if _, err := os.Stat(dst); err == nil {
		if err := e.restoreTime(dst, rec.PhotoTakenTime); err != nil {
			log.Warn("could not restore file timestamp",
				zap.String("output_path", dst),
				zap.String("kind", string(KindTimestampRestore)),
				zap.Error(err))
		}
	}

	if encErr != nil {
		return "", newItemError(KindEncoderInvocation, item, encErr)
	}

	log.Debug("video exported", zap.String("output_path", dst))
	return dst, nil
}
