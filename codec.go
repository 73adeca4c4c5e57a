package main

import (
	"path/filepath"
	"strings"
)

// Codec is the export path a media file takes, derived from its extension only.
type Codec int

const (
	CodecUnsupported Codec = iota
	CodecImage
	CodecVideo
)

func (c Codec) String() string {
	switch c {
	case CodecImage:
		return "image"
	case CodecVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// codecs is consulted both for dispatch and for the output extension.
var codecs = map[string]Codec{
	"tif":  CodecImage,
	"tiff": CodecImage,
	"jpeg": CodecImage,
	"jpg":  CodecImage,
	"heic": CodecImage,
	"png":  CodecImage,
	"mp4":  CodecVideo,
	"mov":  CodecVideo,
}

// classify maps a path to its codec. The comparison is case-insensitive and
// never looks at file content.
func classify(path string) Codec {
	return codecs[extensionOf(path)]
}

// extensionOf returns the lower-cased extension of path without the leading dot.
func extensionOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
