package main

import (
	"errors"
	"fmt"
)

// ErrorKind names why an item failed.
type ErrorKind string

const (
	KindUnresolvedMedia   ErrorKind = "unresolved_media"
	KindUnsupportedCodec  ErrorKind = "unsupported_codec"
	KindMetadataParse     ErrorKind = "metadata_parse"
	KindDecode            ErrorKind = "decode"
	KindEncode            ErrorKind = "encode"
	KindEncoderInvocation ErrorKind = "encoder_invocation"
	KindTimestampRestore  ErrorKind = "timestamp_restore"
	KindOutputConflict    ErrorKind = "output_conflict"
	kindUnknown           ErrorKind = "unknown"
)

// ItemError is a failure scoped to a single sidecar/media pair.
type ItemError struct {
	Kind         ErrorKind
	MetadataPath string
	MediaPath    string
	Err          error
}

func (e *ItemError) Error() string {
	path := e.MediaPath
	if path == "" {
		path = e.MetadataPath
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, path, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

func newItemError(kind ErrorKind, item MediaItem, err error) *ItemError {
	return &ItemError{
		Kind:         kind,
		MetadataPath: item.MetadataPath,
		MediaPath:    item.MediaPath,
		Err:          err,
	}
}

// kindOf reports the ErrorKind carried by err, if any.
func kindOf(err error) ErrorKind {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return kindUnknown
}
