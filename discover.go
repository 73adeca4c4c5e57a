package main

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// MediaItem pairs a sidecar with the media file it describes. MediaPath is
// empty when the locator found nothing.
type MediaItem struct {
	MetadataPath string
	MediaPath    string
}

func (it MediaItem) Resolved() bool { return it.MediaPath != "" }

const (
	sidecarExt          = ".json"
	reservedSidecarStem = "metadata" // album-level metadata.json, not an item
)

// discover walks root depth-first in natural name order and yields one
// MediaItem per item sidecar, resolved or not. The sequence is single-pass;
// directory read errors are yielded and the walk continues with the next entry.
func discover(root, editedWord string, locator MediaLocator) iter.Seq2[MediaItem, error] {
	return func(yield func(MediaItem, error) bool) {
		walkSidecars(root, editedWord, locator, yield)
	}
}

func walkSidecars(dir, editedWord string, locator MediaLocator, yield func(MediaItem, error) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(MediaItem{}, fmt.Errorf("reading directory %s: %w", dir, err))
	}
	sortEntries(entries)

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if !walkSidecars(path, editedWord, locator, yield) {
				return false
			}
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}

		ext := filepath.Ext(e.Name())
		stem := strings.TrimSuffix(e.Name(), ext)
		if ext != sidecarExt || stem == reservedSidecarStem {
			continue
		}

		item := MediaItem{
			MetadataPath: path,
			MediaPath:    locator.Locate(dir, stem, editedWord),
		}
		if !yield(item, nil) {
			return false
		}
	}
	return true
}
