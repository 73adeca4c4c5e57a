package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// outputPath mirrors mediaPath from root into outRoot. Images are always
// re-emitted as .jpg; everything else keeps its extension.
func outputPath(root, outRoot, mediaPath string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Dir(mediaPath))
	if err != nil {
		return "", fmt.Errorf("relating %s to %s: %w", mediaPath, root, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media file %s is outside of %s", mediaPath, root)
	}

	name := filepath.Base(mediaPath)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if classify(mediaPath) == CodecImage {
		ext = ".jpg"
	}

	return filepath.Join(outRoot, rel, stem+ext), nil
}

// ensureParentDir creates every missing directory above path. Concurrent
// callers sharing ancestors are fine: MkdirAll tolerates existing directories.
func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
