package main

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// computeFileHash returns the hex md5 of everything in r. Exports are
// deterministic, so equal hashes across runs mean byte-identical output.
func computeFileHash(r io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return computeFileHash(f)
}
