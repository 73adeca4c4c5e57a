//go:build !windows

package main

import "time"

// Unix filesystems expose no settable birth time; Chtimes is all there is.
func setBirthTime(string, time.Time) error { return nil }
