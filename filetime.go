package main

import (
	"fmt"
	"os"
	"time"
)

// setCreationTime sets the access, modification and (where the platform has
// one) creation time of path to epoch seconds.
func setCreationTime(path string, epoch int64) error {
	t := time.Unix(epoch, 0)
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("setting times on %s: %w", path, err)
	}
	if err := setBirthTime(path, t); err != nil {
		return fmt.Errorf("setting creation time on %s: %w", path, err)
	}
	return nil
}
