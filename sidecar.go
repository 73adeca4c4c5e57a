package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/golang/geo/s2"
)

// GeoData is a capture location in signed decimal degrees.
type GeoData struct {
	Latitude  float64
	Longitude float64
}

// MetadataRecord is the subset of a sidecar the exporters consume.
type MetadataRecord struct {
	PhotoTakenTime int64 // seconds since the Unix epoch
	Title          string
	Description    string
	Geo            *GeoData // nil when the sidecar has no usable location
}

// CaptureTime returns PhotoTakenTime in UTC.
func (m MetadataRecord) CaptureTime() time.Time {
	return time.Unix(m.PhotoTakenTime, 0).UTC()
}

var errNoTimestamp = errors.New("photoTakenTime.timestamp is missing")

// sidecarFile is the on-disk shape. Only photoTakenTime.timestamp is required.
type sidecarFile struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PhotoTakenTime *struct {
		Timestamp *epochSeconds `json:"timestamp"`
	} `json:"photoTakenTime"`
	GeoData *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"geoData"`
}

// epochSeconds accepts both "1600000000" and 1600000000.
type epochSeconds int64

func (e *epochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q is not an integer", b)
	}
	*e = epochSeconds(v)
	return nil
}

// parseSidecar decodes one sidecar document into a MetadataRecord.
func parseSidecar(r io.Reader) (MetadataRecord, error) {
	var raw sidecarFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return MetadataRecord{}, fmt.Errorf("decoding sidecar: %w", err)
	}
	if raw.PhotoTakenTime == nil || raw.PhotoTakenTime.Timestamp == nil {
		return MetadataRecord{}, errNoTimestamp
	}

	rec := MetadataRecord{
		PhotoTakenTime: int64(*raw.PhotoTakenTime.Timestamp),
		Title:          raw.Title,
		Description:    raw.Description,
	}

	// Google writes 0,0 when it has no location, so that is treated as absent,
	// and so are coordinates that are not on the globe.
	if g := raw.GeoData; g != nil && (g.Latitude != 0 || g.Longitude != 0) {
		if s2.LatLngFromDegrees(g.Latitude, g.Longitude).IsValid() {
			rec.Geo = &GeoData{Latitude: g.Latitude, Longitude: g.Longitude}
		}
	}

	return rec, nil
}

// readSidecar opens and parses the sidecar at path.
func readSidecar(path string) (MetadataRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return MetadataRecord{}, err
	}
	defer f.Close()

	rec, err := parseSidecar(f)
	if err != nil {
		return MetadataRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
