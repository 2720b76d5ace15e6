package geofence

import (
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// ExtractCoordinates reads the GPS tags of a JPEG/TIFF image.
func ExtractCoordinates(r io.Reader) (*amendments.Coordinates, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exif: %w", err)
	}
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil, fmt.Errorf("exif without gps position: %w", err)
	}
	c := &amendments.Coordinates{Lat: lat, Lon: lon}
	if !InRange(*c) {
		return nil, fmt.Errorf("exif gps position out of range: %v,%v", lat, lon)
	}
	return c, nil
}
