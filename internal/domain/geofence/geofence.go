// Package geofence checks that photo evidence was taken near the place the
// money was sent to.
package geofence

import (
	"errors"
	"math"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const (
	// EarthRadiusKM is the mean Earth radius used by Distance.
	EarthRadiusKM = 6371.0

	DefaultToleranceKM = 10.0
)

// ErrMissingCoordinates is returned by Verdict.Err when either side had no
// location. It is not the same as being out of range.
var ErrMissingCoordinates = errors.New("cannot validate: missing coordinates")

// Outcome enum
type Outcome string

const (
	OutcomeInside             Outcome = "inside"
	OutcomeOutside            Outcome = "outside"
	OutcomeMissingCoordinates Outcome = "missing_coordinates"
)

type Verdict struct {
	Outcome     Outcome                 `json:"outcome"`
	Valid       bool                    `json:"valid"`
	DistanceKM  float64                 `json:"distance_km"`
	ToleranceKM float64                 `json:"tolerance_km"`
	Provenance  amendments.Provenance   `json:"provenance"`
	Observed    *amendments.Coordinates `json:"observed,omitempty"`
	Expected    *amendments.Coordinates `json:"expected,omitempty"`
}

// Err is nil for a determinate verdict, inside or outside.
func (v Verdict) Err() error {
	if v.Outcome == OutcomeMissingCoordinates {
		return ErrMissingCoordinates
	}
	return nil
}

// Check converts the verdict into the form stored with a photo.
func (v Verdict) Check() amendments.GeofenceCheck {
	return amendments.GeofenceCheck{
		Outcome:     string(v.Outcome),
		Valid:       v.Valid,
		DistanceKM:  v.DistanceKM,
		ToleranceKM: v.ToleranceKM,
	}
}

// Distance is the great-circle (Haversine) distance in kilometres.
func Distance(a, b amendments.Coordinates) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c
}

// Validate compares an observed point with the expected one. A tolerance of
// zero or less falls back to DefaultToleranceKM.
func Validate(observed, expected *amendments.Coordinates, toleranceKM float64) Verdict {
	if toleranceKM <= 0 {
		toleranceKM = DefaultToleranceKM
	}
	v := Verdict{
		ToleranceKM: toleranceKM,
		Observed:    observed,
		Expected:    expected,
		Provenance:  amendments.ProvenanceNone,
	}
	if observed == nil || expected == nil {
		v.Outcome = OutcomeMissingCoordinates
		return v
	}

	d := Distance(*observed, *expected)
	v.DistanceKM = round2(d)
	v.Valid = d <= toleranceKM
	if v.Valid {
		v.Outcome = OutcomeInside
	} else {
		v.Outcome = OutcomeOutside
	}
	return v
}

// InRange reports whether c is a legal latitude/longitude pair.
func InRange(c amendments.Coordinates) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
