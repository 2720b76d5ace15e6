package geofence

import (
	"bytes"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// Evidence is one photo to validate. Provided coordinates win over the
// ones embedded in Image.
type Evidence struct {
	ID       string                  `json:"id"`
	Provided *amendments.Coordinates `json:"location,omitempty"`
	Image    []byte                  `json:"-"`
}

// BatchResult aggregates the verdicts of several photos.
type BatchResult struct {
	Verdicts  []Verdict `json:"verdicts"`
	AllValid  bool      `json:"all_valid"`
	Validated int       `json:"validated"`
	Missing   int       `json:"missing"`
}

// Validator resolves where each photo was taken and where it should have
// been taken, then compares both.
type Validator struct {
	ToleranceKM float64
	Places      *Gazetteer
}

func NewValidator(toleranceKM float64, places *Gazetteer) *Validator {
	if toleranceKM <= 0 {
		toleranceKM = DefaultToleranceKM
	}
	return &Validator{ToleranceKM: toleranceKM, Places: places}
}

// Resolve picks the observed point and records where it came from.
func Resolve(e Evidence) (*amendments.Coordinates, amendments.Provenance) {
	if e.Provided != nil {
		return e.Provided, amendments.ProvenanceProvided
	}
	if len(e.Image) > 0 {
		if c, err := ExtractCoordinates(bytes.NewReader(e.Image)); err == nil {
			return c, amendments.ProvenanceExtracted
		}
	}
	return nil, amendments.ProvenanceNone
}

// Expected returns the administrative location of the recipient. Explicit
// recipient coordinates win over the gazetteer.
func (v *Validator) Expected(a *amendments.Amendment) *amendments.Coordinates {
	if a.Recipient.Location != nil {
		return a.Recipient.Location
	}
	if v.Places == nil {
		return nil
	}
	if c, ok := v.Places.Lookup(a.Recipient.Municipality, a.Recipient.UF); ok {
		return &c
	}
	return nil
}

func (v *Validator) tolerance(override float64) float64 {
	if override > 0 {
		return override
	}
	return v.ToleranceKM
}

// Check validates one photo against expected.
func (v *Validator) Check(e Evidence, expected *amendments.Coordinates, toleranceKM float64) Verdict {
	observed, prov := Resolve(e)
	verdict := Validate(observed, expected, v.tolerance(toleranceKM))
	verdict.Provenance = prov
	return verdict
}

// CheckBatch validates every photo. AllValid is true only when there was at
// least one photo and every photo landed inside.
func (v *Validator) CheckBatch(evidence []Evidence, expected *amendments.Coordinates, toleranceKM float64) BatchResult {
	res := BatchResult{Verdicts: make([]Verdict, 0, len(evidence))}
	all := len(evidence) > 0
	for _, e := range evidence {
		verdict := v.Check(e, expected, toleranceKM)
		res.Verdicts = append(res.Verdicts, verdict)
		switch verdict.Outcome {
		case OutcomeMissingCoordinates:
			res.Missing++
			all = false
		default:
			res.Validated++
			if !verdict.Valid {
				all = false
			}
		}
	}
	res.AllValid = all
	return res
}

// Aggregate derives the amendment-level flag from the photos already on
// record. Photos without a determinate verdict are ignored; nil means no
// photo could be checked.
func Aggregate(photos []amendments.Photo) *bool {
	seen, ok := false, true
	for _, p := range photos {
		if p.Geofence == nil || p.Geofence.Outcome == string(OutcomeMissingCoordinates) {
			continue
		}
		seen = true
		if !p.Geofence.Valid {
			ok = false
		}
	}
	if !seen {
		return nil
	}
	return &ok
}
