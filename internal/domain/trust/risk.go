package trust

import (
	"math"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const (
	shortfallThreshold  = 0.5
	stalledExecutionPct = 20.0
	stalledAfterDays    = 180
)

// DeviationRisk is an additive estimate in [0,1] that the money is not
// reaching its declared purpose.
func DeviationRisk(a *amendments.Amendment, now time.Time) float64 {
	risk := 0.0

	if a.Financials.Approved > 0 {
		shortfall := (a.Financials.Approved - a.Financials.Paid) / a.Financials.Approved
		if shortfall > shortfallThreshold {
			risk += 0.3
		}
	}

	if a.IsLate(now) {
		risk += 0.3
	}

	if !a.HasNews && len(a.Documents) == 0 {
		risk += 0.2
	}

	if a.ExecutionPercentage() < stalledExecutionPct && a.DaysSinceStart(now) > stalledAfterDays {
		risk += 0.2
	}

	return math.Min(round(risk, 4), 1.0)
}

// Transparency counts the public information available, 0.2 per item.
func Transparency(a *amendments.Amendment, planKnown bool) float64 {
	score := 0.0
	for _, present := range []bool{
		a.Objective != "",
		a.Detail != "",
		planKnown,
		a.HasNews,
		len(a.Documents) > 0,
	} {
		if present {
			score += 0.2
		}
	}
	return round(score, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
