// Package trust reduces an amendment to one bounded score.
package trust

import (
	"fmt"
	"math"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const (
	WeightExecution     = 0.30
	WeightTimeliness    = 0.20
	WeightDocumentation = 0.20
	WeightRisk          = 0.20
	WeightHistory       = 0.10

	// DefaultRiskScore is used when deviation risk was never computed.
	DefaultRiskScore = 80.0
)

const (
	FactorExecution     = "execution"
	FactorTimeliness    = "timeliness"
	FactorDocumentation = "documentation"
	FactorRisk          = "deviation_risk"
	FactorHistory       = "status_history"
)

// Score computes the composite trust score at now.
func Score(a *amendments.Amendment, now time.Time) amendments.TrustScore {
	exec := a.ExecutionPercentage()
	late := a.IsLate(now)

	factors := []amendments.Factor{
		{
			Name:   FactorExecution,
			Score:  ExecutionScore(exec),
			Weight: WeightExecution,
			Detail: fmt.Sprintf("executed %.1f%%", exec),
		},
		{
			Name:   FactorTimeliness,
			Score:  TimelinessScore(late, exec),
			Weight: WeightTimeliness,
			Detail: timelinessDetail(a, now),
		},
		{
			Name:   FactorDocumentation,
			Score:  DocumentationScore(len(a.Documents)),
			Weight: WeightDocumentation,
			Detail: fmt.Sprintf("%d documents", len(a.Documents)),
		},
		riskFactor(a.DeviationRisk),
		{
			Name:   FactorHistory,
			Score:  HistoryScore(a.EffectiveStatus(now)),
			Weight: WeightHistory,
			Detail: fmt.Sprintf("status %s", a.EffectiveStatus(now)),
		},
	}

	res := amendments.TrustScore{Score: 100}
	for i := range factors {
		f := &factors[i]
		f.Contribution = round(f.Score*f.Weight, 2)
		res.Score -= (100 - f.Score) * f.Weight
		if f.Defaulted {
			res.PartialData = true
			res.MissingInputs = append(res.MissingInputs, f.Name)
		}
	}
	res.Score = round(math.Max(0, math.Min(100, res.Score)), 2)
	res.Level = LevelFor(res.Score)
	res.Factors = factors
	res.Recommendations = Recommendations(res.Score, factors)
	return res
}

// ExecutionScore rewards money that actually left the treasury.
func ExecutionScore(pct float64) float64 {
	switch {
	case pct >= 100:
		return 100
	case pct >= 80:
		return 90
	case pct >= 50:
		return 70
	case pct >= 20:
		return 50
	}
	return 30
}

func TimelinessScore(late bool, pct float64) float64 {
	if !late {
		return 100
	}
	switch {
	case pct < 50:
		return 30
	case pct < 80:
		return 60
	}
	return 80
}

func DocumentationScore(docs int) float64 {
	switch {
	case docs >= 5:
		return 100
	case docs >= 3:
		return 80
	case docs >= 2:
		return 60
	case docs >= 1:
		return 40
	}
	return 0
}

func HistoryScore(s amendments.Status) float64 {
	switch s {
	case amendments.StatusCompleted:
		return 100
	case amendments.StatusExecuting:
		return 80
	case amendments.StatusPending:
		return 60
	case amendments.StatusLate:
		return 40
	case amendments.StatusCancelled:
		return 0
	}
	return 50
}

// LevelFor maps a score to its tier.
func LevelFor(score float64) amendments.TrustLevel {
	switch {
	case score >= 80:
		return amendments.LevelExcellent
	case score >= 60:
		return amendments.LevelGood
	case score >= 40:
		return amendments.LevelFair
	case score >= 20:
		return amendments.LevelPoor
	}
	return amendments.LevelCritical
}

func riskFactor(risk *float64) amendments.Factor {
	f := amendments.Factor{Name: FactorRisk, Weight: WeightRisk}
	if risk == nil {
		f.Score = DefaultRiskScore
		f.Defaulted = true
		f.Detail = "deviation risk not computed"
		return f
	}
	r := math.Max(0, math.Min(1, *risk))
	f.Score = round((1-r)*100, 2)
	switch {
	case r >= 0.7:
		f.Detail = fmt.Sprintf("high deviation risk (%.0f%%)", r*100)
	case r >= 0.4:
		f.Detail = fmt.Sprintf("moderate deviation risk (%.0f%%)", r*100)
	default:
		f.Detail = fmt.Sprintf("low deviation risk (%.0f%%)", r*100)
	}
	return f
}

func timelinessDetail(a *amendments.Amendment, now time.Time) string {
	switch {
	case a.PlannedCompletion == nil:
		return "no planned completion date"
	case a.IsLate(now):
		return fmt.Sprintf("%d days late", a.DaysLate(now))
	}
	return "on schedule"
}

// Recommendations lists what would raise the score, worst first.
func Recommendations(score float64, factors []amendments.Factor) []string {
	var out []string
	if score < 50 {
		out = append(out, "critical: amendment needs an immediate audit")
	}
	for _, f := range factors {
		if f.Score >= 50 {
			continue
		}
		switch f.Name {
		case FactorExecution:
			out = append(out, "low execution: follow up on pending disbursements")
		case FactorTimeliness:
			out = append(out, "behind schedule: request an updated timeline from the recipient")
		case FactorDocumentation:
			out = append(out, "missing documentation: request invoices, contracts and progress reports")
		case FactorRisk:
			out = append(out, "high deviation risk: cross-check payments against physical evidence")
		case FactorHistory:
			out = append(out, "status history is unfavourable: review cancellation or delays")
		}
	}
	if len(out) == 0 {
		out = append(out, "amendment shows good integrity indicators")
	}
	return out
}
