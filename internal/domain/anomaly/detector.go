// Package anomaly cross-references declared payments with the plan status
// reported by an independent source.
package anomaly

import (
	"fmt"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// PlanState is the canonical plan status after normalization.
type PlanState string

const (
	PlanUnknown     PlanState = ""
	PlanUnderReview PlanState = "under review"
	PlanCancelled   PlanState = "cancelled"
	PlanSuspended   PlanState = "suspended"
	PlanApproved    PlanState = "approved"
)

// upstream portals answer in Portuguese
var synonyms = map[string]PlanState{
	"under review": PlanUnderReview,
	"under_review": PlanUnderReview,
	"em analise":   PlanUnderReview,
	"cancelled":    PlanCancelled,
	"canceled":     PlanCancelled,
	"cancelado":    PlanCancelled,
	"suspended":    PlanSuspended,
	"suspenso":     PlanSuspended,
	"approved":     PlanApproved,
	"aprovado":     PlanApproved,
}

// Normalize maps a raw plan status to a PlanState. Unknown strings keep
// their folded form so they never match a rule.
func Normalize(raw string) PlanState {
	f := amendments.Fold(raw)
	if s, ok := synonyms[f]; ok {
		return s
	}
	return PlanState(f)
}

const (
	fullyPaidPct = 99.0
	earlyPaidPct = 50.0
)

// PercentagePaid is paid/approved*100, zero when approved is zero.
func PercentagePaid(paid, approved float64) float64 {
	if approved <= 0 {
		return 0
	}
	return paid / approved * 100
}

// Detect applies every rule independently and returns all that match.
// An empty plan status yields no anomalies.
func Detect(paid, approved float64, planStatus string) []amendments.Alert {
	if amendments.Fold(planStatus) == "" {
		return nil
	}
	state := Normalize(planStatus)
	pct := PercentagePaid(paid, approved)
	detail := func() amendments.AlertDetail {
		return amendments.AlertDetail{
			PaidAmount:     amendments.FloatPtr(paid),
			PercentagePaid: amendments.FloatPtr(pct),
			PlanStatus:     planStatus,
		}
	}

	var out []amendments.Alert

	if pct >= fullyPaidPct && (state == PlanUnderReview || state == PlanCancelled || state == PlanSuspended) {
		out = append(out, amendments.Alert{
			Kind:     amendments.AlertHighIrregularityRisk,
			Severity: amendments.SeverityHigh,
			Message:  fmt.Sprintf("%.1f%% paid while plan is %q", pct, planStatus),
			Detail:   detail(),
		})
	}

	if state == PlanCancelled && paid > 0 {
		out = append(out, amendments.Alert{
			Kind:     amendments.AlertPlanCancelledWithPayment,
			Severity: amendments.SeverityHigh,
			Message:  fmt.Sprintf("plan cancelled but %.2f was paid", paid),
			Detail:   detail(),
		})
	}

	if state == PlanUnderReview && pct > earlyPaidPct {
		out = append(out, amendments.Alert{
			Kind:     amendments.AlertEarlyPayment,
			Severity: amendments.SeverityMedium,
			Message:  fmt.Sprintf("%.1f%% paid before the plan was approved", pct),
			Detail:   detail(),
		})
	}

	if state == PlanApproved && paid == 0 {
		out = append(out, amendments.Alert{
			Kind:     amendments.AlertPlanApprovedWithoutPayment,
			Severity: amendments.SeverityLow,
			Message:  "plan approved but nothing was disbursed",
			Detail:   detail(),
		})
	}

	return out
}
