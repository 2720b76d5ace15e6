package amendments

import "sort"

// Severity enum
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities, higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AlertKind is a closed set of alert tags.
type AlertKind string

const (
	AlertLate                       AlertKind = "late"
	AlertLowExecution               AlertKind = "low_execution"
	AlertHighDeviationRisk          AlertKind = "high_deviation_risk"
	AlertHighIrregularityRisk       AlertKind = "high_irregularity_risk"
	AlertPlanCancelledWithPayment   AlertKind = "plan_cancelled_with_payment"
	AlertEarlyPayment               AlertKind = "early_payment"
	AlertPlanApprovedWithoutPayment AlertKind = "plan_approved_without_payment"
	AlertRecipientSanctioned        AlertKind = "recipient_sanctioned"
)

// AlertDetail carries the typed evidence for an alert. Only the fields
// relevant to the kind are set.
type AlertDetail struct {
	DaysLate       *int     `json:"days_late,omitempty"`
	DaysElapsed    *int     `json:"days_elapsed,omitempty"`
	Execution      *float64 `json:"execution_percentage,omitempty"`
	Risk           *float64 `json:"risk,omitempty"`
	PaidAmount     *float64 `json:"paid_amount,omitempty"`
	PercentagePaid *float64 `json:"percentage_paid,omitempty"`
	PlanStatus     string   `json:"plan_status,omitempty"`
	CNPJ           string   `json:"cnpj,omitempty"`
}

type Alert struct {
	Kind     AlertKind   `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
	Detail   AlertDetail `json:"detail"`
}

// SortAlerts orders by severity (worst first) keeping insertion order
// among equals.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
	})
}

// HasAlert reports whether kind is present.
func HasAlert(alerts []Alert, kind AlertKind) bool {
	for _, a := range alerts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

func IntPtr(v int) *int { return &v }
func FloatPtr(v float64) *float64 { return &v }
