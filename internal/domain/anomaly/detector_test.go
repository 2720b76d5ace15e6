package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

func kinds(alerts []amendments.Alert) []amendments.AlertKind {
	out := make([]amendments.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

func TestDetect_Rules(t *testing.T) {
	tests := []struct {
		name     string
		paid     float64
		approved float64
		status   string
		want     []amendments.AlertKind
	}{
		{"no plan status", 100, 100, "", nil},
		{"fully paid under review", 100, 100, "Under Review",
			[]amendments.AlertKind{amendments.AlertHighIrregularityRisk, amendments.AlertEarlyPayment}},
		{"fully paid suspended", 99, 100, "SUSPENDED",
			[]amendments.AlertKind{amendments.AlertHighIrregularityRisk}},
		{"fully paid cancelled", 100, 100, "cancelled",
			[]amendments.AlertKind{amendments.AlertHighIrregularityRisk, amendments.AlertPlanCancelledWithPayment}},
		{"partly paid cancelled", 2_000_000, 10_000_000, "Cancelado",
			[]amendments.AlertKind{amendments.AlertPlanCancelledWithPayment}},
		{"cancelled nothing paid", 0, 100, "cancelled", []amendments.AlertKind{}},
		{"under review over half", 60, 100, "Em Análise",
			[]amendments.AlertKind{amendments.AlertEarlyPayment}},
		{"under review exactly half", 50, 100, "under review", []amendments.AlertKind{}},
		{"approved unpaid", 0, 100, "Aprovado",
			[]amendments.AlertKind{amendments.AlertPlanApprovedWithoutPayment}},
		{"approved paid", 10, 100, "approved", []amendments.AlertKind{}},
		{"zero approved", 10, 0, "under review", []amendments.AlertKind{}},
		{"unknown status", 100, 100, "archived", []amendments.AlertKind{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.paid, tt.approved, tt.status)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, kinds(got))
		})
	}
}

func TestDetect_Severities(t *testing.T) {
	got := Detect(100, 100, "cancelled")
	require.Len(t, got, 2)
	for _, a := range got {
		assert.Equal(t, amendments.SeverityHigh, a.Severity)
	}

	got = Detect(60, 100, "under review")
	require.Len(t, got, 1)
	assert.Equal(t, amendments.SeverityMedium, got[0].Severity)

	got = Detect(0, 100, "approved")
	require.Len(t, got, 1)
	assert.Equal(t, amendments.SeverityLow, got[0].Severity)
}

func TestDetect_CancelledPaymentIsMonotonic(t *testing.T) {
	before := Detect(0, 1_000_000, "cancelled")
	after := Detect(1, 1_000_000, "cancelled")
	assert.False(t, amendments.HasAlert(before, amendments.AlertPlanCancelledWithPayment))
	assert.True(t, amendments.HasAlert(after, amendments.AlertPlanCancelledWithPayment))
}

func TestDetect_Detail(t *testing.T) {
	got := Detect(2_000_000, 10_000_000, "cancelled")
	require.Len(t, got, 1)
	d := got[0].Detail
	require.NotNil(t, d.PaidAmount)
	require.NotNil(t, d.PercentagePaid)
	assert.Equal(t, 2_000_000.0, *d.PaidAmount)
	assert.InDelta(t, 20.0, *d.PercentagePaid, 1e-9)
	assert.Equal(t, "cancelled", d.PlanStatus)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, PlanUnderReview, Normalize("  EM ANÁLISE "))
	assert.Equal(t, PlanCancelled, Normalize("Canceled"))
	assert.Equal(t, PlanState("archived"), Normalize("Archived"))
}
