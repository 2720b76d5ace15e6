package amendments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/anomaly"
	"github.com/JadsonMattos/vigia-pix/internal/domain/geofence"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
	"github.com/JadsonMattos/vigia-pix/internal/domain/trust"
)

// Enrichment source names used in Analysis.Sources.
const (
	SourcePlan           = "plan"
	SourceNews           = "news"
	SourceClassification = "classification"
	SourceInvoices       = "invoices"
	SourceSanctions      = "sanctions"
)

const (
	lowExecutionPct   = 10.0
	lowExecutionAfter = 90
	highRiskThreshold = 0.7
)

// enrichment is what the optional collaborators returned for one run.
type enrichment struct {
	plan           *domain.PlanStatus
	news           []domain.NewsItem
	classification *domain.Classification
	invoices       []domain.InvoiceAnalysis
	sanction       *domain.Sanction
	sources        map[string]domain.SourceStatus
}

func (e *enrichment) partial() bool {
	for _, st := range e.sources {
		if st == domain.SourceUnavailable {
			return true
		}
	}
	return false
}

// Analyze recomputes every derived indicator of an amendment, persists the
// result and records an execution_update block. Enrichment failures only
// mark the analysis partial; persistence failures abort without writing.
func (s *Service) Analyze(ctx context.Context, id domain.ID) (*domain.Amendment, error) {
	start := time.Now()
	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	a := stored.Clone()
	now := s.now()

	enr := s.enrich(ctx, a)
	if enr.sources[SourceNews] == domain.SourceOK {
		a.News = enr.news
		a.HasNews = len(enr.news) > 0
	}
	if enr.classification != nil && a.Category == "" {
		a.Category = enr.classification.Category
	}

	var anomalies []domain.Alert
	if enr.plan != nil {
		anomalies = anomaly.Detect(a.Financials.Paid, a.Financials.Approved, enr.plan.Status)
	}

	risk := trust.DeviationRisk(a, now)
	a.DeviationRisk = &risk
	score := trust.Score(a, now)

	alerts := append(executionAlerts(a, now, risk), anomalies...)
	if enr.sanction != nil {
		alerts = append(alerts, sanctionAlert(enr.sanction))
	}
	domain.SortAlerts(alerts)
	fresh := raised(s.Ledger.History(string(a.ID)), alerts)
	a.Alerts = alerts
	a.GeofenceValid = geofence.Aggregate(a.Photos)

	a.Analysis = &domain.Analysis{
		AnalyzedAt:          now,
		ExecutionPercentage: round2(a.ExecutionPercentage()),
		Late:                a.IsLate(now),
		DaysLate:            a.DaysLate(now),
		EffectiveStatus:     a.EffectiveStatus(now),
		DeviationRisk:       risk,
		TransparencyScore:   trust.Transparency(a, enr.plan != nil),
		Trust:               score,
		Plan:                enr.plan,
		Anomalies:           nonNil(anomalies),
		Classification:      enr.classification,
		Sanction:            enr.sanction,
		Invoices:            enr.invoices,
		NewsCount:           len(a.News),
		Sources:             enr.sources,
		PartialData:         score.PartialData || enr.partial(),
	}
	a.UpdatedAt = now

	blocks := []pendingBlock{{typ: ledger.TxExecutionUpdate, payload: analysisPayload(a)}}
	for _, al := range fresh {
		blocks = append(blocks, pendingBlock{typ: ledger.TxAlert, payload: alertPayload(al)})
	}
	if err := s.commit(ctx, stored, a, blocks...); err != nil {
		return nil, err
	}

	s.log().Info("amendment analyzed",
		"amendment_id", a.ID,
		"trust_score", score.Score,
		"level", score.Level,
		"deviation_risk", risk,
		"alerts", len(alerts),
		"partial", a.Analysis.PartialData,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.notify(ctx, a, fresh)
	return a, nil
}

// enrich runs the optional collaborators concurrently. None of them can
// fail the run; each outcome is recorded in sources.
func (s *Service) enrich(ctx context.Context, a *domain.Amendment) *enrichment {
	out := &enrichment{}
	planStatus := domain.SourceSkipped
	newsStatus := domain.SourceSkipped
	classStatus := domain.SourceSkipped
	invStatus := domain.SourceSkipped
	sanctionStatus := domain.SourceSkipped

	// snapshot so the goroutines never race with the caller's copy
	snap := a.Clone()
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if s.Plans != nil {
		run(func() {
			ctx, cancel := s.enrichmentContext(ctx)
			defer cancel()
			plan, err := s.Plans.FetchPlanStatus(ctx, snap.Code())
			planStatus = s.outcome(SourcePlan, snap.ID, err, plan != nil)
			if err == nil {
				out.plan = plan
			}
		})
	}
	if s.News != nil {
		run(func() {
			ctx, cancel := s.enrichmentContext(ctx)
			defer cancel()
			items, err := s.News.Search(ctx, snap)
			newsStatus = s.outcome(SourceNews, snap.ID, err, true)
			if err == nil {
				out.news = nonNil(items)
			}
		})
	}
	if s.Classifier != nil && snap.Objective != "" {
		run(func() {
			ctx, cancel := s.enrichmentContext(ctx)
			defer cancel()
			c, err := s.Classifier.Classify(ctx, snap.Objective)
			classStatus = s.outcome(SourceClassification, snap.ID, err, true)
			if err == nil {
				out.classification = &c
			}
		})
	}
	if s.Invoices != nil {
		if docs := snap.Invoices(); len(docs) == 0 {
			invStatus = domain.SourceAbsent
		} else {
			run(func() {
				ctx, cancel := s.enrichmentContext(ctx)
				defer cancel()
				invStatus = domain.SourceOK
				for _, d := range docs {
					res, err := s.Invoices.AnalyzeInvoice(ctx, d, snap.Objective)
					if err != nil {
						invStatus = s.outcome(SourceInvoices, snap.ID, err, true)
						continue
					}
					out.invoices = append(out.invoices, res)
				}
			})
		}
	}
	if s.Sanctions != nil {
		if cnpj := domain.NormalizeCNPJ(snap.Recipient.CNPJ); cnpj == "" {
			sanctionStatus = domain.SourceAbsent
		} else {
			run(func() {
				ctx, cancel := s.enrichmentContext(ctx)
				defer cancel()
				sanction, err := s.Sanctions.Sanction(ctx, cnpj)
				sanctionStatus = s.outcome(SourceSanctions, snap.ID, err, sanction != nil)
				if err == nil {
					out.sanction = sanction
				}
			})
		}
	}
	wg.Wait()

	out.sources = map[string]domain.SourceStatus{
		SourcePlan:           planStatus,
		SourceNews:           newsStatus,
		SourceClassification: classStatus,
		SourceInvoices:       invStatus,
		SourceSanctions:      sanctionStatus,
	}
	return out
}

func (s *Service) enrichmentContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.EnrichmentTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.EnrichmentTimeout)
}

// outcome folds an enrichment result into a SourceStatus and logs failures.
func (s *Service) outcome(source string, id domain.ID, err error, found bool) domain.SourceStatus {
	switch {
	case err != nil:
		s.log().Warn("enrichment unavailable",
			"source", source, "amendment_id", id, "error", err,
			"timeout", errors.Is(err, context.DeadlineExceeded))
		return domain.SourceUnavailable
	case !found:
		return domain.SourceAbsent
	}
	return domain.SourceOK
}

// executionAlerts are the alerts derived from the amendment's own data.
func executionAlerts(a *domain.Amendment, now time.Time, risk float64) []domain.Alert {
	var out []domain.Alert
	exec := a.ExecutionPercentage()

	if a.IsLate(now) {
		days := a.DaysLate(now)
		out = append(out, domain.Alert{
			Kind:     domain.AlertLate,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("planned completion passed %d days ago with %.1f%% executed", days, exec),
			Detail:   domain.AlertDetail{DaysLate: domain.IntPtr(days), Execution: domain.FloatPtr(round2(exec))},
		})
	}

	if elapsed := a.DaysSinceStart(now); exec < lowExecutionPct && elapsed > lowExecutionAfter {
		out = append(out, domain.Alert{
			Kind:     domain.AlertLowExecution,
			Severity: domain.SeverityMedium,
			Message:  fmt.Sprintf("only %.1f%% executed after %d days", exec, elapsed),
			Detail:   domain.AlertDetail{DaysElapsed: domain.IntPtr(elapsed), Execution: domain.FloatPtr(round2(exec))},
		})
	}

	if risk > highRiskThreshold {
		out = append(out, domain.Alert{
			Kind:     domain.AlertHighDeviationRisk,
			Severity: domain.SeverityHigh,
			Message:  fmt.Sprintf("deviation risk %.2f", risk),
			Detail:   domain.AlertDetail{Risk: domain.FloatPtr(risk)},
		})
	}
	return out
}

func sanctionAlert(sn *domain.Sanction) domain.Alert {
	msg := "recipient is listed in the CEIS register"
	if sn.Kind != "" {
		msg += ": " + sn.Kind
	}
	return domain.Alert{
		Kind:     domain.AlertRecipientSanctioned,
		Severity: domain.SeverityHigh,
		Message:  msg,
		Detail:   domain.AlertDetail{CNPJ: sn.CNPJ},
	}
}

// raised returns the high-severity alerts of next that have no open alert
// block in history.
func raised(history []ledger.Block, next []domain.Alert) []domain.Alert {
	open := openAlerts(history)
	var out []domain.Alert
	for _, al := range next {
		if al.Severity == domain.SeverityHigh && !open[al.Kind] {
			out = append(out, al)
		}
	}
	return out
}

// openAlerts replays the alert blocks of one amendment. A kind stays open
// until a later analysis block no longer lists it.
func openAlerts(history []ledger.Block) map[domain.AlertKind]bool {
	open := map[domain.AlertKind]bool{}
	for _, b := range history {
		switch b.Type {
		case ledger.TxAlert:
			if k, ok := b.Data["kind"].(string); ok {
				open[domain.AlertKind(k)] = true
			}
		case ledger.TxExecutionUpdate:
			listed, ok := b.Data["alerts"].([]any)
			if !ok {
				continue
			}
			active := map[domain.AlertKind]bool{}
			for _, v := range listed {
				if k, ok := v.(string); ok {
					active[domain.AlertKind(k)] = true
				}
			}
			for k := range open {
				if !active[k] {
					delete(open, k)
				}
			}
		}
	}
	return open
}

func (s *Service) notify(ctx context.Context, a *domain.Amendment, alerts []domain.Alert) {
	if s.Notifier == nil || len(alerts) == 0 {
		return
	}
	if err := s.Notifier.Notify(ctx, a, alerts); err != nil {
		s.log().Warn("alert notification failed", "amendment_id", a.ID, "alerts", len(alerts), "error", err)
	}
}

func analysisPayload(a *domain.Amendment) map[string]any {
	an := a.Analysis
	kinds := make([]string, 0, len(a.Alerts))
	for _, al := range a.Alerts {
		kinds = append(kinds, string(al.Kind))
	}
	return map[string]any{
		"action":               "analysis",
		"paid":                 a.Financials.Paid,
		"approved":             a.Financials.Approved,
		"execution_percentage": an.ExecutionPercentage,
		"effective_status":     string(an.EffectiveStatus),
		"deviation_risk":       an.DeviationRisk,
		"trust_score":          an.Trust.Score,
		"trust_level":          string(an.Trust.Level),
		"alerts":               kinds,
		"partial_data":         an.PartialData,
	}
}

func alertPayload(al domain.Alert) map[string]any {
	return map[string]any{
		"kind":     string(al.Kind),
		"severity": string(al.Severity),
		"message":  al.Message,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
