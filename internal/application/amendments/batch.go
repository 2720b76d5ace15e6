package amendments

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

// BatchItemStatus enum
type BatchItemStatus string

const (
	BatchAnalyzed BatchItemStatus = "analyzed"
	BatchFailed   BatchItemStatus = "failed"
	BatchNotFound BatchItemStatus = "not_found"
	BatchTimedOut BatchItemStatus = "timed_out"
	BatchSkipped  BatchItemStatus = "skipped"
)

type BatchItem struct {
	ID          domain.ID         `json:"id"`
	Status      BatchItemStatus   `json:"status"`
	TrustScore  float64           `json:"trust_score,omitempty"`
	Level       domain.TrustLevel `json:"level,omitempty"`
	PartialData bool              `json:"partial_data,omitempty"`
	Alerts      int               `json:"alerts,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// BatchReport holds the statistics of a batch run. Results keep the order
// of the requested ids.
type BatchReport struct {
	Total     int         `json:"total"`
	Analyzed  int         `json:"analyzed"`
	Failed    int         `json:"failed"`
	NotFound  int         `json:"not_found"`
	TimedOut  int         `json:"timed_out"`
	Skipped   int         `json:"skipped"`
	Cancelled bool        `json:"cancelled"`
	Results   []BatchItem `json:"results"`
}

func (r *BatchReport) add(it BatchItem) {
	switch it.Status {
	case BatchAnalyzed:
		r.Analyzed++
	case BatchNotFound:
		r.NotFound++
	case BatchTimedOut:
		r.TimedOut++
	case BatchSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// AnalyzeBatch analyzes ids with at most BatchConcurrency runs in flight,
// each bounded by BatchItemTimeout. One item failing never stops the
// others. Cancelling ctx stops scheduling; items not started are skipped.
func (s *Service) AnalyzeBatch(ctx context.Context, ids []domain.ID) BatchReport {
	limit := s.BatchConcurrency
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}
	timeout := s.BatchItemTimeout
	if timeout <= 0 {
		timeout = DefaultBatchItemTimeout
	}

	report := BatchReport{Total: len(ids), Results: make([]BatchItem, len(ids))}
	for i, id := range ids {
		report.Results[i] = BatchItem{ID: id, Status: BatchSkipped}
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			report.Cancelled = true
			break
		}
		wg.Add(1)
		go func(i int, id domain.ID) {
			defer wg.Done()
			defer sem.Release(1)
			report.Results[i] = s.analyzeItem(ctx, id, timeout)
		}(i, id)
	}
	wg.Wait()

	for _, it := range report.Results {
		report.add(it)
	}
	s.log().Info("batch analysis finished",
		"total", report.Total,
		"analyzed", report.Analyzed,
		"failed", report.Failed,
		"not_found", report.NotFound,
		"timed_out", report.TimedOut,
		"skipped", report.Skipped,
		"cancelled", report.Cancelled,
	)
	return report
}

func (s *Service) analyzeItem(ctx context.Context, id domain.ID, timeout time.Duration) BatchItem {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := s.Analyze(ctx, id)
	switch {
	case err == nil:
		return BatchItem{
			ID:          id,
			Status:      BatchAnalyzed,
			TrustScore:  a.Analysis.Trust.Score,
			Level:       a.Analysis.Trust.Level,
			PartialData: a.Analysis.PartialData,
			Alerts:      len(a.Alerts),
		}
	case errors.Is(err, domain.ErrNotFound):
		return BatchItem{ID: id, Status: BatchNotFound, Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return BatchItem{ID: id, Status: BatchTimedOut, Error: err.Error()}
	}
	s.log().Warn("batch item failed", "amendment_id", id, "error", err)
	return BatchItem{ID: id, Status: BatchFailed, Error: err.Error()}
}

// AnalyzeAll pages through every amendment matching f and analyzes them.
func (s *Service) AnalyzeAll(ctx context.Context, f domain.ListFilter) (BatchReport, error) {
	var ids []domain.ID
	f.Page, f.PageSize = 1, 100
	for {
		page, err := s.List(ctx, f)
		if err != nil {
			return BatchReport{}, err
		}
		for _, a := range page.Data {
			ids = append(ids, a.ID)
		}
		if f.Page >= page.TotalPages || len(page.Data) == 0 {
			break
		}
		f.Page++
	}
	return s.AnalyzeBatch(ctx, ids), nil
}
