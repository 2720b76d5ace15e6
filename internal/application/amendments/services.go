package amendments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/application"
	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/geofence"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
	"github.com/JadsonMattos/vigia-pix/internal/domain/trust"
)

const (
	DefaultEnrichmentTimeout = 8 * time.Second
	DefaultBatchConcurrency  = 5
	DefaultBatchItemTimeout  = 10 * time.Second
)

// Service implements use-cases untuk Amendment.
// Only Repo, Ledger and Geofence are required; every other port is an
// optional enrichment and may be nil.
// Service is safe for concurrent use.
type Service struct {
	Repo       domain.Repository
	Plans      domain.PlanSource
	News       domain.NewsSource
	Sanctions  domain.SanctionsSource
	Invoices   domain.InvoiceAnalyzer
	Classifier domain.Classifier
	Photos     domain.PhotoStore
	Notifier   domain.Notifier
	Ledger     *ledger.Ledger
	Geofence   *geofence.Validator
	Clock      application.Clock
	Logger     *slog.Logger

	EnrichmentTimeout time.Duration
	BatchConcurrency  int
	BatchItemTimeout  time.Duration
}

// NewService fills the defaults of a zero-configured service.
func NewService(repo domain.Repository, l *ledger.Ledger, v *geofence.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = geofence.NewValidator(geofence.DefaultToleranceKM, geofence.NewGazetteer(true))
	}
	return &Service{
		Repo:              repo,
		Ledger:            l,
		Geofence:          v,
		Clock:             application.SystemClock{},
		Logger:            logger.With("component", "amendments"),
		EnrichmentTimeout: DefaultEnrichmentTimeout,
		BatchConcurrency:  DefaultBatchConcurrency,
		BatchItemTimeout:  DefaultBatchItemTimeout,
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

//
// ==== QUERIES ====
//

// Get returns the stored amendment.
func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Amendment, error) {
	return s.load(ctx, id)
}

// List returns one page of amendments.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.PaginatedResult, error) {
	if f.Status != "" && f.Status != domain.StatusLate {
		st, err := domain.ParseStatus(string(f.Status))
		if err != nil {
			return domain.PaginatedResult{}, err
		}
		f.Status = st
	}
	return s.Repo.List(ctx, f)
}

// TrustScore computes the score on the stored state without persisting
// anything. The stored deviation risk is used when present.
func (s *Service) TrustScore(ctx context.Context, id domain.ID) (domain.TrustScore, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return domain.TrustScore{}, err
	}
	return trust.Score(a, s.now()), nil
}

// AuditTrail returns every block recorded for the amendment. Unknown ids
// yield an empty trail, the ledger may hold blocks for deleted rows.
func (s *Service) AuditTrail(_ context.Context, id domain.ID) ledger.AuditTrail {
	return s.Ledger.AuditTrail(string(id))
}

// VerifyLedger walks the whole chain.
func (s *Service) VerifyLedger(_ context.Context) ledger.Report {
	return s.Ledger.Verify()
}

func (s *Service) load(ctx context.Context, id domain.ID) (*domain.Amendment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty amendment id", domain.ErrInvalidInput)
	}
	a, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading amendment %s: %w", id, err)
	}
	return a, nil
}

// commit saves the amendment and then records the ledger blocks. The
// repository write is the commit point: a failed save leaves nothing behind.
// When a block cannot be recorded the repository is put back to prev so it
// never holds state the ledger does not describe. prev is nil on creation.
func (s *Service) commit(ctx context.Context, prev, a *domain.Amendment, blocks ...pendingBlock) error {
	if err := s.Repo.Save(ctx, a); err != nil {
		return fmt.Errorf("%w: saving amendment %s: %w", domain.ErrPersistence, a.ID, err)
	}
	// past the commit point the blocks must land even if the caller gave up
	ctx = context.WithoutCancel(ctx)
	for _, b := range blocks {
		if _, err := s.Ledger.Append(ctx, string(a.ID), b.typ, b.payload); err != nil {
			s.log().Error("ledger append failed after save",
				"amendment_id", a.ID, "type", b.typ, "error", err)
			s.rollback(ctx, prev, a.ID)
			return fmt.Errorf("%w: recording %s block for %s: %w", domain.ErrPersistence, b.typ, a.ID, err)
		}
	}
	return nil
}

// rollback restores the stored record after a failed append. A new record
// cannot be removed; the next ingest notices it has no creation block.
func (s *Service) rollback(ctx context.Context, prev *domain.Amendment, id domain.ID) {
	if prev == nil {
		s.log().Warn("amendment stored without creation block", "amendment_id", id)
		return
	}
	if err := s.Repo.Save(ctx, prev); err != nil {
		s.log().Error("restoring amendment after ledger failure", "amendment_id", id, "error", err)
	}
}

type pendingBlock struct {
	typ     ledger.TxType
	payload map[string]any
}
