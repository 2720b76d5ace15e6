package amendments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
)

// IngestResult tells the caller whether a new amendment was created.
type IngestResult struct {
	Amendment *domain.Amendment `json:"amendment"`
	Created   bool              `json:"created"`
	Changed   bool              `json:"changed"`
}

// Ingest inserts or updates an amendment coming from an upstream feed.
// The first sighting records a creation block; later sightings record an
// execution_update block only when the paid amount or the status changed.
func (s *Service) Ingest(ctx context.Context, in *domain.Amendment) (IngestResult, error) {
	if err := validateIngest(in); err != nil {
		return IngestResult{}, err
	}
	status, err := domain.ParseStatus(string(in.Status))
	if err != nil {
		return IngestResult{}, err
	}
	now := s.now()

	existing, err := s.findExisting(ctx, in)
	if err != nil {
		return IngestResult{}, err
	}

	if existing == nil {
		a := in.Clone()
		if a.ID == "" {
			a.ID = domain.ID(uuid.NewString())
		}
		a.Status = status
		a.Type = defaultType(a.Type)
		a.Recipient.UF = strings.ToUpper(a.Recipient.UF)
		a.CreatedAt, a.UpdatedAt = now, now
		a.Alerts, a.Analysis, a.DeviationRisk = nil, nil, nil
		stampDocuments(a.Documents, now)
		a.GeofenceValid = nil

		err := s.commit(ctx, nil, a, creationBlock(a))
		if err != nil {
			return IngestResult{}, err
		}
		s.log().Info("amendment created", "amendment_id", a.ID, "number", a.Number, "year", a.Year)
		return IngestResult{Amendment: a, Created: true, Changed: true}, nil
	}

	a := existing.Clone()
	prevPaid, prevStatus := a.Financials.Paid, a.Status
	merge(a, in, status)
	stampDocuments(a.Documents, now)
	a.UpdatedAt = now

	var blocks []pendingBlock
	changed := prevPaid != a.Financials.Paid || prevStatus != a.Status
	if changed {
		blocks = append(blocks, pendingBlock{typ: ledger.TxExecutionUpdate, payload: map[string]any{
			"action":          "execution_updated",
			"previous_paid":   prevPaid,
			"paid":            a.Financials.Paid,
			"previous_status": string(prevStatus),
			"status":          string(a.Status),
		}})
	}
	// a record saved while its creation block failed gets the block now
	if len(s.Ledger.History(string(a.ID))) == 0 {
		blocks = append([]pendingBlock{creationBlock(a)}, blocks...)
	}
	if err := s.commit(ctx, existing, a, blocks...); err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Amendment: a, Changed: changed}, nil
}

func creationBlock(a *domain.Amendment) pendingBlock {
	return pendingBlock{typ: ledger.TxCreation, payload: map[string]any{
		"action":   "amendment_created",
		"number":   a.Number,
		"year":     a.Year,
		"approved": a.Financials.Approved,
		"paid":     a.Financials.Paid,
		"status":   string(a.Status),
		"author":   a.Author.Name,
		"recipient": map[string]any{
			"name": a.Recipient.Name,
			"uf":   a.Recipient.UF,
		},
	}}
}

func (s *Service) findExisting(ctx context.Context, in *domain.Amendment) (*domain.Amendment, error) {
	var (
		a   *domain.Amendment
		err error
	)
	if in.ID != "" {
		a, err = s.Repo.Get(ctx, in.ID)
	} else {
		a, err = s.Repo.FindByNumber(ctx, in.Number, in.Year)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up amendment %s/%d: %w", in.Number, in.Year, err)
	}
	return a, nil
}

func validateIngest(in *domain.Amendment) error {
	if in == nil {
		return fmt.Errorf("%w: empty amendment", domain.ErrInvalidInput)
	}
	var problems []string
	if strings.TrimSpace(in.Number) == "" {
		problems = append(problems, "number is required")
	}
	if in.Year < 1988 || in.Year > 2100 {
		problems = append(problems, "year out of range")
	}
	f := in.Financials
	if f.Approved < 0 || f.Committed < 0 || f.Settled < 0 || f.Paid < 0 {
		problems = append(problems, "amounts must not be negative")
	}
	if in.Type != "" && in.Type != domain.TypeIndividual && in.Type != domain.TypeBlock {
		problems = append(problems, fmt.Sprintf("unknown type %q", in.Type))
	}
	if c := in.Recipient.Location; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180) {
		problems = append(problems, "recipient location out of range")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// merge copies the declarative fields of in over a. Evidence collected by
// the service (photos, news, analysis) is kept.
func merge(a, in *domain.Amendment, status domain.Status) {
	a.Number, a.Year = in.Number, in.Year
	a.Type = defaultType(in.Type)
	a.Author = in.Author
	a.Recipient = in.Recipient
	a.Recipient.UF = strings.ToUpper(in.Recipient.UF)
	a.Objective, a.Detail = in.Objective, in.Detail
	if in.Category != "" {
		a.Category, a.Subcategory = in.Category, in.Subcategory
	}
	a.Financials = in.Financials
	a.Status = status
	a.StartDate, a.PlannedCompletion, a.ActualCompletion = in.StartDate, in.PlannedCompletion, in.ActualCompletion
	if in.PlanCode != "" {
		a.PlanCode = in.PlanCode
	}
	if in.Milestones != nil {
		a.Milestones = append([]domain.Milestone(nil), in.Milestones...)
	}
	if in.Documents != nil {
		a.Documents = append([]domain.Document(nil), in.Documents...)
	}
}

func defaultType(t domain.Type) domain.Type {
	if t == "" {
		return domain.TypeIndividual
	}
	return t
}

func stampDocuments(docs []domain.Document, now time.Time) {
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].Kind == "" {
			docs[i].Kind = domain.DocumentOther
		}
		if docs[i].UploadedAt.IsZero() {
			docs[i].UploadedAt = now
		}
	}
}

// CompleteMilestone marks milestone seq as completed and records a
// milestone_completion block.
func (s *Service) CompleteMilestone(ctx context.Context, id domain.ID, seq int, completedAt *time.Time) (*domain.Amendment, error) {
	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	a := stored.Clone()
	now := s.now()
	when := now
	if completedAt != nil {
		when = completedAt.UTC()
	}

	idx := -1
	for i, m := range a.Milestones {
		if m.Sequence == seq {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("milestone %d of %s: %w", seq, id, domain.ErrNotFound)
	}
	m := &a.Milestones[idx]
	if m.Status == domain.MilestoneCompleted {
		return nil, fmt.Errorf("%w: milestone %d already completed", domain.ErrInvalidInput, seq)
	}
	m.Status = domain.MilestoneCompleted
	m.CompletedAt = &when
	a.UpdatedAt = now

	err = s.commit(ctx, stored, a, pendingBlock{typ: ledger.TxMilestoneCompletion, payload: map[string]any{
		"sequence":     m.Sequence,
		"description":  m.Description,
		"value":        m.Value,
		"completed_at": when.Format(time.RFC3339),
	}})
	if err != nil {
		return nil, err
	}
	return a, nil
}
