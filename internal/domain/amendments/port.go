package amendments

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	// Get returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, id ID) (*Amendment, error)
	FindByNumber(ctx context.Context, number string, year int) (*Amendment, error)
	Save(ctx context.Context, a *Amendment) error
	List(ctx context.Context, f ListFilter) (PaginatedResult, error)
}

// PlanSource fetches the independently reported plan status. A nil status
// with a nil error means the portal has no plan for that code.
type PlanSource interface {
	FetchPlanStatus(ctx context.Context, code string) (*PlanStatus, error)
}

// NewsSource searches press coverage of an amendment.
// SanctionsSource looks a CNPJ up in the CEIS register. nil, nil means
// no active sanction.
type SanctionsSource interface {
	Sanction(ctx context.Context, cnpj string) (*Sanction, error)
}

type NewsSource interface {
	Search(ctx context.Context, a *Amendment) ([]NewsItem, error)
}

// InvoiceAnalyzer compares an NF-e with the declared objective.
type InvoiceAnalyzer interface {
	AnalyzeInvoice(ctx context.Context, doc Document, objective string) (InvoiceAnalysis, error)
}

// Classifier categorizes the free-text objective.
type Classifier interface {
	Classify(ctx context.Context, objective string) (Classification, error)
}

// PhotoStore port (interface untuk photo evidence storage)
type PhotoStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Notifier delivers alerts outside the service.
type Notifier interface {
	Notify(ctx context.Context, a *Amendment, alerts []Alert) error
}
