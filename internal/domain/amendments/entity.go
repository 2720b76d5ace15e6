package amendments

import (
	"fmt"
	"strings"
	"time"
)

// ID tipe untuk Amendment
type ID string

// Type enum
type Type string

const (
	TypeIndividual Type = "individual"
	TypeBlock      Type = "block"
)

// Status enum. Lateness is never stored, see Amendment.IsLate.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"

	// StatusLate only appears as an effective status, never persisted.
	StatusLate Status = "late"
)

// ParseStatus normalizes a stored or submitted status. Legacy "late" rows
// collapse to executing; lateness is derived again from the dates.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return StatusPending, nil
	case "executing", "em_execucao":
		return StatusExecuting, nil
	case "late", "atrasado":
		return StatusExecuting, nil
	case "completed", "concluido":
		return StatusCompleted, nil
	case "cancelled", "canceled", "cancelado":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Author value object
type Author struct {
	Name  string `json:"name"`
	Party string `json:"party,omitempty"`
	UF    string `json:"uf,omitempty"`
}

// Recipient value object
type Recipient struct {
	Kind         string       `json:"kind,omitempty"`
	Name         string       `json:"name"`
	UF           string       `json:"uf,omitempty"`
	CNPJ         string       `json:"cnpj,omitempty"`
	Municipality string       `json:"municipality,omitempty"`
	Location     *Coordinates `json:"location,omitempty"`
}

// Coordinates in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Financials holds the declared money flow. Paid above approved is a signal
// for the scorer, not a validation error.
type Financials struct {
	Approved  float64 `json:"approved"`
	Committed float64 `json:"committed"`
	Settled   float64 `json:"settled"`
	Paid      float64 `json:"paid"`
}

// MilestoneStatus enum
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

type Milestone struct {
	Sequence    int             `json:"sequence"`
	Description string          `json:"description"`
	Value       float64         `json:"value"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Status      MilestoneStatus `json:"status"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// DocumentKind enum
type DocumentKind string

const (
	DocumentInvoice  DocumentKind = "invoice"
	DocumentContract DocumentKind = "contract"
	DocumentReport   DocumentKind = "report"
	DocumentOther    DocumentKind = "other"
)

type Document struct {
	ID         string       `json:"id"`
	Kind       DocumentKind `json:"kind"`
	URL        string       `json:"url,omitempty"`
	XMLContent string       `json:"xml_content,omitempty"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// Provenance of a photo location.
type Provenance string

const (
	ProvenanceProvided  Provenance = "provided"
	ProvenanceExtracted Provenance = "extracted"
	ProvenanceNone      Provenance = "none"
)

// GeofenceCheck is the verdict stored with a photo.
type GeofenceCheck struct {
	Outcome     string  `json:"outcome"`
	Valid       bool    `json:"valid"`
	DistanceKM  float64 `json:"distance_km"`
	ToleranceKM float64 `json:"tolerance_km"`
}

type Photo struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Kind        string         `json:"kind,omitempty"`
	Description string         `json:"description,omitempty"`
	Location    *Coordinates   `json:"location,omitempty"`
	Provenance  Provenance     `json:"provenance"`
	Geofence    *GeofenceCheck `json:"geofence,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
}

type NewsItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Aggregate Root: Amendment
type Amendment struct {
	ID          ID        `json:"id"`
	Number      string    `json:"number"`
	Year        int       `json:"year"`
	Type        Type      `json:"type"`
	Author      Author    `json:"author"`
	Recipient   Recipient `json:"recipient"`
	Objective   string    `json:"objective,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Category    string    `json:"category,omitempty"`
	Subcategory string    `json:"subcategory,omitempty"`

	Financials Financials `json:"financials"`
	Status     Status     `json:"status"`

	StartDate         *time.Time `json:"start_date,omitempty"`
	PlannedCompletion *time.Time `json:"planned_completion,omitempty"`
	ActualCompletion  *time.Time `json:"actual_completion,omitempty"`
	PlanCode          string     `json:"plan_code,omitempty"`

	Milestones []Milestone `json:"milestones,omitempty"`
	Documents  []Document  `json:"documents,omitempty"`
	Photos     []Photo     `json:"photos,omitempty"`
	News       []NewsItem  `json:"news,omitempty"`
	HasNews    bool        `json:"has_news"`

	// GeofenceValid is nil until at least one photo could be checked.
	GeofenceValid *bool `json:"geofence_valid,omitempty"`

	Alerts        []Alert   `json:"alerts,omitempty"`
	DeviationRisk *float64  `json:"deviation_risk,omitempty"`
	Analysis      *Analysis `json:"analysis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Code is the identifier used by the federal plan portal, "<year>-<number>".
func (a *Amendment) Code() string {
	if a.PlanCode != "" {
		return a.PlanCode
	}
	return fmt.Sprintf("%d-%s", a.Year, a.Number)
}

// ExecutionPercentage is paid/approved*100, zero when nothing was approved.
func (a *Amendment) ExecutionPercentage() float64 {
	if a.Financials.Approved <= 0 {
		return 0
	}
	return a.Financials.Paid / a.Financials.Approved * 100
}

// IsLate holds when the planned completion date is strictly in the past and
// the money is not fully executed.
func (a *Amendment) IsLate(now time.Time) bool {
	if a.PlannedCompletion == nil {
		return false
	}
	return a.PlannedCompletion.Before(now) && a.ExecutionPercentage() < 100
}

// DaysLate is zero when the amendment is not late.
func (a *Amendment) DaysLate(now time.Time) int {
	if !a.IsLate(now) {
		return 0
	}
	return int(now.Sub(*a.PlannedCompletion).Hours() / 24)
}

// DaysSinceStart is -1 when there is no start date.
func (a *Amendment) DaysSinceStart(now time.Time) int {
	if a.StartDate == nil {
		return -1
	}
	return int(now.Sub(*a.StartDate).Hours() / 24)
}

// EffectiveStatus overlays derived lateness on open statuses.
func (a *Amendment) EffectiveStatus(now time.Time) Status {
	if (a.Status == StatusPending || a.Status == StatusExecuting) && a.IsLate(now) {
		return StatusLate
	}
	return a.Status
}

// Invoices returns documents carrying NF-e XML.
func (a *Amendment) Invoices() []Document {
	var out []Document
	for _, d := range a.Documents {
		if d.Kind == DocumentInvoice && strings.TrimSpace(d.XMLContent) != "" {
			out = append(out, d)
		}
	}
	return out
}

// Clone returns a deep copy so use cases can mutate without touching the
// caller's value until the repository accepted the write.
func (a *Amendment) Clone() *Amendment {
	c := *a
	c.Recipient.Location = cloneCoords(a.Recipient.Location)
	c.StartDate = cloneTime(a.StartDate)
	c.PlannedCompletion = cloneTime(a.PlannedCompletion)
	c.ActualCompletion = cloneTime(a.ActualCompletion)
	c.Milestones = append([]Milestone(nil), a.Milestones...)
	c.Documents = append([]Document(nil), a.Documents...)
	c.Photos = append([]Photo(nil), a.Photos...)
	c.News = append([]NewsItem(nil), a.News...)
	c.Alerts = append([]Alert(nil), a.Alerts...)
	if a.GeofenceValid != nil {
		v := *a.GeofenceValid
		c.GeofenceValid = &v
	}
	if a.DeviationRisk != nil {
		v := *a.DeviationRisk
		c.DeviationRisk = &v
	}
	if a.Analysis != nil {
		an := *a.Analysis
		c.Analysis = &an
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneCoords(c *Coordinates) *Coordinates {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
