package amendments

import "time"

// TrustLevel enum, five tiers.
type TrustLevel string

const (
	LevelExcellent TrustLevel = "excellent"
	LevelGood      TrustLevel = "good"
	LevelFair      TrustLevel = "fair"
	LevelPoor      TrustLevel = "poor"
	LevelCritical  TrustLevel = "critical"
)

// Factor is one weighted component of the trust score.
type Factor struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail"`
	Defaulted    bool    `json:"defaulted,omitempty"`
}

type TrustScore struct {
	Score           float64    `json:"score"`
	Level           TrustLevel `json:"level"`
	Factors         []Factor   `json:"factors"`
	Recommendations []string   `json:"recommendations"`
	PartialData     bool       `json:"partial_data"`
	MissingInputs   []string   `json:"missing_inputs,omitempty"`
}

// SourceStatus records how an optional enrichment ended.
type SourceStatus string

const (
	SourceOK          SourceStatus = "ok"
	SourceAbsent      SourceStatus = "absent"
	SourceUnavailable SourceStatus = "unavailable"
	SourceSkipped     SourceStatus = "skipped"
)

// PlanStatus is the execution plan as reported by the federal portal.
type PlanStatus struct {
	Status      string     `json:"status"`
	Beneficiary string     `json:"beneficiary,omitempty"`
	Description string     `json:"description,omitempty"`
	TotalValue  float64    `json:"total_value,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	Raw         []byte     `json:"-"`
}

// Sanction is a CEIS entry found for the recipient's CNPJ.
type Sanction struct {
	CNPJ      string     `json:"cnpj"`
	Name      string     `json:"name,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	Authority string     `json:"authority,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Classification of the free-text objective.
type Classification struct {
	Category   string   `json:"category"`
	MainObject string   `json:"main_object,omitempty"`
	Location   string   `json:"location,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Source     string   `json:"source"`
}

// InvoiceItem is one NF-e product line.
type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitValue   float64 `json:"unit_value"`
	TotalValue  float64 `json:"total_value"`
	NCM         string  `json:"ncm,omitempty"`
	CFOP        string  `json:"cfop,omitempty"`
}

// Inconsistency found while comparing an invoice with the objective.
type Inconsistency struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type InvoiceAnalysis struct {
	DocumentID      string          `json:"document_id"`
	Number          string          `json:"number"`
	Series          string          `json:"series,omitempty"`
	IssuedAt        *time.Time      `json:"issued_at,omitempty"`
	Total           float64         `json:"total"`
	IssuerName      string          `json:"issuer_name,omitempty"`
	IssuerCNPJ      string          `json:"issuer_cnpj,omitempty"`
	Items           []InvoiceItem   `json:"items"`
	MatchScore      float64         `json:"match_score"`
	Alignment       string          `json:"alignment"`
	MatchedItems    []string        `json:"matched_items,omitempty"`
	UnmatchedItems  []string        `json:"unmatched_items,omitempty"`
	Inconsistencies []Inconsistency `json:"inconsistencies,omitempty"`
	Method          string          `json:"method"`
}

// Analysis is the structured payload produced by one Analyze run.
type Analysis struct {
	AnalyzedAt          time.Time               `json:"analyzed_at"`
	ExecutionPercentage float64                 `json:"execution_percentage"`
	Late                bool                    `json:"late"`
	DaysLate            int                     `json:"days_late,omitempty"`
	EffectiveStatus     Status                  `json:"effective_status"`
	DeviationRisk       float64                 `json:"deviation_risk"`
	TransparencyScore   float64                 `json:"transparency_score"`
	Trust               TrustScore              `json:"trust"`
	Plan                *PlanStatus             `json:"plan,omitempty"`
	Anomalies           []Alert                 `json:"anomalies"`
	Classification      *Classification         `json:"classification,omitempty"`
	Sanction            *Sanction               `json:"sanction,omitempty"`
	Invoices            []InvoiceAnalysis       `json:"invoices,omitempty"`
	NewsCount           int                     `json:"news_count"`
	Sources             map[string]SourceStatus `json:"sources"`
	PartialData         bool                    `json:"partial_data"`
}
