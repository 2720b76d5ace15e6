// Package invoice parses NF-e documents and checks whether what was bought
// fits the amendment objective.
package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/JadsonMattos/vigia-pix/internal/domain/ai"
	"github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
)

const (
	highAlignment   = 70.0
	mediumAlignment = 40.0
	lowMatchScore   = 50.0
	highValue       = 1_000_000.0
	oldInvoiceDays  = 365
)

// Comparer is a semantic comparison of items against an objective.
type Comparer interface {
	CompareItems(ctx context.Context, objective string, items []string) (ai.ItemComparison, error)
}

// Analyzer implements amendments.InvoiceAnalyzer. Comparer is optional;
// keyword matching is used when it is nil or fails.
type Analyzer struct {
	Comparer Comparer
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewAnalyzer(cmp Comparer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{Comparer: cmp, Now: time.Now, Logger: logger.With("component", "invoice")}
}

func (a *Analyzer) AnalyzeInvoice(ctx context.Context, doc amendments.Document, objective string) (amendments.InvoiceAnalysis, error) {
	p, err := Parse(strings.NewReader(doc.XMLContent))
	if err != nil {
		return amendments.InvoiceAnalysis{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}

	descriptions := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		descriptions = append(descriptions, it.Description)
	}

	cmp, method := a.compare(ctx, objective, descriptions)

	res := amendments.InvoiceAnalysis{
		DocumentID:     doc.ID,
		Number:         p.Number,
		Series:         p.Series,
		IssuedAt:       p.IssuedAt,
		Total:          p.Total,
		IssuerName:     p.IssuerName,
		IssuerCNPJ:     p.IssuerCNPJ,
		Items:          p.Items,
		MatchScore:     cmp.MatchScore,
		Alignment:      alignment(cmp.MatchScore),
		MatchedItems:   cmp.MatchedItems,
		UnmatchedItems: cmp.UnmatchedItems,
		Method:         method,
	}
	res.Inconsistencies = a.inconsistencies(p, cmp)

	a.Logger.Info("invoice analyzed",
		"document_id", doc.ID, "number", p.Number,
		"match_score", res.MatchScore, "inconsistencies", len(res.Inconsistencies))
	return res, nil
}

func (a *Analyzer) compare(ctx context.Context, objective string, items []string) (ai.ItemComparison, string) {
	if a.Comparer != nil {
		cmp, err := a.Comparer.CompareItems(ctx, objective, items)
		if err == nil {
			return cmp, "openai"
		}
		a.Logger.Warn("semantic comparison failed, using keywords", "error", err)
	}
	return CompareKeywords(objective, items), "keywords"
}

var wordPattern = regexp.MustCompile(`[\p{L}\d]{4,}`)

// CompareKeywords scores how many objective words (4+ letters) appear in
// the item descriptions.
func CompareKeywords(objective string, items []string) ai.ItemComparison {
	words := uniqueWords(amendments.Fold(objective))

	folded := make([]string, len(items))
	for i, it := range items {
		folded[i] = amendments.Fold(it)
	}
	all := strings.Join(folded, " | ")

	matches := 0
	for _, w := range words {
		if strings.Contains(all, w) {
			matches++
		}
	}

	cmp := ai.ItemComparison{}
	if len(words) > 0 {
		cmp.MatchScore = math.Round(float64(matches)/float64(len(words))*10000) / 100
	}
	for i, it := range items {
		hit := false
		for _, w := range words {
			if strings.Contains(folded[i], w) {
				hit = true
				break
			}
		}
		if hit {
			cmp.MatchedItems = append(cmp.MatchedItems, it)
		} else {
			cmp.UnmatchedItems = append(cmp.UnmatchedItems, it)
		}
	}
	cmp.Reasoning = fmt.Sprintf("%d of %d objective keywords found in the items", matches, len(words))
	return cmp
}

func uniqueWords(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range wordPattern.FindAllString(s, -1) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func alignment(score float64) string {
	switch {
	case score >= highAlignment:
		return "high"
	case score >= mediumAlignment:
		return "medium"
	}
	return "low"
}

func (a *Analyzer) inconsistencies(p *Parsed, cmp ai.ItemComparison) []amendments.Inconsistency {
	var out []amendments.Inconsistency
	if cmp.MatchScore < lowMatchScore {
		out = append(out, amendments.Inconsistency{
			Kind:     "low_match_score",
			Severity: amendments.SeverityHigh,
			Message:  fmt.Sprintf("items match the objective poorly (%.2f%%)", cmp.MatchScore),
		})
	}
	if len(cmp.UnmatchedItems) > 0 && len(cmp.UnmatchedItems) > len(cmp.MatchedItems) {
		out = append(out, amendments.Inconsistency{
			Kind:     "unmatched_items",
			Severity: amendments.SeverityMedium,
			Message:  fmt.Sprintf("%d items do not fit the objective", len(cmp.UnmatchedItems)),
		})
	}
	if p.Total > highValue {
		out = append(out, amendments.Inconsistency{
			Kind:     "high_value",
			Severity: amendments.SeverityMedium,
			Message:  fmt.Sprintf("invoice total %.2f needs additional verification", p.Total),
		})
	}
	if p.IssuedAt != nil {
		if days := int(a.Now().Sub(*p.IssuedAt).Hours() / 24); days > oldInvoiceDays {
			out = append(out, amendments.Inconsistency{
				Kind:     "old_invoice",
				Severity: amendments.SeverityLow,
				Message:  fmt.Sprintf("invoice issued %d days ago", days),
			})
		}
	}
	return out
}
