package prompt

import (
	"fmt"
	"strings"
)

const invoiceSystem = `You audit Brazilian electronic invoices (NF-e) and detect purchases that do not match the purpose of a parliamentary amendment.
Return only a valid JSON object.`

// InvoiceSystemPrompt returns the system prompt for invoice comparison.
func InvoiceSystemPrompt() string { return invoiceSystem }

// InvoiceUserPrompt lists the invoice items and the amendment objective.
func InvoiceUserPrompt(objective string, items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return fmt.Sprintf(`Compare the items bought on the invoice with the amendment objective.

Invoice items:
%s
Amendment objective:
%s

Answer with JSON:
{
  "match_score": number from 0 to 100,
  "matched_items": ["items consistent with the objective"],
  "unmatched_items": ["items that make no sense for the objective"],
  "reasoning": "short explanation"
}`, b.String(), objective)
}
