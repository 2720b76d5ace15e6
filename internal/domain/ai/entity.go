package ai

// ItemComparison is the model's view of invoice items against an objective.
type ItemComparison struct {
	MatchScore     float64  `json:"match_score"`
	MatchedItems   []string `json:"matched_items"`
	UnmatchedItems []string `json:"unmatched_items"`
	Reasoning      string   `json:"reasoning"`
}
