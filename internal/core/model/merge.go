package model

import "fmt"

// Strategy names a conflict-resolution rule. The set is closed; the only
// extension point is the arbiter behind StrategyExternalArbitration.
type Strategy string

const (
	StrategyKeepFirst           Strategy = "keep_first"
	StrategyKeepSecond          Strategy = "keep_second"
	StrategyPreferComplete      Strategy = "prefer_complete"
	StrategyExternalArbitration Strategy = "external_arbitration"
)

// ParseStrategy validates a caller-supplied strategy name. Empty input
// selects the default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyPreferComplete, nil
	case StrategyKeepFirst, StrategyKeepSecond, StrategyPreferComplete, StrategyExternalArbitration:
		return Strategy(s), nil
	}
	return "", &ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", s)}
}

// FieldConflict is one audit-trail entry: what the two records held for a
// field and what the chosen strategy resolved it to.
type FieldConflict struct {
	Field         string   `json:"field"`
	SurvivorValue any      `json:"value_survivor_before"`
	LoserValue    any      `json:"value_loser"`
	ResolvedValue any      `json:"resolved_value"`
	Strategy      Strategy `json:"strategy"`
}

// MergeResult is what a completed merge returns to the caller.
type MergeResult struct {
	Merged    *Contact        `json:"merged_record"`
	RemovedID string          `json:"removed_id"`
	Conflicts []FieldConflict `json:"conflicts"`
}

// TenantStats is the read-only aggregate behind the stats endpoint.
type TenantStats struct {
	TotalContacts          int     `json:"total_contacts"`
	SimilarityLinks        int     `json:"similarity_links"`
	AvgSimilarityScore     float64 `json:"avg_similarity_score"`
	ContactsWithDuplicates int     `json:"contacts_with_duplicates"`
}
