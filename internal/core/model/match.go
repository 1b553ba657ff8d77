package model

// FactorBreakdown carries the per-dimension sub-scores behind a composite
// similarity score, so reviewers can see why two contacts matched.
type FactorBreakdown struct {
	Email    float64 `json:"email"`
	Name     float64 `json:"name"`
	Phone    float64 `json:"phone"`
	Company  float64 `json:"company"`
	Metadata float64 `json:"metadata"`
}

type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
)

type Action string

const (
	ActionMerge  Action = "merge"
	ActionLink   Action = "link"
	ActionReview Action = "review"
	ActionIgnore Action = "ignore"
)

// ConfidenceFor buckets a composite score. Total over [0,1]; scores outside
// the range are clamped by the scorer before they get here.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.90:
		return ConfidenceHigh
	case score >= 0.70:
		return ConfidenceMedium
	case score >= 0.30:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// ActionFor maps a confidence bucket to the default suggested action.
func ActionFor(c Confidence) Action {
	switch c {
	case ConfidenceHigh:
		return ActionMerge
	case ConfidenceMedium:
		return ActionLink
	case ConfidenceLow:
		return ActionReview
	default:
		return ActionIgnore
	}
}

// MatchResult is ephemeral: the finder returns it to the caller and nothing
// is persisted until the caller decides to merge or link.
type MatchResult struct {
	ContactA        *Contact        `json:"contact_a"`
	ContactB        *Contact        `json:"contact_b"`
	Score           float64         `json:"score"`
	Factors         FactorBreakdown `json:"factors"`
	Confidence      Confidence      `json:"confidence"`
	SuggestedAction Action          `json:"suggested_action"`
}
