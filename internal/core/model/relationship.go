package model

import "time"

// Relationship types the engine sees in the graph. SIMILAR_TO is the only
// type the engine itself owns; the rest are created by the surrounding
// application and must survive merges intact.
const (
	RelSent        = "SENT"
	RelReceived    = "RECEIVED"
	RelEnrolledIn  = "ENROLLED_IN"
	RelConnectedTo = "CONNECTED_TO"
	RelSimilarTo   = "SIMILAR_TO"
)

// Relationship is a directed, typed edge between a contact and another
// contact or an external entity (message, campaign).
type Relationship struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`

	// Score and Factors are set on SIMILAR_TO edges only. Advisory: a
	// SIMILAR_TO edge never implies ownership of either endpoint.
	Score   float64          `json:"score,omitempty"`
	Factors *FactorBreakdown `json:"factors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OtherEndpoint returns the endpoint opposite to id, or "" if id is not an
// endpoint of the edge.
func (r *Relationship) OtherEndpoint(id string) string {
	switch id {
	case r.SourceID:
		return r.TargetID
	case r.TargetID:
		return r.SourceID
	}
	return ""
}

// Identity is the (type, source, target) triple used to detect exact
// duplicate edges when a merge re-points relationships.
func (r *Relationship) Identity() string {
	return r.Type + "|" + r.SourceID + "|" + r.TargetID
}
