package model

import (
	"fmt"
	"time"
)

// Contact is the resolvable entity. IDs are unique within a tenant only;
// the same id may exist in two tenants and those records are never comparable.
type Contact struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Email     string         `json:"email,omitempty"`
	Name      string         `json:"name,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Company   string         `json:"company,omitempty"`
	Score     float64        `json:"score,omitempty"` // business relevance, not similarity
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Version is bumped by the store on every write and checked on
	// update/delete so racing merges fail with ConflictError.
	Version int64 `json:"version"`
}

func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// ValidateMetadata enforces the scalar-only metadata contract: values must be
// string, bool, or a numeric kind. Nested structures make the metadata
// overlap factor ill-defined and are rejected.
func ValidateMetadata(md map[string]any) error {
	for k, v := range md {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64, nil:
		default:
			return &ValidationError{Field: "metadata." + k, Reason: fmt.Sprintf("unsupported value type %T", v)}
		}
	}
	return nil
}
