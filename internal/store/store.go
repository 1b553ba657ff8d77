package store

import (
	"context"

	"github.com/agenthands/relate/internal/core/model"
)

// Store is the engine's only persistence collaborator. Every method is
// tenant-scoped; implementations must never return records from another
// tenant (LookupContact is the one deliberate exception, see below).
type Store interface {
	// GetContact returns a contact by id within a tenant, or NotFoundError.
	GetContact(ctx context.Context, tenantID, id string) (*model.Contact, error)

	// LookupContact finds a contact by id across all tenants. It exists
	// solely so the merge path can distinguish CrossTenantError from
	// NotFoundError; nothing else may call it.
	LookupContact(ctx context.Context, id string) (*model.Contact, error)

	// ListContacts pages through a tenant's contacts. An empty cursor
	// starts from the beginning; the returned cursor is "" on the last
	// page.
	ListContacts(ctx context.Context, tenantID, cursor string, limit int) ([]*model.Contact, string, error)

	// UpsertContact creates or updates a contact. On update the supplied
	// Version must match the stored one or ConflictError is returned; the
	// stored version is bumped on success and reflected in the result.
	UpsertContact(ctx context.Context, c *model.Contact) (*model.Contact, error)

	// DeleteContact removes a contact after a version check. Any edges
	// still incident on it are removed with it.
	DeleteContact(ctx context.Context, tenantID, id string, version int64) error

	// ListRelationships returns every relationship incident on a contact,
	// as source or target, of every type.
	ListRelationships(ctx context.Context, tenantID, contactID string) ([]*model.Relationship, error)

	// RepointRelationship rewrites one endpoint of a relationship.
	RepointRelationship(ctx context.Context, tenantID, relID, newSourceID, newTargetID string) error

	// DeleteRelationship removes a single relationship by id.
	DeleteRelationship(ctx context.Context, tenantID, relID string) error

	// UpsertSimilarityEdge creates or refreshes the advisory SIMILAR_TO
	// edge between two contacts. At most one such edge exists per pair,
	// regardless of argument order.
	UpsertSimilarityEdge(ctx context.Context, tenantID, aID, bID string, score float64, factors model.FactorBreakdown) (*model.Relationship, error)

	// ApplyMerge applies a computed merge as one atomic unit as far as the
	// backend allows: persist the merged record, re-point or drop the
	// loser's edges, then delete the loser. Version mismatches on either
	// record surface as ConflictError and nothing is applied.
	ApplyMerge(ctx context.Context, m MergeApply) error

	// Stats aggregates tenant-wide resolution statistics.
	Stats(ctx context.Context, tenantID string) (*model.TenantStats, error)
}

// RepointOp rewrites one relationship's endpoints.
type RepointOp struct {
	RelID       string `json:"rel_id"`
	Type        string `json:"type"`
	NewSourceID string `json:"new_source_id"`
	NewTargetID string `json:"new_target_id"`
}

// MergeApply is the store-level half of a merge plan: the already-resolved
// record plus the exact edge rewrites and deletions to perform.
type MergeApply struct {
	TenantID string

	// Merged is persisted under the survivor's id; its Version field is
	// the expected stored version.
	Merged *model.Contact

	LoserID      string
	LoserVersion int64

	// Repoints are applied before the loser is deleted, so a failure
	// mid-merge leaves a recoverable state rather than lost edges.
	Repoints []RepointOp

	// DeleteRels are edges dropped instead of re-pointed: exact duplicates
	// of an edge the survivor already has, and self-loops.
	DeleteRels []string
}
