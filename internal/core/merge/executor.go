package merge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/core/resolve"
	"github.com/agenthands/relate/internal/store"
)

// Executor orchestrates a merge: resolve field conflicts, compute the edge
// plan, then hand the whole thing to the store as one atomic apply.
//
// A repeated merge of an already-removed loser returns NotFoundError, never
// a silent no-op: once the loser is gone there is nothing meaningful to
// merge again, and callers need to see that.
type Executor struct {
	store    store.Store
	resolver *resolve.Resolver
	logger   *zap.Logger
}

func NewExecutor(st store.Store, resolver *resolve.Resolver, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{store: st, resolver: resolver, logger: logger}
}

// Preview carries everything a merge would do, without having done it.
type Preview struct {
	Merged    *model.Contact        `json:"merged_record"`
	Conflicts []model.FieldConflict `json:"conflicts"`
	Plan      Plan                  `json:"plan"`
}

// Merge merges loser into survivor within a tenant and returns the merged
// record, the removed id, and the conflict audit trail.
func (e *Executor) Merge(ctx context.Context, tenantID, survivorID, loserID string, strategy model.Strategy) (*model.MergeResult, error) {
	prep, err := e.prepare(ctx, tenantID, survivorID, loserID, strategy)
	if err != nil {
		return nil, err
	}

	apply := store.MergeApply{
		TenantID:     tenantID,
		Merged:       prep.Merged,
		LoserID:      loserID,
		LoserVersion: prep.loserVersion,
		Repoints:     prep.Plan.Repoints,
		DeleteRels:   prep.Plan.DeleteRels,
	}
	if err := e.store.ApplyMerge(ctx, apply); err != nil {
		return nil, fmt.Errorf("failed to apply merge of %s into %s: %w", loserID, survivorID, err)
	}

	merged, err := e.store.GetContact(ctx, tenantID, survivorID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload merged contact: %w", err)
	}

	e.logger.Info("merged contacts",
		zap.String("tenant_id", tenantID),
		zap.String("survivor_id", survivorID),
		zap.String("loser_id", loserID),
		zap.String("strategy", string(strategy)),
		zap.Int("conflicts", len(prep.Conflicts)),
		zap.Int("repointed", len(prep.Plan.Repoints)),
		zap.Int("dropped_edges", len(prep.Plan.DeleteRels)))

	return &model.MergeResult{
		Merged:    merged,
		RemovedID: loserID,
		Conflicts: prep.Conflicts,
	}, nil
}

// DryRun computes the preview for a merge without mutating the graph.
func (e *Executor) DryRun(ctx context.Context, tenantID, survivorID, loserID string, strategy model.Strategy) (*Preview, error) {
	prep, err := e.prepare(ctx, tenantID, survivorID, loserID, strategy)
	if err != nil {
		return nil, err
	}
	return &prep.Preview, nil
}

type preparation struct {
	Preview
	loserVersion int64
}

func (e *Executor) prepare(ctx context.Context, tenantID, survivorID, loserID string, strategy model.Strategy) (*preparation, error) {
	if tenantID == "" {
		return nil, &model.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if survivorID == loserID {
		return nil, &model.ValidationError{Field: "loser_id", Reason: "survivor and loser must differ"}
	}

	survivor, err := e.loadInTenant(ctx, tenantID, survivorID)
	if err != nil {
		return nil, err
	}
	loser, err := e.loadInTenant(ctx, tenantID, loserID)
	if err != nil {
		return nil, err
	}

	merged, conflicts, err := e.resolver.ResolveRecords(ctx, survivor, loser, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflicts: %w", err)
	}

	survivorRels, err := e.store.ListRelationships(ctx, tenantID, survivorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list survivor relationships: %w", err)
	}
	loserRels, err := e.store.ListRelationships(ctx, tenantID, loserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loser relationships: %w", err)
	}

	return &preparation{
		Preview: Preview{
			Merged:    merged,
			Conflicts: conflicts,
			Plan:      BuildPlan(tenantID, survivorID, loserID, survivorRels, loserRels),
		},
		loserVersion: loser.Version,
	}, nil
}

// loadInTenant fetches a contact within the tenant. When the id exists but
// in a different tenant, the caller gets CrossTenantError instead of
// NotFoundError; the merge must make that distinction visible.
func (e *Executor) loadInTenant(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	c, err := e.store.GetContact(ctx, tenantID, id)
	if err == nil {
		if c.TenantID != tenantID {
			return nil, &model.CrossTenantError{ID: id, WantTenant: tenantID, GotTenant: c.TenantID}
		}
		return c, nil
	}
	if !model.IsNotFound(err) {
		return nil, err
	}
	if other, lerr := e.store.LookupContact(ctx, id); lerr == nil && other.TenantID != tenantID {
		return nil, &model.CrossTenantError{ID: id, WantTenant: tenantID, GotTenant: other.TenantID}
	}
	return nil, err
}
