package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/config"
	"github.com/agenthands/relate/internal/core/cluster"
	"github.com/agenthands/relate/internal/core/finder"
	"github.com/agenthands/relate/internal/core/merge"
	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/core/resolve"
	"github.com/agenthands/relate/internal/core/scoring"
	"github.com/agenthands/relate/internal/store"
)

// Engine is the entity resolution facade: duplicate search, merge, linking,
// clustering, and stats over one shared graph store. All operations are
// tenant-scoped and hold no state between calls, so the engine itself
// scales horizontally.
type Engine struct {
	Store     store.Store
	Scorer    *scoring.Scorer
	Finder    *finder.Finder
	Resolver  *resolve.Resolver
	Merger    *merge.Executor
	Clusterer *cluster.Detector

	logger *zap.Logger
}

func NewEngine(st store.Store, cfg *config.Config, arbiter resolve.Arbiter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	scorer := scoring.NewScorer(cfg.Scoring.Weights)
	resolver := resolve.NewResolver(arbiter, time.Duration(cfg.Resolution.ArbitrationTimeoutSeconds)*time.Second, logger)

	return &Engine{
		Store:     st,
		Scorer:    scorer,
		Finder:    finder.New(st, scorer, logger),
		Resolver:  resolver,
		Merger:    merge.NewExecutor(st, resolver, logger),
		Clusterer: cluster.NewDetector(),
		logger:    logger,
	}
}

func (e *Engine) FindDuplicates(ctx context.Context, tenantID string, opts finder.Options) (*finder.Result, error) {
	return e.Finder.FindDuplicates(ctx, tenantID, opts)
}

func (e *Engine) FindDuplicatesFor(ctx context.Context, tenantID, contactID string, opts finder.Options) (*finder.Result, error) {
	return e.Finder.FindDuplicatesFor(ctx, tenantID, contactID, opts)
}

func (e *Engine) Merge(ctx context.Context, tenantID, survivorID, loserID string, strategy model.Strategy) (*model.MergeResult, error) {
	return e.Merger.Merge(ctx, tenantID, survivorID, loserID, strategy)
}

func (e *Engine) PreviewMerge(ctx context.Context, tenantID, survivorID, loserID string, strategy model.Strategy) (*merge.Preview, error) {
	return e.Merger.DryRun(ctx, tenantID, survivorID, loserID, strategy)
}

// Link records an advisory SIMILAR_TO edge between two contacts, for
// matches below the merge threshold. Idempotent: a second call with a
// refreshed score updates the existing edge.
func (e *Engine) Link(ctx context.Context, tenantID, aID, bID string, score float64, factors model.FactorBreakdown) (*model.Relationship, error) {
	if tenantID == "" {
		return nil, &model.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	if aID == bID {
		return nil, &model.ValidationError{Field: "b_id", Reason: "cannot link a contact to itself"}
	}
	if score < 0 || score > 1 {
		return nil, &model.ValidationError{Field: "score", Reason: "must be in [0,1]"}
	}
	rel, err := e.Store.UpsertSimilarityEdge(ctx, tenantID, aID, bID, score, factors)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("similarity link recorded",
		zap.String("tenant_id", tenantID),
		zap.String("a_id", aID),
		zap.String("b_id", bID),
		zap.Float64("score", score))
	return rel, nil
}

func (e *Engine) Stats(ctx context.Context, tenantID string) (*model.TenantStats, error) {
	if tenantID == "" {
		return nil, &model.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	return e.Store.Stats(ctx, tenantID)
}

// Clusters groups the tenant's contacts into duplicate-review families over
// their SIMILAR_TO edges.
func (e *Engine) Clusters(ctx context.Context, tenantID string) ([]cluster.Cluster, error) {
	if tenantID == "" {
		return nil, &model.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}

	var contacts []*model.Contact
	cursor := ""
	for {
		page, next, err := e.Store.ListContacts(ctx, tenantID, cursor, finder.DefaultPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list contacts: %w", err)
		}
		contacts = append(contacts, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	seen := make(map[string]struct{})
	var rels []*model.Relationship
	for _, c := range contacts {
		incident, err := e.Store.ListRelationships(ctx, tenantID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationships for %s: %w", c.ID, err)
		}
		for _, r := range incident {
			if r.Type != model.RelSimilarTo {
				continue
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			rels = append(rels, r)
		}
	}

	return e.Clusterer.Detect(contacts, rels), nil
}
