package merge

import (
	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/store"
)

// Plan is the full set of edge rewrites and deletions a merge will perform,
// computed up front so it can be inspected, previewed, and tested without
// touching the graph.
type Plan struct {
	TenantID   string            `json:"tenant_id"`
	SurvivorID string            `json:"survivor_id"`
	LoserID    string            `json:"loser_id"`
	Repoints   []store.RepointOp `json:"repoints"`
	DeleteRels []string          `json:"delete_rels"`
}

// BuildPlan computes the edge plan for merging loser into survivor. Pure:
// it only inspects the relationship lists it is given.
//
// Every edge incident on the loser is re-pointed to the survivor unless the
// rewrite would produce a self-loop (an edge between the pair being merged)
// or an exact duplicate of an edge the survivor already has, in which case
// the edge is dropped instead. Dropping duplicates keeps repeated merges
// from inflating relationship counts.
func BuildPlan(tenantID, survivorID, loserID string, survivorRels, loserRels []*model.Relationship) Plan {
	plan := Plan{TenantID: tenantID, SurvivorID: survivorID, LoserID: loserID}

	seen := make(map[string]struct{}, len(survivorRels))
	for _, r := range survivorRels {
		seen[r.Identity()] = struct{}{}
	}

	for _, r := range loserRels {
		newSource, newTarget := r.SourceID, r.TargetID
		if newSource == loserID {
			newSource = survivorID
		}
		if newTarget == loserID {
			newTarget = survivorID
		}

		if newSource == newTarget {
			plan.DeleteRels = append(plan.DeleteRels, r.ID)
			continue
		}

		identity := r.Type + "|" + newSource + "|" + newTarget
		if _, dup := seen[identity]; dup {
			plan.DeleteRels = append(plan.DeleteRels, r.ID)
			continue
		}
		seen[identity] = struct{}{}

		plan.Repoints = append(plan.Repoints, store.RepointOp{
			RelID:       r.ID,
			Type:        r.Type,
			NewSourceID: newSource,
			NewTargetID: newTarget,
		})
	}

	return plan
}
