package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/relate/internal/core/model"
)

func contact(id string) *model.Contact {
	return &model.Contact{ID: id, TenantID: "t-1"}
}

func simRel(id, a, b string, score float64) *model.Relationship {
	return &model.Relationship{ID: id, TenantID: "t-1", Type: model.RelSimilarTo, SourceID: a, TargetID: b, Score: score}
}

func memberIDs(c Cluster) []string {
	ids := make([]string, 0, len(c.Contacts))
	for _, m := range c.Contacts {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestDetectSeparatesFamilies(t *testing.T) {
	d := NewDetector()

	contacts := []*model.Contact{
		contact("a-1"), contact("a-2"), contact("a-3"),
		contact("b-1"), contact("b-2"),
		contact("lonely"),
	}
	rels := []*model.Relationship{
		simRel("r-1", "a-1", "a-2", 0.95),
		simRel("r-2", "a-2", "a-3", 0.90),
		simRel("r-3", "b-1", "b-2", 0.75),
	}

	clusters := d.Detect(contacts, rels)
	require.Len(t, clusters, 2)

	// Stronger family first.
	assert.Equal(t, 0.95, clusters[0].MaxScore)
	assert.ElementsMatch(t, []string{"a-1", "a-2", "a-3"}, memberIDs(clusters[0]))
	assert.Equal(t, 0.75, clusters[1].MaxScore)
	assert.ElementsMatch(t, []string{"b-1", "b-2"}, memberIDs(clusters[1]))
}

func TestDetectIgnoresNonSimilarityEdges(t *testing.T) {
	d := NewDetector()

	contacts := []*model.Contact{contact("a"), contact("b")}
	rels := []*model.Relationship{
		{ID: "r-1", TenantID: "t-1", Type: model.RelConnectedTo, SourceID: "a", TargetID: "b"},
	}

	assert.Empty(t, d.Detect(contacts, rels))
}

func TestDetectDropsSingletons(t *testing.T) {
	d := NewDetector()

	contacts := []*model.Contact{contact("a"), contact("b"), contact("c")}
	rels := []*model.Relationship{simRel("r-1", "a", "b", 0.8)}

	clusters := d.Detect(contacts, rels)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, memberIDs(clusters[0]))
}

func TestDetectSkipsEdgesWithUnknownEndpoints(t *testing.T) {
	d := NewDetector()

	contacts := []*model.Contact{contact("a"), contact("b")}
	rels := []*model.Relationship{
		simRel("r-1", "a", "ghost", 0.9),
		simRel("r-2", "a", "b", 0.7),
	}

	clusters := d.Detect(contacts, rels)
	require.Len(t, clusters, 1)
	assert.Equal(t, 0.7, clusters[0].MaxScore)
}

func TestDetectDeterministic(t *testing.T) {
	d := NewDetector()

	contacts := []*model.Contact{
		contact("c-1"), contact("c-2"), contact("c-3"), contact("c-4"),
	}
	rels := []*model.Relationship{
		simRel("r-1", "c-1", "c-2", 0.8),
		simRel("r-2", "c-3", "c-4", 0.8),
	}

	first := d.Detect(contacts, rels)
	for i := 0; i < 10; i++ {
		again := d.Detect(contacts, rels)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, memberIDs(first[j]), memberIDs(again[j]))
		}
	}
}

func TestDetectEmptyInput(t *testing.T) {
	d := NewDetector()
	assert.Empty(t, d.Detect(nil, nil))
}
