package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/relate/internal/config"
	"github.com/agenthands/relate/internal/core/finder"
	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewEngine(st, config.Default(), nil, nil), st
}

func seedContacts(t *testing.T, st *store.MemoryStore, contacts ...*model.Contact) {
	t.Helper()
	for _, c := range contacts {
		_, err := st.UpsertContact(context.Background(), c)
		require.NoError(t, err)
	}
}

func TestEngineEndToEnd(t *testing.T) {
	ctx := context.Background()
	e, st := newEngine(t)

	seedContacts(t, st,
		&model.Contact{ID: "a", TenantID: "t-1", Email: "j@x.com", Name: "John Doe", Phone: "555-1234"},
		&model.Contact{ID: "b", TenantID: "t-1", Email: "j@x.com", Name: "John Doe", Phone: "5551234"},
		&model.Contact{ID: "c", TenantID: "t-1", Email: "mia@corp.com", Name: "Mia Wong"},
	)

	// Find the duplicate pair.
	found, err := e.FindDuplicates(ctx, "t-1", finder.Options{})
	require.NoError(t, err)
	require.Len(t, found.Matches, 1)
	match := found.Matches[0]
	assert.Equal(t, model.ActionMerge, match.SuggestedAction)

	// Merge it.
	result, err := e.Merge(ctx, "t-1", match.ContactA.ID, match.ContactB.ID, model.StrategyPreferComplete)
	require.NoError(t, err)
	assert.Equal(t, match.ContactB.ID, result.RemovedID)

	// A second scan finds nothing left to merge.
	found, err = e.FindDuplicates(ctx, "t-1", finder.Options{})
	require.NoError(t, err)
	assert.Empty(t, found.Matches)

	stats, err := e.Stats(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalContacts)
}

func TestLinkIdempotent(t *testing.T) {
	ctx := context.Background()
	e, st := newEngine(t)

	seedContacts(t, st,
		&model.Contact{ID: "a", TenantID: "t-1"},
		&model.Contact{ID: "b", TenantID: "t-1"},
	)

	first, err := e.Link(ctx, "t-1", "a", "b", 0.75, model.FactorBreakdown{Email: 1})
	require.NoError(t, err)
	assert.Equal(t, model.RelSimilarTo, first.Type)

	// Re-linking the same pair refreshes the edge instead of adding one.
	second, err := e.Link(ctx, "t-1", "b", "a", 0.82, model.FactorBreakdown{Email: 1, Name: 0.6})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.82, second.Score)

	stats, err := e.Stats(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SimilarityLinks)
	assert.Equal(t, 0.82, stats.AvgSimilarityScore)
}

func TestLinkValidation(t *testing.T) {
	ctx := context.Background()
	e, st := newEngine(t)
	seedContacts(t, st, &model.Contact{ID: "a", TenantID: "t-1"})

	_, err := e.Link(ctx, "", "a", "b", 0.5, model.FactorBreakdown{})
	assert.True(t, model.IsValidation(err))

	_, err = e.Link(ctx, "t-1", "a", "a", 0.5, model.FactorBreakdown{})
	assert.True(t, model.IsValidation(err))

	_, err = e.Link(ctx, "t-1", "a", "b", 1.5, model.FactorBreakdown{})
	assert.True(t, model.IsValidation(err))

	_, err = e.Link(ctx, "t-1", "a", "ghost", 0.5, model.FactorBreakdown{})
	assert.True(t, model.IsNotFound(err))
}

func TestClusters(t *testing.T) {
	ctx := context.Background()
	e, st := newEngine(t)

	seedContacts(t, st,
		&model.Contact{ID: "a", TenantID: "t-1"},
		&model.Contact{ID: "b", TenantID: "t-1"},
		&model.Contact{ID: "c", TenantID: "t-1"},
		&model.Contact{ID: "d", TenantID: "t-1"},
	)

	_, err := e.Link(ctx, "t-1", "a", "b", 0.9, model.FactorBreakdown{})
	require.NoError(t, err)
	_, err = e.Link(ctx, "t-1", "b", "c", 0.8, model.FactorBreakdown{})
	require.NoError(t, err)

	clusters, err := e.Clusters(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Contacts, 3)
	assert.Equal(t, 0.9, clusters[0].MaxScore)

	_, err = e.Clusters(ctx, "")
	assert.True(t, model.IsValidation(err))
}

func TestStatsValidation(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Stats(context.Background(), "")
	assert.True(t, model.IsValidation(err))
}

func TestPreviewMergeLeavesGraphIntact(t *testing.T) {
	ctx := context.Background()
	e, st := newEngine(t)

	seedContacts(t, st,
		&model.Contact{ID: "a", TenantID: "t-1", Email: "j@x.com", Name: "J. Doe"},
		&model.Contact{ID: "b", TenantID: "t-1", Email: "j@x.com", Name: "John Doe"},
	)

	preview, err := e.PreviewMerge(ctx, "t-1", "a", "b", model.StrategyPreferComplete)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", preview.Merged.Name)

	// Both contacts still exist after the preview.
	_, err = st.GetContact(ctx, "t-1", "a")
	require.NoError(t, err)
	_, err = st.GetContact(ctx, "t-1", "b")
	require.NoError(t, err)
}
