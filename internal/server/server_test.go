package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/relate/internal/config"
	"github.com/agenthands/relate/internal/core"
	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/store"
)

func newTestServer(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	engine := core.NewEngine(st, config.Default(), nil, nil)
	return New(engine, nil).SetupRouter(), st
}

func seedPair(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	_, err := st.UpsertContact(ctx, &model.Contact{ID: "a", TenantID: "t-1", Email: "j@x.com", Name: "J. Doe"})
	require.NoError(t, err)
	_, err = st.UpsertContact(ctx, &model.Contact{ID: "b", TenantID: "t-1", Email: "j@x.com", Name: "John Doe"})
	require.NoError(t, err)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFindEndpoint(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)

	w := doJSON(t, r, http.MethodPost, "/find", gin.H{"tenant_id": "t-1", "threshold": 0.5})
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Matches []model.MatchResult `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Matches, 1)
	assert.ElementsMatch(t, []string{"a", "b"},
		[]string{result.Matches[0].ContactA.ID, result.Matches[0].ContactB.ID})
}

func TestFindEndpointRejectsBadInput(t *testing.T) {
	r, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/find", gin.H{"threshold": 0.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/find", gin.H{"tenant_id": "t-1", "threshold": 2.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeEndpoint(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)

	w := doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "b",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result model.MergeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "b", result.RemovedID)
	assert.Equal(t, "John Doe", result.Merged.Name)

	// Merging the removed contact again maps NotFoundError to 404.
	w = doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "b",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMergeEndpointDryRun(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)

	w := doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "b", "dry_run": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var preview struct {
		Merged *model.Contact `json:"merged_record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "John Doe", preview.Merged.Name)

	// Still two contacts afterwards.
	_, err := st.GetContact(context.Background(), "t-1", "b")
	require.NoError(t, err)
}

func TestMergeEndpointErrorMapping(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)
	_, err := st.UpsertContact(context.Background(), &model.Contact{ID: "z", TenantID: "t-2"})
	require.NoError(t, err)

	// Unknown strategy.
	w := doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "b", "strategy": "coin_flip",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Cross-tenant loser.
	w = doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "z",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Missing loser.
	w = doJSON(t, r, http.MethodPost, "/merge", gin.H{
		"tenant_id": "t-1", "survivor_id": "a", "loser_id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLinkAndStatsEndpoints(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)

	w := doJSON(t, r, http.MethodPost, "/link", gin.H{
		"tenant_id": "t-1", "a_id": "a", "b_id": "b", "score": 0.72,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var rel model.Relationship
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rel))
	assert.Equal(t, model.RelSimilarTo, rel.Type)

	w = doJSON(t, r, http.MethodGet, "/stats?tenant_id=t-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.TenantStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalContacts)
	assert.Equal(t, 1, stats.SimilarityLinks)
	assert.Equal(t, 0.72, stats.AvgSimilarityScore)
}

func TestClustersEndpoint(t *testing.T) {
	r, st := newTestServer(t)
	seedPair(t, st)

	w := doJSON(t, r, http.MethodPost, "/link", gin.H{
		"tenant_id": "t-1", "a_id": "a", "b_id": "b", "score": 0.8,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/clusters?tenant_id=t-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Clusters []struct {
			Contacts []*model.Contact `json:"contacts"`
			MaxScore float64          `json:"max_score"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Clusters, 1)
	assert.Len(t, body.Clusters[0].Contacts, 2)
	assert.Equal(t, 0.8, body.Clusters[0].MaxScore)
}
