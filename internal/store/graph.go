package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/driver"
)

// GraphStore implements Store on a Memgraph/Neo4j property graph. Contacts
// are :Contact nodes keyed by (id, tenant_id); relationships carry a uuid
// and tenant_id property. Optimistic concurrency rides on a version
// property checked in every mutating query.
type GraphStore struct {
	driver driver.GraphDriver
	logger *zap.Logger
	now    func() time.Time
}

func NewGraphStore(d driver.GraphDriver, logger *zap.Logger) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		driver: d,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var relTypeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func (s *GraphStore) GetContact(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	result, err := s.driver.ExecuteQuery(ctx, driver.GetContactQuery, map[string]interface{}{
		"id": id, "tenant_id": tenantID,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, &model.NotFoundError{Kind: "contact", ID: id, TenantID: tenantID}
	}
	return contactFromRecord(result.Records[0])
}

func (s *GraphStore) LookupContact(ctx context.Context, id string) (*model.Contact, error) {
	result, err := s.driver.ExecuteQuery(ctx, driver.LookupContactQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, &model.NotFoundError{Kind: "contact", ID: id}
	}
	return contactFromRecord(result.Records[0])
}

func (s *GraphStore) ListContacts(ctx context.Context, tenantID, cursor string, limit int) ([]*model.Contact, string, error) {
	if limit <= 0 {
		limit = 100
	}
	// Fetch one extra row to learn whether another page exists.
	result, err := s.driver.ExecuteQuery(ctx, driver.ListContactsQuery, map[string]interface{}{
		"tenant_id": tenantID, "cursor": cursor, "limit": limit + 1,
	})
	if err != nil {
		return nil, "", err
	}

	records := result.Records
	next := ""
	if len(records) > limit {
		records = records[:limit]
		last, err := contactFromRecord(records[len(records)-1])
		if err != nil {
			return nil, "", err
		}
		next = last.ID
	}

	contacts := make([]*model.Contact, 0, len(records))
	for _, rec := range records {
		c, err := contactFromRecord(rec)
		if err != nil {
			return nil, "", err
		}
		contacts = append(contacts, c)
	}
	return contacts, next, nil
}

func (s *GraphStore) UpsertContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	if err := model.ValidateMetadata(c.Metadata); err != nil {
		return nil, err
	}
	params, err := contactParams(c, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.driver.ExecuteQuery(ctx, driver.UpdateContactQuery, params)
	if err != nil {
		return nil, err
	}
	if len(updated.Records) == 0 {
		// Either the contact is new or the version check failed.
		existing, err := s.driver.ExecuteQuery(ctx, driver.ContactVersionQuery, map[string]interface{}{
			"id": c.ID, "tenant_id": c.TenantID,
		})
		if err != nil {
			return nil, err
		}
		if len(existing.Records) > 0 {
			return nil, &model.ConflictError{ID: c.ID, Detail: "contact version mismatch"}
		}
		if _, err := s.driver.ExecuteQuery(ctx, driver.CreateContactQuery, params); err != nil {
			return nil, err
		}
	}
	return s.GetContact(ctx, c.TenantID, c.ID)
}

func (s *GraphStore) DeleteContact(ctx context.Context, tenantID, id string, version int64) error {
	result, err := s.driver.ExecuteQuery(ctx, driver.DeleteContactQuery, map[string]interface{}{
		"id": id, "tenant_id": tenantID, "version": version,
	})
	if err != nil {
		return err
	}
	if deleted, _ := recordInt64(result.Records, "deleted"); deleted == 0 {
		existing, err := s.driver.ExecuteQuery(ctx, driver.ContactVersionQuery, map[string]interface{}{
			"id": id, "tenant_id": tenantID,
		})
		if err != nil {
			return err
		}
		if len(existing.Records) > 0 {
			return &model.ConflictError{ID: id, Detail: "contact version mismatch"}
		}
		return &model.NotFoundError{Kind: "contact", ID: id, TenantID: tenantID}
	}
	return nil
}

func (s *GraphStore) ListRelationships(ctx context.Context, tenantID, contactID string) ([]*model.Relationship, error) {
	result, err := s.driver.ExecuteQuery(ctx, driver.ListRelationshipsQuery, map[string]interface{}{
		"tenant_id": tenantID, "contact_id": contactID,
	})
	if err != nil {
		return nil, err
	}
	rels := make([]*model.Relationship, 0, len(result.Records))
	for _, rec := range result.Records {
		r, err := relationshipFromRecord(rec, tenantID)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, nil
}

func (s *GraphStore) RepointRelationship(ctx context.Context, tenantID, relID, newSourceID, newTargetID string) error {
	rels, err := s.relationshipType(ctx, tenantID, relID)
	if err != nil {
		return err
	}
	query, err := repointQuery(rels)
	if err != nil {
		return err
	}
	result, err := s.driver.ExecuteQuery(ctx, query, map[string]interface{}{
		"id": relID, "tenant_id": tenantID, "new_source": newSourceID, "new_target": newTargetID,
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return &model.NotFoundError{Kind: "relationship", ID: relID, TenantID: tenantID}
	}
	return nil
}

func (s *GraphStore) relationshipType(ctx context.Context, tenantID, relID string) (string, error) {
	result, err := s.driver.ExecuteQuery(ctx, `
		MATCH ()-[e {uuid: $id, tenant_id: $tenant_id}]->()
		RETURN type(e) AS type
	`, map[string]interface{}{"id": relID, "tenant_id": tenantID})
	if err != nil {
		return "", err
	}
	if len(result.Records) == 0 {
		return "", &model.NotFoundError{Kind: "relationship", ID: relID, TenantID: tenantID}
	}
	t, _ := result.Records[0].Get("type")
	typ, _ := t.(string)
	return typ, nil
}

func repointQuery(relType string) (string, error) {
	if !relTypeRe.MatchString(relType) {
		return "", fmt.Errorf("refusing to repoint relationship of type %q", relType)
	}
	return fmt.Sprintf(driver.RepointRelationshipQuery, relType), nil
}

func (s *GraphStore) DeleteRelationship(ctx context.Context, tenantID, relID string) error {
	result, err := s.driver.ExecuteQuery(ctx, driver.DeleteRelationshipQuery, map[string]interface{}{
		"id": relID, "tenant_id": tenantID,
	})
	if err != nil {
		return err
	}
	if deleted, _ := recordInt64(result.Records, "deleted"); deleted == 0 {
		return &model.NotFoundError{Kind: "relationship", ID: relID, TenantID: tenantID}
	}
	return nil
}

func (s *GraphStore) UpsertSimilarityEdge(ctx context.Context, tenantID, aID, bID string, score float64, factors model.FactorBreakdown) (*model.Relationship, error) {
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize factors: %w", err)
	}
	now := s.now().Format(time.RFC3339Nano)
	result, err := s.driver.ExecuteQuery(ctx, driver.UpsertSimilarityEdgeQuery, map[string]interface{}{
		"a_id": aID, "b_id": bID, "tenant_id": tenantID,
		"uuid": uuid.New().String(), "score": score,
		"factors_json": string(factorsJSON), "now": now,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, &model.NotFoundError{Kind: "contact", ID: aID + "/" + bID, TenantID: tenantID}
	}

	rec := result.Records[0]
	idVal, _ := rec.Get("id")
	id, _ := idVal.(string)
	f := factors
	return &model.Relationship{
		ID:        id,
		TenantID:  tenantID,
		Type:      model.RelSimilarTo,
		SourceID:  aID,
		TargetID:  bID,
		Score:     score,
		Factors:   &f,
		CreatedAt: parseTime(rec, "created_at"),
		UpdatedAt: parseTime(rec, "updated_at"),
	}, nil
}

// ApplyMerge runs the whole merge inside one managed write transaction:
// survivor update, edge repoints, edge drops, loser delete. Version
// mismatches abort the transaction with ConflictError.
func (s *GraphStore) ApplyMerge(ctx context.Context, m MergeApply) error {
	params, err := contactParams(m.Merged, s.now())
	if err != nil {
		return err
	}

	return s.driver.ExecuteWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		updated, err := txCollect(ctx, tx, driver.UpdateContactQuery, params)
		if err != nil {
			return err
		}
		if len(updated) == 0 {
			return &model.ConflictError{ID: m.Merged.ID, Detail: "contact version mismatch or contact missing"}
		}

		for _, op := range m.Repoints {
			query, err := repointQuery(op.Type)
			if err != nil {
				return err
			}
			repointed, err := txCollect(ctx, tx, query, map[string]interface{}{
				"id": op.RelID, "tenant_id": m.TenantID,
				"new_source": op.NewSourceID, "new_target": op.NewTargetID,
			})
			if err != nil {
				return err
			}
			if len(repointed) == 0 {
				return &model.NotFoundError{Kind: "relationship", ID: op.RelID, TenantID: m.TenantID}
			}
		}

		for _, relID := range m.DeleteRels {
			if _, err := txCollect(ctx, tx, driver.DeleteRelationshipQuery, map[string]interface{}{
				"id": relID, "tenant_id": m.TenantID,
			}); err != nil {
				return err
			}
		}

		deleted, err := txCollect(ctx, tx, driver.DeleteContactQuery, map[string]interface{}{
			"id": m.LoserID, "tenant_id": m.TenantID, "version": m.LoserVersion,
		})
		if err != nil {
			return err
		}
		if n, _ := recordInt64(deleted, "deleted"); n == 0 {
			return &model.ConflictError{ID: m.LoserID, Detail: "contact version mismatch or contact missing"}
		}
		return nil
	})
}

func (s *GraphStore) Stats(ctx context.Context, tenantID string) (*model.TenantStats, error) {
	stats := &model.TenantStats{}

	total, err := s.driver.ExecuteQuery(ctx, driver.CountContactsQuery, map[string]interface{}{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	n, _ := recordInt64(total.Records, "total")
	stats.TotalContacts = int(n)

	links, err := s.driver.ExecuteQuery(ctx, driver.SimilarityLinkStatsQuery, map[string]interface{}{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	if len(links.Records) > 0 {
		l, _ := recordInt64(links.Records, "links")
		stats.SimilarityLinks = int(l)
		if avg, ok := links.Records[0].Get("avg_score"); ok {
			if f, ok := avg.(float64); ok {
				stats.AvgSimilarityScore = f
			}
		}
	}

	linked, err := s.driver.ExecuteQuery(ctx, driver.LinkedContactsQuery, map[string]interface{}{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	ln, _ := recordInt64(linked.Records, "linked")
	stats.ContactsWithDuplicates = int(ln)

	return stats, nil
}

func txCollect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func contactParams(c *model.Contact, now time.Time) (map[string]interface{}, error) {
	metadataJSON := ""
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize metadata: %w", err)
		}
		metadataJSON = string(b)
	}
	return map[string]interface{}{
		"id":            c.ID,
		"tenant_id":     c.TenantID,
		"email":         c.Email,
		"name":          c.Name,
		"phone":         c.Phone,
		"company":       c.Company,
		"score":         c.Score,
		"metadata_json": metadataJSON,
		"version":       c.Version,
		"now":           now.Format(time.RFC3339Nano),
	}, nil
}

func contactFromRecord(rec *neo4j.Record) (*model.Contact, error) {
	c := &model.Contact{
		ID:        recString(rec, "id"),
		TenantID:  recString(rec, "tenant_id"),
		Email:     recString(rec, "email"),
		Name:      recString(rec, "name"),
		Phone:     recString(rec, "phone"),
		Company:   recString(rec, "company"),
		Score:     recFloat(rec, "score"),
		CreatedAt: parseTime(rec, "created_at"),
		UpdatedAt: parseTime(rec, "updated_at"),
		Version:   recInt(rec, "version"),
	}
	if mj := recString(rec, "metadata_json"); mj != "" {
		if err := json.Unmarshal([]byte(mj), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata for contact %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func relationshipFromRecord(rec *neo4j.Record, tenantID string) (*model.Relationship, error) {
	r := &model.Relationship{
		ID:        recString(rec, "id"),
		TenantID:  tenantID,
		Type:      recString(rec, "type"),
		SourceID:  recString(rec, "source_id"),
		TargetID:  recString(rec, "target_id"),
		Score:     recFloat(rec, "score"),
		CreatedAt: parseTime(rec, "created_at"),
		UpdatedAt: parseTime(rec, "updated_at"),
	}
	if fj := recString(rec, "factors_json"); fj != "" {
		var f model.FactorBreakdown
		if err := json.Unmarshal([]byte(fj), &f); err != nil {
			return nil, fmt.Errorf("failed to parse factors for relationship %s: %w", r.ID, err)
		}
		r.Factors = &f
	}
	return r, nil
}

func recString(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func recFloat(rec *neo4j.Record, key string) float64 {
	if v, ok := rec.Get(key); ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func recInt(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func recordInt64(records []*neo4j.Record, key string) (int64, bool) {
	if len(records) == 0 {
		return 0, false
	}
	return recInt(records[0], key), true
}

func parseTime(rec *neo4j.Record, key string) time.Time {
	if v, ok := rec.Get(key); ok {
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
