package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/relate/internal/core/model"
)

// MemoryStore is an in-memory adjacency implementation of Store. It backs
// the test suites and the -memory dev mode of the server. A single lock
// guards all tenants; per-contact version counters give the same optimistic
// concurrency semantics as the graph-backed store.
type MemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]map[string]*model.Contact      // tenant -> id -> contact
	rels     map[string]map[string]*model.Relationship // tenant -> rel id -> rel
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contacts: make(map[string]map[string]*model.Contact),
		rels:     make(map[string]map[string]*model.Relationship),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetContact(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[tenantID][id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "contact", ID: id, TenantID: tenantID}
	}
	return c.Clone(), nil
}

func (s *MemoryStore) LookupContact(ctx context.Context, id string) (*model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tenant := range s.contacts {
		if c, ok := tenant[id]; ok {
			return c.Clone(), nil
		}
	}
	return nil, &model.NotFoundError{Kind: "contact", ID: id}
}

func (s *MemoryStore) ListContacts(ctx context.Context, tenantID, cursor string, limit int) ([]*model.Contact, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.contacts[tenantID]))
	for id := range s.contacts[tenantID] {
		if cursor == "" || id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if limit <= 0 {
		limit = 100
	}
	next := ""
	if len(ids) > limit {
		ids = ids[:limit]
		next = ids[len(ids)-1]
	}

	page := make([]*model.Contact, 0, len(ids))
	for _, id := range ids {
		page = append(page, s.contacts[tenantID][id].Clone())
	}
	return page, next, nil
}

func (s *MemoryStore) UpsertContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	if err := model.ValidateMetadata(c.Metadata); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.upsertLocked(c)
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

func (s *MemoryStore) upsertLocked(c *model.Contact) (*model.Contact, error) {
	tenant, ok := s.contacts[c.TenantID]
	if !ok {
		tenant = make(map[string]*model.Contact)
		s.contacts[c.TenantID] = tenant
	}

	cp := c.Clone()
	cp.UpdatedAt = s.now()
	if existing, ok := tenant[c.ID]; ok {
		if existing.Version != c.Version {
			return nil, &model.ConflictError{ID: c.ID, Detail: "contact version mismatch"}
		}
		cp.CreatedAt = existing.CreatedAt
		cp.Version = existing.Version + 1
	} else {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = cp.UpdatedAt
		}
		cp.Version = 1
	}
	tenant[cp.ID] = cp
	return cp, nil
}

func (s *MemoryStore) DeleteContact(ctx context.Context, tenantID, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteContactLocked(tenantID, id, version)
}

func (s *MemoryStore) deleteContactLocked(tenantID, id string, version int64) error {
	existing, ok := s.contacts[tenantID][id]
	if !ok {
		return &model.NotFoundError{Kind: "contact", ID: id, TenantID: tenantID}
	}
	if existing.Version != version {
		return &model.ConflictError{ID: id, Detail: "contact version mismatch"}
	}
	delete(s.contacts[tenantID], id)
	for relID, r := range s.rels[tenantID] {
		if r.SourceID == id || r.TargetID == id {
			delete(s.rels[tenantID], relID)
		}
	}
	return nil
}

func (s *MemoryStore) ListRelationships(ctx context.Context, tenantID, contactID string) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRelsLocked(tenantID, contactID), nil
}

func (s *MemoryStore) listRelsLocked(tenantID, contactID string) []*model.Relationship {
	var out []*model.Relationship
	for _, r := range s.rels[tenantID] {
		if r.SourceID == contactID || r.TargetID == contactID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddRelationship seeds a domain relationship. The surrounding application
// owns these in production; tests and the dev mode create them here.
func (s *MemoryStore) AddRelationship(ctx context.Context, r *model.Relationship) (*model.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rels[r.TenantID] == nil {
		s.rels[r.TenantID] = make(map[string]*model.Relationship)
	}
	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = s.now()
	s.rels[r.TenantID][cp.ID] = &cp
	return &cp, nil
}

func (s *MemoryStore) RepointRelationship(ctx context.Context, tenantID, relID, newSourceID, newTargetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repointLocked(tenantID, relID, newSourceID, newTargetID)
}

func (s *MemoryStore) repointLocked(tenantID, relID, newSourceID, newTargetID string) error {
	r, ok := s.rels[tenantID][relID]
	if !ok {
		return &model.NotFoundError{Kind: "relationship", ID: relID, TenantID: tenantID}
	}
	r.SourceID = newSourceID
	r.TargetID = newTargetID
	r.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) DeleteRelationship(ctx context.Context, tenantID, relID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRelLocked(tenantID, relID)
}

func (s *MemoryStore) deleteRelLocked(tenantID, relID string) error {
	if _, ok := s.rels[tenantID][relID]; !ok {
		return &model.NotFoundError{Kind: "relationship", ID: relID, TenantID: tenantID}
	}
	delete(s.rels[tenantID], relID)
	return nil
}

func (s *MemoryStore) UpsertSimilarityEdge(ctx context.Context, tenantID, aID, bID string, score float64, factors model.FactorBreakdown) (*model.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[tenantID][aID]; !ok {
		return nil, &model.NotFoundError{Kind: "contact", ID: aID, TenantID: tenantID}
	}
	if _, ok := s.contacts[tenantID][bID]; !ok {
		return nil, &model.NotFoundError{Kind: "contact", ID: bID, TenantID: tenantID}
	}

	// One advisory edge per pair, whichever way the caller ordered the ids.
	for _, r := range s.rels[tenantID] {
		if r.Type != model.RelSimilarTo {
			continue
		}
		if (r.SourceID == aID && r.TargetID == bID) || (r.SourceID == bID && r.TargetID == aID) {
			r.Score = score
			f := factors
			r.Factors = &f
			r.UpdatedAt = s.now()
			cp := *r
			return &cp, nil
		}
	}

	if s.rels[tenantID] == nil {
		s.rels[tenantID] = make(map[string]*model.Relationship)
	}
	f := factors
	r := &model.Relationship{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Type:      model.RelSimilarTo,
		SourceID:  aID,
		TargetID:  bID,
		Score:     score,
		Factors:   &f,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	s.rels[tenantID][r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ApplyMerge(ctx context.Context, m MergeApply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating anything, so a failed apply
	// leaves the graph untouched.
	survivor, ok := s.contacts[m.TenantID][m.Merged.ID]
	if !ok {
		return &model.NotFoundError{Kind: "contact", ID: m.Merged.ID, TenantID: m.TenantID}
	}
	if survivor.Version != m.Merged.Version {
		return &model.ConflictError{ID: m.Merged.ID, Detail: "contact version mismatch"}
	}
	loser, ok := s.contacts[m.TenantID][m.LoserID]
	if !ok {
		return &model.NotFoundError{Kind: "contact", ID: m.LoserID, TenantID: m.TenantID}
	}
	if loser.Version != m.LoserVersion {
		return &model.ConflictError{ID: m.LoserID, Detail: "contact version mismatch"}
	}
	for _, op := range m.Repoints {
		if _, ok := s.rels[m.TenantID][op.RelID]; !ok {
			return &model.NotFoundError{Kind: "relationship", ID: op.RelID, TenantID: m.TenantID}
		}
	}

	if _, err := s.upsertLocked(m.Merged); err != nil {
		return err
	}
	for _, op := range m.Repoints {
		if err := s.repointLocked(m.TenantID, op.RelID, op.NewSourceID, op.NewTargetID); err != nil {
			return err
		}
	}
	for _, relID := range m.DeleteRels {
		if err := s.deleteRelLocked(m.TenantID, relID); err != nil && !model.IsNotFound(err) {
			return err
		}
	}
	return s.deleteContactLocked(m.TenantID, m.LoserID, m.LoserVersion)
}

func (s *MemoryStore) Stats(ctx context.Context, tenantID string) (*model.TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.TenantStats{TotalContacts: len(s.contacts[tenantID])}
	linked := make(map[string]struct{})
	var sum float64
	for _, r := range s.rels[tenantID] {
		if r.Type != model.RelSimilarTo {
			continue
		}
		stats.SimilarityLinks++
		sum += r.Score
		linked[r.SourceID] = struct{}{}
		linked[r.TargetID] = struct{}{}
	}
	if stats.SimilarityLinks > 0 {
		stats.AvgSimilarityScore = sum / float64(stats.SimilarityLinks)
	}
	stats.ContactsWithDuplicates = len(linked)
	return stats, nil
}
