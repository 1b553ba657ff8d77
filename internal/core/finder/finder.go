package finder

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/relate/internal/core/model"
	"github.com/agenthands/relate/internal/core/scoring"
	"github.com/agenthands/relate/internal/store"
)

const (
	DefaultThreshold     = 0.7
	DefaultPageSize      = 200
	DefaultMaxCandidates = 50000
	defaultConcurrency   = 8
)

// Options tunes one duplicate search. Zero values select the defaults.
type Options struct {
	// Threshold filters matches to score >= Threshold. Must be in [0,1].
	Threshold float64

	// MaxCandidates bounds how many contact pairs are scored. When the
	// budget runs out the result is returned partial with Truncated set.
	MaxCandidates int
}

// Result is a ranked, threshold-filtered set of matches. Truncated means
// the candidate budget or the caller's deadline ran out and the result
// covers only part of the tenant.
type Result struct {
	Matches   []model.MatchResult `json:"matches"`
	Examined  int                 `json:"examined"`
	Truncated bool                `json:"truncated"`
}

// Finder generates candidate pairs within a tenant and scores them. Purely
// read-only: nothing is persisted until the caller merges or links.
//
// Candidates are pre-filtered by blocking keys (email local-part, phone
// last-10 digits, first three letters of the normalized name); pairs sharing
// no key are never scored. That is a deliberate recall trade-off: it keeps
// the search far below O(n^2) at the cost of missing pairs that agree on no
// indexed dimension.
type Finder struct {
	store       store.Store
	scorer      *scoring.Scorer
	pageSize    int
	concurrency int
	logger      *zap.Logger
}

func New(st store.Store, scorer *scoring.Scorer, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		store:       st,
		scorer:      scorer,
		pageSize:    DefaultPageSize,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// FindDuplicates scans a whole tenant for duplicate pairs.
func (f *Finder) FindDuplicates(ctx context.Context, tenantID string, opts Options) (*Result, error) {
	threshold, budget, err := f.normalize(tenantID, opts)
	if err != nil {
		return nil, err
	}

	contacts, truncated, err := f.collect(ctx, tenantID, budget)
	if err != nil {
		return nil, err
	}

	pairs := blockPairs(contacts, nil)
	return f.scorePairs(ctx, pairs, threshold, budget, truncated)
}

// FindDuplicatesFor scans for duplicates of one contact.
func (f *Finder) FindDuplicatesFor(ctx context.Context, tenantID, contactID string, opts Options) (*Result, error) {
	threshold, budget, err := f.normalize(tenantID, opts)
	if err != nil {
		return nil, err
	}

	target, err := f.store.GetContact(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}

	contacts, truncated, err := f.collect(ctx, tenantID, budget)
	if err != nil {
		return nil, err
	}

	pairs := blockPairs(contacts, target)
	return f.scorePairs(ctx, pairs, threshold, budget, truncated)
}

func (f *Finder) normalize(tenantID string, opts Options) (threshold float64, budget int, err error) {
	if tenantID == "" {
		return 0, 0, &model.ValidationError{Field: "tenant_id", Reason: "must not be empty"}
	}
	threshold = opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, &model.ValidationError{Field: "threshold", Reason: "must be in [0,1]"}
	}
	budget = opts.MaxCandidates
	if budget <= 0 {
		budget = DefaultMaxCandidates
	}
	return threshold, budget, nil
}

// collect pages through the tenant's contacts. It stops early when the
// caller's context is done, reporting the scan as truncated rather than
// failing, so a bounded budget still yields usable partial results.
func (f *Finder) collect(ctx context.Context, tenantID string, budget int) ([]*model.Contact, bool, error) {
	var contacts []*model.Contact
	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return contacts, true, nil
		default:
		}

		page, next, err := f.store.ListContacts(ctx, tenantID, cursor, f.pageSize)
		if err != nil {
			return nil, false, err
		}
		contacts = append(contacts, page...)
		if next == "" {
			return contacts, false, nil
		}
		cursor = next

		// Crude pre-budget: past this many contacts even the sparsest
		// blocking will exceed the pair budget anyway.
		if len(contacts) > budget {
			return contacts, true, nil
		}
	}
}

type pair struct {
	a, b *model.Contact
}

// blockPairs generates candidate pairs via blocking keys. When target is
// non-nil only pairs involving the target are produced.
func blockPairs(contacts []*model.Contact, target *model.Contact) []pair {
	blocks := make(map[string][]*model.Contact)
	for _, c := range contacts {
		for _, key := range blockKeys(c) {
			blocks[key] = append(blocks[key], c)
		}
	}
	if target != nil {
		for _, key := range blockKeys(target) {
			found := false
			for _, c := range blocks[key] {
				if c.ID == target.ID {
					found = true
					break
				}
			}
			if !found {
				blocks[key] = append(blocks[key], target)
			}
		}
	}

	seen := make(map[string]struct{})
	var pairs []pair
	for _, block := range blocks {
		for i := 0; i < len(block); i++ {
			for j := i + 1; j < len(block); j++ {
				a, b := block[i], block[j]
				if a.ID == b.ID {
					continue
				}
				if target != nil && a.ID != target.ID && b.ID != target.ID {
					continue
				}
				key := pairKey(a.ID, b.ID)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, pair{a: a, b: b})
			}
		}
	}

	// Deterministic order regardless of map iteration.
	sort.Slice(pairs, func(i, j int) bool {
		return pairKey(pairs[i].a.ID, pairs[i].b.ID) < pairKey(pairs[j].a.ID, pairs[j].b.ID)
	})
	return pairs
}

var nonDigitRe = regexp.MustCompile(`\D`)
var whitespaceRe = regexp.MustCompile(`\s+`)

func blockKeys(c *model.Contact) []string {
	var keys []string
	if email := strings.ToLower(strings.TrimSpace(c.Email)); email != "" {
		local := email
		if i := strings.Index(email, "@"); i > 0 {
			local = email[:i]
		}
		keys = append(keys, "e:"+local)
	}
	if phone := nonDigitRe.ReplaceAllString(c.Phone, ""); len(phone) >= 7 {
		suffix := phone
		if len(suffix) > 10 {
			suffix = suffix[len(suffix)-10:]
		}
		keys = append(keys, "p:"+suffix)
	}
	if name := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(c.Name)), " "); name != "" {
		prefix := name
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		keys = append(keys, "n:"+prefix)
	}
	return keys
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func (f *Finder) scorePairs(ctx context.Context, pairs []pair, threshold float64, budget int, truncated bool) (*Result, error) {
	if len(pairs) > budget {
		pairs = pairs[:budget]
		truncated = true
	}

	var mu sync.Mutex
	matches := make([]model.MatchResult, 0, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			m := f.scorer.Score(p.a, p.b)
			if m.Score >= threshold {
				mu.Lock()
				matches = append(matches, m)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		truncated = true
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return pairKey(matches[i].ContactA.ID, matches[i].ContactB.ID) < pairKey(matches[j].ContactA.ID, matches[j].ContactB.ID)
	})

	f.logger.Debug("duplicate search complete",
		zap.Int("pairs_examined", len(pairs)),
		zap.Int("matches", len(matches)),
		zap.Bool("truncated", truncated))

	return &Result{Matches: matches, Examined: len(pairs), Truncated: truncated}, nil
}
