package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/agenthands/relate/internal/core/model"
)

// Weights is the factor weighting for the composite similarity score.
// It is explicit configuration: constructed once and passed in, never read
// from ambient state.
type Weights struct {
	Email    float64 `toml:"email"`
	Name     float64 `toml:"name"`
	Phone    float64 `toml:"phone"`
	Company  float64 `toml:"company"`
	Metadata float64 `toml:"metadata"`
}

func DefaultWeights() Weights {
	return Weights{
		Email:    0.40,
		Name:     0.30,
		Phone:    0.15,
		Company:  0.10,
		Metadata: 0.05,
	}
}

func (w Weights) total() float64 {
	return w.Email + w.Name + w.Phone + w.Company + w.Metadata
}

const (
	// CompanyUnknownScore is used when either side has no company.
	// Neutral: missing data neither rewards nor penalizes.
	CompanyUnknownScore = 0.0

	// sameDomainEmailScore covers two different local-parts at one domain.
	// Collision risk within a domain is real but weak evidence.
	sameDomainEmailScore = 0.4

	// phoneSuffixScore covers a last-10-digits match, which absorbs
	// country-code prefix variance.
	phoneSuffixScore = 0.9
)

var whitespaceRe = regexp.MustCompile(`\s+`)
var nonDigitRe = regexp.MustCompile(`\D`)

// Scorer computes a weighted similarity score for two contacts of the same
// tenant. Pure and total: no I/O, no shared state, never fails on
// well-formed input. Score(a,b) == Score(b,a) for all inputs.
type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) *Scorer {
	if w.total() == 0 {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

func (s *Scorer) Score(a, b *model.Contact) model.MatchResult {
	factors := model.FactorBreakdown{
		Email:    emailScore(a.Email, b.Email),
		Name:     textScore(a.Name, b.Name),
		Phone:    phoneScore(a.Phone, b.Phone),
		Company:  companyScore(a.Company, b.Company),
		Metadata: metadataScore(a.Metadata, b.Metadata),
	}

	// Email, name, and phone always carry their weight: absence on one side
	// is evidence against a match. Company is neutral when either side is
	// unknown and metadata is a tie-breaker that only applies when both
	// sides carry some; neutral factors drop out of the denominator so they
	// neither reward nor penalize.
	w := s.weights
	score := w.Email*factors.Email + w.Name*factors.Name + w.Phone*factors.Phone
	denom := w.Email + w.Name + w.Phone
	if normalizeText(a.Company) != "" && normalizeText(b.Company) != "" {
		score += w.Company * factors.Company
		denom += w.Company
	}
	if len(a.Metadata) > 0 && len(b.Metadata) > 0 {
		score += w.Metadata * factors.Metadata
		denom += w.Metadata
	}
	score = clamp01(score / denom)

	conf := model.ConfidenceFor(score)
	return model.MatchResult{
		ContactA:        a,
		ContactB:        b,
		Score:           score,
		Factors:         factors,
		Confidence:      conf,
		SuggestedAction: model.ActionFor(conf),
	}
}

func emailScore(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if da, db := emailDomain(a), emailDomain(b); da != "" && da == db {
		return sameDomainEmailScore
	}
	return 0
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}

// textScore is the normalized edit-distance similarity used for names and
// company fallbacks: 1 - distance/maxLen, clamped to [0,1].
func textScore(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	return clamp01(1 - float64(dist)/float64(maxLen))
}

func normalizeText(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

func phoneScore(a, b string) float64 {
	a = nonDigitRe.ReplaceAllString(a, "")
	b = nonDigitRe.ReplaceAllString(b, "")
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if len(a) >= 10 && len(b) >= 10 && a[len(a)-10:] == b[len(b)-10:] {
		return phoneSuffixScore
	}
	// Partial overlap: 0.04 per shared trailing digit, capped at 0.4.
	return 0.04 * float64(min(commonSuffixLen(a, b), 10))
}

func commonSuffixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

func companyScore(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return CompanyUnknownScore
	}
	if na == nb {
		return 1
	}
	return textScore(a, b)
}

// metadataScore is a Jaccard-style overlap of key/value pairs: pairs equal on
// both sides over the union of keys. Low-weight tie-breaker only.
func metadataScore(a, b map[string]any) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		union[k] = struct{}{}
	}
	for k := range b {
		union[k] = struct{}{}
	}
	matches := 0
	for k, va := range a {
		if vb, ok := b[k]; ok && scalarEqual(va, vb) {
			matches++
		}
	}
	return float64(matches) / float64(len(union))
}

// scalarEqual compares metadata scalars, treating all numeric kinds as one.
func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
