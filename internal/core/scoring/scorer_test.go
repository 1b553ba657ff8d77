package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/relate/internal/core/model"
)

func fullContact(id string) *model.Contact {
	return &model.Contact{
		ID:       id,
		TenantID: "t-1",
		Email:    "jane.doe@acme.com",
		Name:     "Jane Doe",
		Phone:    "+1 (555) 010-0199",
		Company:  "Acme Corp",
		Metadata: map[string]any{"city": "Berlin", "vip": true},
	}
}

func TestIdentityScore(t *testing.T) {
	s := NewScorer(DefaultWeights())

	a := fullContact("c-1")
	b := fullContact("c-2")

	result := s.Score(a, b)
	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.ActionMerge, result.SuggestedAction)
}

func TestSymmetry(t *testing.T) {
	s := NewScorer(DefaultWeights())

	pairs := []struct {
		a, b *model.Contact
	}{
		{
			&model.Contact{Email: "j@x.com", Name: "John Doe", Phone: "555-1234"},
			&model.Contact{Email: "j@x.com", Name: "Jon Doe", Phone: "5551234"},
		},
		{
			&model.Contact{Email: "alice@acme.com", Company: "Acme"},
			&model.Contact{Email: "bob@acme.com", Company: "Acme Corp"},
		},
		{
			&model.Contact{Name: "Mia", Metadata: map[string]any{"a": 1}},
			&model.Contact{Name: "Mia Wong", Phone: "123", Metadata: map[string]any{"a": 1, "b": 2}},
		},
		{
			&model.Contact{},
			&model.Contact{Email: "x@y.z"},
		},
	}

	for _, p := range pairs {
		ab := s.Score(p.a, p.b)
		ba := s.Score(p.b, p.a)
		assert.Equal(t, ab.Score, ba.Score)
		assert.Equal(t, ab.Factors, ba.Factors)
	}
}

func TestExactDuplicateScenario(t *testing.T) {
	s := NewScorer(DefaultWeights())

	a := &model.Contact{Email: "j@x.com", Name: "John Doe", Phone: "555-1234"}
	b := &model.Contact{Email: "j@x.com", Name: "John Doe", Phone: "5551234"}

	result := s.Score(a, b)
	assert.GreaterOrEqual(t, result.Score, 0.95)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.ActionMerge, result.SuggestedAction)
	assert.Equal(t, 1.0, result.Factors.Email)
	assert.Equal(t, 1.0, result.Factors.Phone)
}

func TestSameDomainDifferentPersonScenario(t *testing.T) {
	s := NewScorer(DefaultWeights())

	a := &model.Contact{Email: "alice@acme.com"}
	b := &model.Contact{Email: "bob@acme.com"}

	result := s.Score(a, b)
	assert.GreaterOrEqual(t, result.Score, 0.1)
	assert.LessOrEqual(t, result.Score, 0.2)
	assert.Equal(t, model.ActionIgnore, result.SuggestedAction)
}

func TestEmailScore(t *testing.T) {
	assert.Equal(t, 1.0, emailScore("Jane@Acme.com", "jane@acme.com"))
	assert.Equal(t, sameDomainEmailScore, emailScore("alice@acme.com", "bob@acme.com"))
	assert.Equal(t, 0.0, emailScore("alice@acme.com", "alice@other.com"))
	assert.Equal(t, 0.0, emailScore("", "alice@acme.com"))
	assert.Equal(t, 0.0, emailScore("", ""))
}

func TestPhoneScore(t *testing.T) {
	// Exact after normalization.
	assert.Equal(t, 1.0, phoneScore("(555) 010-0199", "5550100199"))
	// Country-code variance, same last 10 digits.
	assert.Equal(t, phoneSuffixScore, phoneScore("+1 415 555 0100", "4155550100"))
	// Partial suffix overlap stays within [0, 0.4].
	partial := phoneScore("9998887777", "1112227777")
	assert.Greater(t, partial, 0.0)
	assert.LessOrEqual(t, partial, 0.4)
	// Missing side.
	assert.Equal(t, 0.0, phoneScore("", "5551234"))
}

func TestNameScore(t *testing.T) {
	assert.Equal(t, 1.0, textScore("John  Doe", "john doe"))
	assert.Equal(t, 0.0, textScore("", "John Doe"))

	similar := textScore("Jon Doe", "John Doe")
	assert.Greater(t, similar, 0.8)
	assert.Less(t, similar, 1.0)
}

func TestCompanyNeutralWhenMissing(t *testing.T) {
	s := NewScorer(DefaultWeights())

	neither := s.Score(
		&model.Contact{Email: "j@x.com", Name: "John Doe"},
		&model.Contact{Email: "j@x.com", Name: "John Doe"},
	)
	oneSided := s.Score(
		&model.Contact{Email: "j@x.com", Name: "John Doe", Company: "Acme"},
		&model.Contact{Email: "j@x.com", Name: "John Doe"},
	)

	// A company known on only one side is neutral: same score as no company
	// at all, never a penalty.
	assert.Equal(t, neither.Score, oneSided.Score)
	assert.Equal(t, CompanyUnknownScore, oneSided.Factors.Company)

	// Known and matching on both sides, it contributes.
	bothSides := s.Score(
		&model.Contact{Email: "j@x.com", Name: "John Doe", Company: "Acme"},
		&model.Contact{Email: "j@x.com", Name: "John Doe", Company: "Acme"},
	)
	assert.Greater(t, bothSides.Score, neither.Score)
}

func TestMetadataOverlap(t *testing.T) {
	full := metadataScore(
		map[string]any{"city": "Berlin", "vip": true},
		map[string]any{"city": "Berlin", "vip": true},
	)
	assert.Equal(t, 1.0, full)

	half := metadataScore(
		map[string]any{"city": "Berlin", "vip": true},
		map[string]any{"city": "Berlin", "vip": false},
	)
	assert.Equal(t, 0.5, half)

	// Numeric kinds compare by value.
	assert.Equal(t, 1.0, metadataScore(map[string]any{"n": int64(3)}, map[string]any{"n": 3.0}))

	assert.Equal(t, 0.0, metadataScore(nil, map[string]any{"a": 1}))
}

func TestActionMappingMonotonic(t *testing.T) {
	rank := map[model.Action]int{
		model.ActionIgnore: 0,
		model.ActionReview: 1,
		model.ActionLink:   2,
		model.ActionMerge:  3,
	}

	prev := -1
	for score := 0.0; score <= 1.0; score += 0.01 {
		action := model.ActionFor(model.ConfidenceFor(score))
		r := rank[action]
		assert.GreaterOrEqual(t, r, prev, "action regressed at score %f", score)
		prev = r
	}
}

func TestConfidenceBoundaries(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, model.ConfidenceFor(0.90))
	assert.Equal(t, model.ConfidenceMedium, model.ConfidenceFor(0.89))
	assert.Equal(t, model.ConfidenceMedium, model.ConfidenceFor(0.70))
	assert.Equal(t, model.ConfidenceLow, model.ConfidenceFor(0.69))
	assert.Equal(t, model.ConfidenceLow, model.ConfidenceFor(0.30))
	assert.Equal(t, model.ConfidenceVeryLow, model.ConfidenceFor(0.29))
}

func TestWeightOverrides(t *testing.T) {
	// Email-only weighting makes the name difference irrelevant.
	s := NewScorer(Weights{Email: 1})

	result := s.Score(
		&model.Contact{Email: "j@x.com", Name: "John Doe"},
		&model.Contact{Email: "j@x.com", Name: "Someone Else"},
	)
	assert.Equal(t, 1.0, result.Score)
}
