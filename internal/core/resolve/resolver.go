package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/core/model"
)

// Arbiter is the optional external arbitration capability: given both full
// records it returns a complete merged record. Injected at construction; the
// resolver is fully functional without one.
type Arbiter interface {
	Resolve(ctx context.Context, a, b *model.Contact) (*model.Contact, error)
}

const DefaultArbitrationTimeout = 10 * time.Second

// Resolver applies a named strategy to field-level conflicts between a
// survivor and a loser record, producing an audit entry per field.
type Resolver struct {
	arbiter Arbiter
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(arbiter Arbiter, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultArbitrationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{arbiter: arbiter, timeout: timeout, logger: logger}
}

// Resolve decides a single field under a deterministic strategy. It always
// returns a FieldConflict, even when the values agree, so callers can audit
// every field that was considered.
func (r *Resolver) Resolve(field string, survivor, loser any, strategy model.Strategy) model.FieldConflict {
	return model.FieldConflict{
		Field:         field,
		SurvivorValue: survivor,
		LoserValue:    loser,
		ResolvedValue: resolveValue(survivor, loser, strategy),
		Strategy:      strategy,
	}
}

// ResolveRecords resolves every comparable field of the two records and
// builds the merged record on top of the survivor's identity. The returned
// conflicts hold one entry per field where the inputs disagreed.
//
// When strategy is external_arbitration and the arbiter fails, is missing,
// or times out, resolution fails closed to prefer_complete; the merge never
// fails because the optional capability was unreachable.
func (r *Resolver) ResolveRecords(ctx context.Context, survivor, loser *model.Contact, strategy model.Strategy) (*model.Contact, []model.FieldConflict, error) {
	var arbitrated *model.Contact
	if strategy == model.StrategyExternalArbitration {
		arbitrated = r.arbitrate(ctx, survivor, loser)
		if arbitrated == nil {
			strategy = model.StrategyPreferComplete
		}
	}

	merged := survivor.Clone()
	var conflicts []model.FieldConflict

	resolveField := func(field string, sv, lv any, assign func(any)) {
		if scalarEqual(sv, lv) {
			return
		}
		var resolved any
		if arbitrated != nil {
			resolved = arbitratedValue(arbitrated, field, sv, lv)
		} else {
			resolved = resolveValue(sv, lv, strategy)
		}
		assign(resolved)
		conflicts = append(conflicts, model.FieldConflict{
			Field:         field,
			SurvivorValue: sv,
			LoserValue:    lv,
			ResolvedValue: resolved,
			Strategy:      strategy,
		})
	}

	resolveField("email", survivor.Email, loser.Email, func(v any) { merged.Email, _ = v.(string) })
	resolveField("name", survivor.Name, loser.Name, func(v any) { merged.Name, _ = v.(string) })
	resolveField("phone", survivor.Phone, loser.Phone, func(v any) { merged.Phone, _ = v.(string) })
	resolveField("company", survivor.Company, loser.Company, func(v any) { merged.Company, _ = v.(string) })
	resolveField("score", survivor.Score, loser.Score, func(v any) { merged.Score, _ = v.(float64) })

	// Metadata: union of both sides; keys present on both with unequal
	// values go through the same per-field resolution as "metadata.<key>".
	if len(loser.Metadata) > 0 && merged.Metadata == nil {
		merged.Metadata = make(map[string]any, len(loser.Metadata))
	}
	for _, k := range sortedKeys(loser.Metadata) {
		lv := loser.Metadata[k]
		sv, present := merged.Metadata[k]
		if !present {
			merged.Metadata[k] = lv
			continue
		}
		key := k
		resolveField("metadata."+k, sv, lv, func(v any) { merged.Metadata[key] = v })
	}

	// Identity never changes, whatever the arbiter returned.
	merged.ID = survivor.ID
	merged.TenantID = survivor.TenantID
	merged.Version = survivor.Version
	return merged, conflicts, nil
}

func (r *Resolver) arbitrate(ctx context.Context, survivor, loser *model.Contact) *model.Contact {
	if r.arbiter == nil {
		r.logger.Warn("external arbitration requested but no arbiter configured, falling back to prefer_complete")
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	merged, err := r.arbiter.Resolve(actx, survivor, loser)
	if err != nil || merged == nil {
		uerr := &model.ArbitrationUnavailableError{Err: err}
		r.logger.Warn("external arbitration failed, falling back to prefer_complete", zap.Error(uerr))
		return nil
	}
	return merged
}

// arbitratedValue extracts the arbiter's decision for one field. Fields the
// arbiter left empty fall back to prefer_complete so the audit trail never
// loses a decision.
func arbitratedValue(arbitrated *model.Contact, field string, sv, lv any) any {
	var v any
	switch field {
	case "email":
		v = arbitrated.Email
	case "name":
		v = arbitrated.Name
	case "phone":
		v = arbitrated.Phone
	case "company":
		v = arbitrated.Company
	case "score":
		return arbitrated.Score
	default: // metadata.<key>
		if mv, ok := arbitrated.Metadata[field[len("metadata."):]]; ok {
			return mv
		}
		return resolveValue(sv, lv, model.StrategyPreferComplete)
	}
	if s, ok := v.(string); !ok || s == "" {
		return resolveValue(sv, lv, model.StrategyPreferComplete)
	}
	return v
}

func resolveValue(survivor, loser any, strategy model.Strategy) any {
	switch strategy {
	case model.StrategyKeepFirst:
		return survivor
	case model.StrategyKeepSecond:
		return loser
	default:
		return preferComplete(survivor, loser)
	}
}

// preferComplete picks the "more complete" value: longer non-empty string,
// larger number, non-nil over nil. Ties keep the survivor's value.
func preferComplete(survivor, loser any) any {
	if completeness(loser) > completeness(survivor) {
		return loser
	}
	return survivor
}

func completeness(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return float64(len(t))
	case bool:
		if t {
			return 1
		}
		return 0.5
	default:
		if f, ok := toFloat(v); ok {
			return f
		}
		return 1
	}
}
