package engine

import (
	"maps"
	"slices"
)

// =============================================================================
// WHAT-IF OVERLAY - Non-persisted amount overrides
// =============================================================================
//
// An Overlay maps a rule ID or category ID to an override amount. It is an
// immutable value: With/Without return a fresh overlay and the receiver is
// untouched, so the same base can be shared across "with vs without" views.
//
// Two ways to apply it:
//
//   Direct substitution (ApplyToRules): swap rule.AmountCents before expansion.
//     Exact for one-period comparisons.
//
//   Ratio rescaling (Rescale): scale an already-expanded total by
//     override / original. Preserves the share of a partial period that the
//     rule was active for without recounting occurrences.

// Overlay is a set of what-if overrides. The zero value is empty.
type Overlay struct {
	overrides map[string]Cents
}

// NewOverlay copies the given overrides.
func NewOverlay(overrides map[string]Cents) Overlay {
	if len(overrides) == 0 {
		return Overlay{}
	}
	return Overlay{overrides: maps.Clone(overrides)}
}

// With returns a copy with key set to amount. Last write wins.
func (o Overlay) With(key string, amount Cents) Overlay {
	next := make(map[string]Cents, len(o.overrides)+1)
	maps.Copy(next, o.overrides)
	next[key] = amount
	return Overlay{overrides: next}
}

// Without returns a copy with key removed.
func (o Overlay) Without(key string) Overlay {
	if _, ok := o.overrides[key]; !ok {
		return o
	}
	next := maps.Clone(o.overrides)
	delete(next, key)
	return Overlay{overrides: next}
}

func (o Overlay) Lookup(key string) (Cents, bool) {
	amount, ok := o.overrides[key]
	return amount, ok
}

func (o Overlay) Len() int      { return len(o.overrides) }
func (o Overlay) IsEmpty() bool { return len(o.overrides) == 0 }

// Keys returns the overridden keys in sorted order.
func (o Overlay) Keys() []string {
	return slices.Sorted(maps.Keys(o.overrides))
}

// OverrideFor resolves the override for a rule. A rule ID override beats a
// category ID override.
func (o Overlay) OverrideFor(r Rule) (Cents, bool) {
	if amount, ok := o.overrides[string(r.ID)]; ok {
		return amount, true
	}
	if r.CategoryID != "" {
		if amount, ok := o.overrides[string(r.CategoryID)]; ok {
			return amount, true
		}
	}
	return 0, false
}

// =============================================================================
// DIRECT SUBSTITUTION
// =============================================================================

// ApplyToRule returns a copy of r with its amount overridden, if any.
func (o Overlay) ApplyToRule(r Rule) Rule {
	if amount, ok := o.OverrideFor(r); ok {
		r.AmountCents = amount
	}
	return r
}

// ApplyToRules returns a fresh slice; the input is never modified.
func (o Overlay) ApplyToRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = o.ApplyToRule(r)
	}
	return out
}

// =============================================================================
// RATIO RESCALING
// =============================================================================

// Rescale returns round(expanded * override / original). When the original
// amount is zero there is no ratio to preserve and the override is
// substituted directly.
func Rescale(original, expanded, override Cents) Cents {
	if original <= 0 {
		return override
	}
	return CentsFromDecimal(expanded.Decimal().Mul(override.Decimal()).Div(original.Decimal()))
}

// RescaleExpanded rescales a rule's already-expanded total by its override.
// Without an override the total is returned unchanged.
func (o Overlay) RescaleExpanded(r Rule, expanded Cents) Cents {
	override, ok := o.OverrideFor(r)
	if !ok {
		return expanded
	}
	return Rescale(r.AmountCents, expanded, override)
}

// RescaleTotals rescales a map of per-rule expanded totals. Rules missing
// from totals are skipped; the input map is not modified.
func (o Overlay) RescaleTotals(rules []Rule, totals map[RuleID]Cents) map[RuleID]Cents {
	out := maps.Clone(totals)
	if out == nil {
		out = make(map[RuleID]Cents)
	}
	for _, r := range rules {
		expanded, ok := totals[r.ID]
		if !ok {
			continue
		}
		out[r.ID] = o.RescaleExpanded(r, expanded)
	}
	return out
}
