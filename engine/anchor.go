package engine

import (
	"sort"
)

// =============================================================================
// ANCHOR RESOLVER - Balance reconstruction from snapshots + ledger
// =============================================================================
//
// An anchor is a known-correct balance at the END of its date. The balance on
// any later date is the anchor plus the signed replay of transactions strictly
// after the anchor date, up to and including the query date:
//
//   balance(asOf) = anchor.Balance + Σ signed(tx)  for anchor.Date < tx.Date <= asOf
//
// Anchors partition time: the latest anchor on or before asOf is active.
// Anchors after asOf are ignored.

// AnchorSet is a validated collection of anchors, at most one per
// (date, scope). A nil *AnchorSet behaves as an empty set.
type AnchorSet struct {
	byScope map[Scope][]BalanceAnchor // ascending by date
}

// NewAnchorSet validates and indexes anchors. Two anchors on the same date
// for the same scope are rejected with a *DuplicateAnchorError.
func NewAnchorSet(anchors []BalanceAnchor) (*AnchorSet, error) {
	set := &AnchorSet{byScope: make(map[Scope][]BalanceAnchor)}
	seen := make(map[Scope]map[string]bool)

	for _, a := range anchors {
		scope := a.Scope()
		if seen[scope] == nil {
			seen[scope] = make(map[string]bool)
		}
		if seen[scope][a.Date.String()] {
			return nil, &DuplicateAnchorError{Date: a.Date, Scope: scope}
		}
		seen[scope][a.Date.String()] = true
		set.byScope[scope] = append(set.byScope[scope], a)
	}

	for _, list := range set.byScope {
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	}
	return set, nil
}

// All returns every anchor, grouped by scope and ordered by date.
func (s *AnchorSet) All() []BalanceAnchor {
	if s == nil {
		return nil
	}
	scopes := make([]Scope, 0, len(s.byScope))
	for scope := range s.byScope {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].SavingsGoalID < scopes[j].SavingsGoalID })

	out := make([]BalanceAnchor, 0, s.Len())
	for _, scope := range scopes {
		out = append(out, s.byScope[scope]...)
	}
	return out
}

func (s *AnchorSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, list := range s.byScope {
		n += len(list)
	}
	return n
}

// Active returns the latest anchor in scope with date <= asOf.
func (s *AnchorSet) Active(scope Scope, asOf Date) (BalanceAnchor, bool) {
	if s == nil {
		return BalanceAnchor{}, false
	}
	list := s.byScope[scope]
	// First index with date > asOf; the one before it is active
	i := sort.Search(len(list), func(i int) bool { return list[i].Date.After(asOf) })
	if i == 0 {
		return BalanceAnchor{}, false
	}
	return list[i-1], true
}

// FirstWithin returns the earliest anchor in scope inside p.
func (s *AnchorSet) FirstWithin(scope Scope, p Period) (BalanceAnchor, bool) {
	if s == nil {
		return BalanceAnchor{}, false
	}
	for _, a := range s.byScope[scope] {
		if p.Contains(a.Date) {
			return a, true
		}
	}
	return BalanceAnchor{}, false
}

// BalanceAsOf reconstructs the scope's balance at the end of asOf.
//
// Without an active anchor, global cash is unavailable (ok == false); a
// savings goal falls back to its ledger sum up to asOf, since "no anchor
// recorded" still has a well-defined goal balance.
func (s *AnchorSet) BalanceAsOf(txs []Transaction, scope Scope, asOf Date) (Cents, bool) {
	anchor, ok := s.Active(scope, asOf)
	if !ok {
		if scope.IsGlobal() {
			return 0, false
		}
		return SumSigned(txs, scope, Date{}, asOf), true
	}
	return anchor.BalanceCents + SumSigned(txs, scope, anchor.Date, asOf), true
}

// RewindBalance derives the balance at the end of asOf from an anchor dated
// on or after it, by undoing the transactions in (asOf, anchor.Date].
func RewindBalance(anchor BalanceAnchor, txs []Transaction, asOf Date) Cents {
	return anchor.BalanceCents - SumSigned(txs, anchor.Scope(), asOf, anchor.Date)
}

// ActiveAnchor is the stand-alone form of AnchorSet.Active for callers that
// hold a raw slice. It does not check for duplicates; on a tie the first
// anchor in input order wins.
func ActiveAnchor(anchors []BalanceAnchor, scope Scope, asOf Date) (BalanceAnchor, bool) {
	var best BalanceAnchor
	found := false
	for _, a := range anchors {
		if a.Scope() != scope || a.Date.After(asOf) {
			continue
		}
		if !found || a.Date.After(best.Date) {
			best, found = a, true
		}
	}
	return best, found
}

// =============================================================================
// SIGN CONVENTION
// =============================================================================

// InScope reports whether tx moves the scope's balance. Every transaction
// touches global cash; a goal only sees transactions tagged with it.
func InScope(tx Transaction, scope Scope) bool {
	return scope.IsGlobal() || tx.SavingsGoalID == scope.SavingsGoalID
}

// SignedAmount returns tx's effect on the scope's balance.
//
//	global cash:  income, adjustment +   expense, savings -
//	savings goal: savings, income, adjustment +   expense - (withdrawal)
func SignedAmount(tx Transaction, scope Scope) Cents {
	if !InScope(tx, scope) {
		return 0
	}
	switch tx.Type {
	case TxIncome, TxAdjustment:
		return tx.AmountCents
	case TxExpense:
		return -tx.AmountCents
	case TxSavings:
		if scope.IsGlobal() {
			return -tx.AmountCents
		}
		return tx.AmountCents
	}
	return 0
}

// SumSigned sums signed in-scope amounts with after < date <= through. A zero
// after leaves the lower bound open.
func SumSigned(txs []Transaction, scope Scope, after, through Date) Cents {
	var sum Cents
	for _, tx := range txs {
		if !after.IsZero() && !tx.Date.After(after) {
			continue
		}
		if tx.Date.After(through) {
			continue
		}
		sum += SignedAmount(tx, scope)
	}
	return sum
}
