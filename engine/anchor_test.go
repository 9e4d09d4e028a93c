package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/engine"
)

func tx(date string, typ engine.TransactionType, amount engine.Cents) engine.Transaction {
	return engine.Transaction{Date: d(date), Type: typ, AmountCents: amount}
}

func goalTx(date string, typ engine.TransactionType, amount engine.Cents, goal engine.GoalID) engine.Transaction {
	t := tx(date, typ, amount)
	t.SavingsGoalID = goal
	return t
}

func anchorSet(t *testing.T, anchors ...engine.BalanceAnchor) *engine.AnchorSet {
	t.Helper()
	set, err := engine.NewAnchorSet(anchors)
	require.NoError(t, err)
	return set
}

// =============================================================================
// BALANCE AS OF
// =============================================================================

func TestBalanceAsOf_ReplaysTransactionsAfterAnchor(t *testing.T) {
	// GIVEN: Anchor of 1000.00 on Jan 1 and a 20.00 expense on Jan 15
	// WHEN: Asking for the balance on Jan 31
	// THEN: 980.00

	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000})
	txs := []engine.Transaction{tx("2024-01-15", engine.TxExpense, 2000)}

	balance, ok := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(98000), balance)
}

func TestBalanceAsOf_AnchorDateNotDoubleCounted(t *testing.T) {
	// GIVEN: A transaction on the anchor date itself
	// THEN: It's already reflected in the anchor and not replayed

	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000})
	txs := []engine.Transaction{
		tx("2024-01-01", engine.TxExpense, 500),
		tx("2024-01-15", engine.TxExpense, 2000),
	}

	balance, ok := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(98000), balance)
}

func TestBalanceAsOf_IgnoresFutureAnchorsAndTransactions(t *testing.T) {
	set := anchorSet(t,
		engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000},
		engine.BalanceAnchor{Date: d("2024-02-01"), BalanceCents: 500000},
	)
	txs := []engine.Transaction{
		tx("2024-01-15", engine.TxExpense, 2000),
		tx("2024-02-15", engine.TxIncome, 99999),
	}

	balance, ok := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))
	require.True(t, ok)
	assert.Equal(t, engine.Cents(98000), balance)

	// The later anchor takes over from its date on
	balance, ok = set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-02-20"))
	require.True(t, ok)
	assert.Equal(t, engine.Cents(599999), balance)
}

func TestBalanceAsOf_SignConventionForCash(t *testing.T) {
	// income/adjustment add, expense/savings subtract
	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000})
	txs := []engine.Transaction{
		tx("2024-01-02", engine.TxIncome, 10000),
		tx("2024-01-03", engine.TxAdjustment, 500),
		tx("2024-01-04", engine.TxExpense, 3000),
		goalTx("2024-01-05", engine.TxSavings, 5000, "house"),
	}

	balance, ok := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(102500), balance)
}

func TestBalanceAsOf_GlobalWithoutAnchorIsUnavailable(t *testing.T) {
	set := anchorSet(t)
	txs := []engine.Transaction{tx("2024-01-15", engine.TxIncome, 2000)}

	_, ok := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))

	assert.False(t, ok)
}

func TestBalanceAsOf_NilSetBehavesAsEmpty(t *testing.T) {
	var set *engine.AnchorSet

	_, ok := set.BalanceAsOf(nil, engine.GlobalScope(), d("2024-01-31"))

	assert.False(t, ok)
	assert.Zero(t, set.Len())
}

func TestBalanceAsOf_GoalWithoutAnchorFallsBackToLedger(t *testing.T) {
	// GIVEN: No goal anchor, 50.00 saved into "house", 10.00 withdrawn,
	//        and an unrelated contribution to another goal
	// THEN: The goal balance is its own ledger sum, 40.00

	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000})
	txs := []engine.Transaction{
		goalTx("2024-01-10", engine.TxSavings, 5000, "house"),
		goalTx("2024-01-20", engine.TxExpense, 1000, "house"),
		goalTx("2024-01-21", engine.TxSavings, 7000, "car"),
		goalTx("2024-02-10", engine.TxSavings, 5000, "house"),
	}

	balance, ok := set.BalanceAsOf(txs, engine.GoalScope("house"), d("2024-01-31"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(4000), balance)
}

func TestBalanceAsOf_GoalAnchor(t *testing.T) {
	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 250000, SavingsGoalID: "house"})
	txs := []engine.Transaction{
		goalTx("2024-01-10", engine.TxSavings, 5000, "house"),
		tx("2024-01-11", engine.TxExpense, 9999),
	}

	balance, ok := set.BalanceAsOf(txs, engine.GoalScope("house"), d("2024-01-31"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(255000), balance)

	// A goal anchor says nothing about global cash
	_, ok = set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))
	assert.False(t, ok)
}

func TestBalanceAsOf_Idempotent(t *testing.T) {
	set := anchorSet(t, engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 100000})
	txs := []engine.Transaction{tx("2024-01-15", engine.TxExpense, 2000)}

	first, _ := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))
	second, _ := set.BalanceAsOf(txs, engine.GlobalScope(), d("2024-01-31"))

	assert.Equal(t, first, second)
}

// =============================================================================
// ANCHOR SET CONSTRUCTION
// =============================================================================

func TestNewAnchorSet_RejectsDuplicateDateInSameScope(t *testing.T) {
	// GIVEN: Two global anchors on the same date
	// THEN: Construction fails with a typed error

	_, err := engine.NewAnchorSet([]engine.BalanceAnchor{
		{Date: d("2024-01-01"), BalanceCents: 100000},
		{Date: d("2024-01-01"), BalanceCents: 200000},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDuplicateAnchor)
	var dupErr *engine.DuplicateAnchorError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, d("2024-01-01"), dupErr.Date)
	assert.True(t, dupErr.Scope.IsGlobal())
}

func TestNewAnchorSet_SameDateDifferentScopesAllowed(t *testing.T) {
	set, err := engine.NewAnchorSet([]engine.BalanceAnchor{
		{Date: d("2024-01-01"), BalanceCents: 100000},
		{Date: d("2024-01-01"), BalanceCents: 20000, SavingsGoalID: "house"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestAnchorSet_ActiveAndFirstWithin(t *testing.T) {
	set := anchorSet(t,
		engine.BalanceAnchor{Date: d("2024-03-01"), BalanceCents: 3},
		engine.BalanceAnchor{Date: d("2024-01-01"), BalanceCents: 1},
		engine.BalanceAnchor{Date: d("2024-02-01"), BalanceCents: 2},
	)

	active, ok := set.Active(engine.GlobalScope(), d("2024-02-15"))
	require.True(t, ok)
	assert.Equal(t, engine.Cents(2), active.BalanceCents)

	_, ok = set.Active(engine.GlobalScope(), d("2023-12-31"))
	assert.False(t, ok)

	first, ok := set.FirstWithin(engine.GlobalScope(), engine.Period{Start: d("2024-01-15"), End: d("2024-12-31")})
	require.True(t, ok)
	assert.Equal(t, d("2024-02-01"), first.Date)

	all := set.All()
	require.Len(t, all, 3)
	assert.Equal(t, d("2024-01-01"), all[0].Date)
}

func TestActiveAnchor_StandAlone(t *testing.T) {
	anchors := []engine.BalanceAnchor{
		{Date: d("2024-01-01"), BalanceCents: 1},
		{Date: d("2024-02-01"), BalanceCents: 2, SavingsGoalID: "house"},
		{Date: d("2024-01-20"), BalanceCents: 3},
	}

	active, ok := engine.ActiveAnchor(anchors, engine.GlobalScope(), d("2024-03-01"))

	require.True(t, ok)
	assert.Equal(t, engine.Cents(3), active.BalanceCents)
}

func TestRewindBalance(t *testing.T) {
	// GIVEN: An anchor of 500.00 on Jan 15, +100.00 on Jan 10, -30.00 on Jan 12
	// WHEN: Rewinding to the end of Dec 31
	// THEN: 500 - (100 - 30) = 430.00

	anchor := engine.BalanceAnchor{Date: d("2024-01-15"), BalanceCents: 50000}
	txs := []engine.Transaction{
		tx("2024-01-10", engine.TxIncome, 10000),
		tx("2024-01-12", engine.TxExpense, 3000),
		tx("2024-01-20", engine.TxExpense, 7777),
	}

	assert.Equal(t, engine.Cents(43000), engine.RewindBalance(anchor, txs, d("2023-12-31")))
}

func TestSignedAmount_GoalScope(t *testing.T) {
	scope := engine.GoalScope("house")

	assert.Equal(t, engine.Cents(100), engine.SignedAmount(goalTx("2024-01-01", engine.TxSavings, 100, "house"), scope))
	assert.Equal(t, engine.Cents(100), engine.SignedAmount(goalTx("2024-01-01", engine.TxIncome, 100, "house"), scope))
	assert.Equal(t, engine.Cents(-100), engine.SignedAmount(goalTx("2024-01-01", engine.TxExpense, 100, "house"), scope))
	assert.Zero(t, engine.SignedAmount(goalTx("2024-01-01", engine.TxSavings, 100, "car"), scope))
}
