// Package finance provides the domain reads the application needs most,
// built only from indexed store listings and filters, plus decimal helpers
// for money amounts.
package finance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/ledgerkeeper/internal/store"
	"github.com/shopspring/decimal"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
)

// Reader runs finance queries for the session's user.
type Reader struct {
	session *store.Session
}

func NewReader(s *store.Session) *Reader {
	return &Reader{session: s}
}

func (r *Reader) list(ctx context.Context, collection string, opts store.ListOptions) ([]store.Record, error) {
	cur, err := r.session.List(ctx, collection, opts)
	if err != nil {
		return nil, err
	}
	return store.Collect(cur)
}

func (r *Reader) ownedBy(next func(store.Record) bool) func(store.Record) bool {
	user := r.session.UserID()
	return func(rec store.Record) bool {
		return rec.UserID() == user && (next == nil || next(rec))
	}
}

// AccountsForUser lists the user's accounts.
func (r *Reader) AccountsForUser(ctx context.Context) ([]store.Record, error) {
	return r.list(ctx, "accounts", store.ListOptions{
		Index: "userId",
		Range: store.Only(r.session.UserID()),
	})
}

// TransactionsForAccount lists an account's transactions dated within
// [from, to], oldest first. Empty bounds are open.
func (r *Reader) TransactionsForAccount(ctx context.Context, accountID, from, to string) ([]store.Record, error) {
	rg := &store.KeyRange{}
	if from != "" {
		rg.Lower = from
	}
	if to != "" {
		rg.Upper = to
	}
	return r.list(ctx, "transactions", store.ListOptions{
		Index: "date",
		Range: rg,
		Filter: r.ownedBy(func(rec store.Record) bool {
			return rec["accountId"] == accountID
		}),
	})
}

// ActiveGoals lists the user's goals with status active.
func (r *Reader) ActiveGoals(ctx context.Context) ([]store.Record, error) {
	return r.list(ctx, "goals", store.ListOptions{
		Index:  "status",
		Range:  store.Only(GoalActive),
		Filter: r.ownedBy(nil),
	})
}

// BudgetsForPeriod lists the user's budgets of a period such as "2024-01".
func (r *Reader) BudgetsForPeriod(ctx context.Context, period string) ([]store.Record, error) {
	return r.list(ctx, "budgets", store.ListOptions{
		Index:  "period",
		Range:  store.Only(period),
		Filter: r.ownedBy(nil),
	})
}

// Amount reads a money value stored as a JSON number or a decimal string. A
// missing or null value is zero.
func Amount(v any) (decimal.Decimal, error) {
	switch a := v.(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		return decimal.NewFromFloat(a), nil
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %s: %w", a, err)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q: %w", a, err)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(a)), nil
	case int64:
		return decimal.NewFromInt(a), nil
	}
	return decimal.Zero, fmt.Errorf("amount has unsupported type %T", v)
}

// TransactionTotal sums the amount of every transaction.
func TransactionTotal(txs []store.Record) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, tx := range txs {
		a, err := Amount(tx["amount"])
		if err != nil {
			return decimal.Zero, fmt.Errorf("transaction %s: %w", tx.ID(), err)
		}
		total = total.Add(a)
	}
	return total, nil
}

// GoalProgress is currentAmount/targetAmount rounded to four places, capped
// at 1. A goal without a positive target has no progress.
func GoalProgress(goal store.Record) (decimal.Decimal, error) {
	target, err := Amount(goal["targetAmount"])
	if err != nil {
		return decimal.Zero, err
	}
	current, err := Amount(goal["currentAmount"])
	if err != nil {
		return decimal.Zero, err
	}
	if !target.IsPositive() {
		return decimal.Zero, nil
	}
	p := current.DivRound(target, 4)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1), nil
	}
	return p, nil
}

// BudgetRemaining is amount minus spent.
func BudgetRemaining(budget store.Record) (decimal.Decimal, error) {
	amount, err := Amount(budget["amount"])
	if err != nil {
		return decimal.Zero, err
	}
	spent, err := Amount(budget["spent"])
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Sub(spent), nil
}
