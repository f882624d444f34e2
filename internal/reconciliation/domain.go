package reconciliation

import (
	"context"
	"time"
)

// Assessment is the outcome of evaluating the penalty predicate for one
// member on one day.
type Assessment struct {
	Apply  bool
	Amount int64
}

// PenaltyRule decides whether a member owes a penalty for a day. The rule is
// an external collaborator; the reconciliation service performs the ledger
// writes itself.
type PenaltyRule interface {
	Assess(ctx context.Context, memberID int64, day time.Time) (Assessment, error)
}

// SavingChecker reports whether a member made a real deposit on a day.
// Backfill placeholders must not count as coverage.
type SavingChecker interface {
	HasSavingOn(ctx context.Context, memberID int64, day time.Time) (bool, error)
}

// MissedSavingRule penalises members with no saving row for the day.
type MissedSavingRule struct {
	ledger SavingChecker
	amount int64
}

// NewMissedSavingRule constructs the default rule.
func NewMissedSavingRule(checker SavingChecker, amount int64) *MissedSavingRule {
	return &MissedSavingRule{ledger: checker, amount: amount}
}

// Assess implements PenaltyRule.
func (r *MissedSavingRule) Assess(ctx context.Context, memberID int64, day time.Time) (Assessment, error) {
	saved, err := r.ledger.HasSavingOn(ctx, memberID, day)
	if err != nil {
		return Assessment{}, err
	}
	if saved {
		return Assessment{}, nil
	}
	return Assessment{Apply: true, Amount: r.amount}, nil
}
