package payments

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a payment record. SUCCESS is terminal.
// FAILED marks a payment whose gateway dispatch never went out, EXPIRED marks
// a pending payment abandoned by the weekly sweep; neither can settle.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusExpired Status = "EXPIRED"
)

// CanTransition reports whether moving to next is a legal transition.
// Only PENDING has outgoing edges.
func (s Status) CanTransition(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Transition validates and returns the next status.
func (s Status) Transition(next Status) (Status, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal payment transition %s -> %s", s, next)
	}
	return next, nil
}

// Method identifies the channel a payment came through.
type Method string

const (
	MethodGateway   Method = "gateway"
	MethodSimulated Method = "mtn_momo"
)

// LoanPayment is one attempted loan repayment. TransactionID is the external
// correlation key; rows are never deleted.
type LoanPayment struct {
	ID            int64
	TransactionID string
	LoanID        int64
	Amount        int64
	Method        Method
	Phone         string
	RecorderID    int64
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SavingPayment is one attempted savings deposit.
type SavingPayment struct {
	ID            int64
	TransactionID string
	MemberID      int64
	Shares        int64
	Amount        int64
	SavingTypeID  int
	RecorderID    int64
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reference saving-type tiers. Classification by raw amount is kept as a
// fallback for payments initiated without an explicit type.
const (
	SavingTypeA = 1
	SavingTypeB = 2
	SavingTypeC = 3

	savingTierAAmount = 10000
	savingTierBAmount = 3000
)

// ClassifySavingType derives the savings tier from the raw amount.
func ClassifySavingType(amount int64) int {
	switch amount {
	case savingTierAAmount:
		return SavingTypeA
	case savingTierBAmount:
		return SavingTypeB
	default:
		return SavingTypeC
	}
}

// ValidSavingTypeID reports whether an explicitly supplied type id is known.
func ValidSavingTypeID(id int) bool {
	return id == SavingTypeA || id == SavingTypeB || id == SavingTypeC
}
