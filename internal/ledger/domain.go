package ledger

import "time"

// LoanStatus enumerates loan lifecycle states.
type LoanStatus string

const (
	LoanStatusActive LoanStatus = "ACTIVE"
	LoanStatusPaid   LoanStatus = "PAID"
)

// Loan is a member's borrowed principal and repayment state. Monetary
// amounts are whole francs.
type Loan struct {
	ID          int64
	MemberID    int64
	Amount      int64
	AmountToPay int64
	PaidAmount  int64
	Status      LoanStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member holds a running savings balance. The balance is maintained
// incrementally and equals the sum of amounts over the member's saving rows.
type Member struct {
	ID      int64
	Name    string
	Phone   string
	Balance int64
}

// Saving is one ledger row: a confirmed deposit or a zero-value placeholder
// inserted by the weekly reconciliation run. Rows are immutable once created
// and unique per (member, date).
type Saving struct {
	ID           int64
	Date         time.Time
	MemberID     int64
	SavingTypeID int
	Shares       int64
	ShareValue   float64
	Amount       int64
	RecorderID   int64
	CreatedAt    time.Time
}

// BackfillTypeID marks a zero-value placeholder row.
const BackfillTypeID = 0

// PenaltyStatus enumerates penalty lifecycle states.
type PenaltyStatus string

const (
	PenaltyStatusUnpaid PenaltyStatus = "UNPAID"
	PenaltyStatusPaid   PenaltyStatus = "PAID"
)

// Penalty is a fine for missed or late savings.
type Penalty struct {
	ID       int64
	MemberID int64
	Date     time.Time
	Amount   int64
	Status   PenaltyStatus
}
