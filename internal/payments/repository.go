package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jamii-coop/jamii-coop/internal/ledger"
	"github.com/jamii-coop/jamii-coop/internal/platform/db"
	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// uniqueViolation is the postgres error code for duplicate keys.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// InsertLoanPayment persists a pending loan payment row.
func (r *Repository) InsertLoanPayment(ctx context.Context, p *LoanPayment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO loan_payments (transaction_id, loan_id, amount, method, phone, recorder_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		p.TransactionID, p.LoanID, p.Amount, p.Method, p.Phone, p.RecorderID, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return shared.ErrAlreadyProcessed
	}
	return err
}

// InsertSavingPayment persists a pending saving payment row.
func (r *Repository) InsertSavingPayment(ctx context.Context, p *SavingPayment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO saving_payments (transaction_id, member_id, shares, amount, saving_type_id, recorder_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		p.TransactionID, p.MemberID, p.Shares, p.Amount, p.SavingTypeID, p.RecorderID, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return shared.ErrAlreadyProcessed
	}
	return err
}

// GetLoanPayment loads a loan payment by transaction id.
func (r *Repository) GetLoanPayment(ctx context.Context, transactionID string) (*LoanPayment, error) {
	return scanLoanPayment(r.pool.QueryRow(ctx, loanPaymentQuery+` WHERE transaction_id = $1`, transactionID))
}

// GetSavingPayment loads a saving payment by transaction id.
func (r *Repository) GetSavingPayment(ctx context.Context, transactionID string) (*SavingPayment, error) {
	return scanSavingPayment(r.pool.QueryRow(ctx, savingPaymentQuery+` WHERE transaction_id = $1`, transactionID))
}

// MarkLoanPaymentFailed abandons a pending payment whose gateway dispatch
// failed, so it is never left confirmable.
func (r *Repository) MarkLoanPaymentFailed(ctx context.Context, transactionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE loan_payments SET status = $2, updated_at = NOW()
		WHERE transaction_id = $1 AND status = $3`,
		transactionID, StatusFailed, StatusPending)
	return err
}

// MarkSavingPaymentFailed abandons a pending saving payment.
func (r *Repository) MarkSavingPaymentFailed(ctx context.Context, transactionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE saving_payments SET status = $2, updated_at = NOW()
		WHERE transaction_id = $1 AND status = $3`,
		transactionID, StatusFailed, StatusPending)
	return err
}

// ExpirePendingBefore marks pending payments created before the cutoff as
// EXPIRED. Used by the weekly sweep so lost callbacks do not strand rows.
func (r *Repository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	tag, err := r.pool.Exec(ctx, `
		UPDATE loan_payments SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3`,
		StatusExpired, StatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	total += tag.RowsAffected()
	tag, err = r.pool.Exec(ctx, `
		UPDATE saving_payments SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3`,
		StatusExpired, StatusPending, cutoff)
	if err != nil {
		return total, err
	}
	return total + tag.RowsAffected(), nil
}

// Tx exposes the row operations available inside a confirmation transaction.
type Tx interface {
	LoanPaymentByTransactionID(ctx context.Context, transactionID string) (*LoanPayment, error)
	LockLoan(ctx context.Context, loanID int64) (*ledger.Loan, error)
	MarkLoanPaymentSuccess(ctx context.Context, id int64) error
	UpdateLoanRepayment(ctx context.Context, loanID, paidAmount int64, status ledger.LoanStatus) error

	SavingPaymentByTransactionID(ctx context.Context, transactionID string) (*SavingPayment, error)
	MarkSavingPaymentSuccess(ctx context.Context, id int64) error
	SavingExistsOn(ctx context.Context, day time.Time) (bool, error)
	InsertSaving(ctx context.Context, s *ledger.Saving) error
	LockMember(ctx context.Context, memberID int64) (*ledger.Member, error)
	AddMemberBalance(ctx context.Context, memberID, amount int64) error
}

// WithTx wraps the callback in a repeatable-read transaction. Confirmation
// logic runs entirely inside: a failure at any step rolls back every prior
// step of the same attempt.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

const loanPaymentQuery = `
	SELECT id, transaction_id, loan_id, amount, method, phone, recorder_id, status, created_at, updated_at
	FROM loan_payments`

const savingPaymentQuery = `
	SELECT id, transaction_id, member_id, shares, amount, saving_type_id, recorder_id, status, created_at, updated_at
	FROM saving_payments`

func scanLoanPayment(row pgx.Row) (*LoanPayment, error) {
	var p LoanPayment
	err := row.Scan(&p.ID, &p.TransactionID, &p.LoanID, &p.Amount, &p.Method, &p.Phone,
		&p.RecorderID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSavingPayment(row pgx.Row) (*SavingPayment, error) {
	var p SavingPayment
	err := row.Scan(&p.ID, &p.TransactionID, &p.MemberID, &p.Shares, &p.Amount, &p.SavingTypeID,
		&p.RecorderID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txStore) LoanPaymentByTransactionID(ctx context.Context, transactionID string) (*LoanPayment, error) {
	return scanLoanPayment(t.tx.QueryRow(ctx, loanPaymentQuery+` WHERE transaction_id = $1`, transactionID))
}

// LockLoan reads the loan under a row lock so concurrent confirmations for
// the same loan serialize instead of racing the read-modify-write.
func (t *txStore) LockLoan(ctx context.Context, loanID int64) (*ledger.Loan, error) {
	var l ledger.Loan
	err := t.tx.QueryRow(ctx, `
		SELECT id, member_id, amount, amount_to_pay, paid_amount, status, created_at, updated_at
		FROM loans WHERE id = $1
		FOR UPDATE`, loanID,
	).Scan(&l.ID, &l.MemberID, &l.Amount, &l.AmountToPay, &l.PaidAmount, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkLoanPaymentSuccess is the consumption gate: the status predicate in the
// WHERE clause means only one attempt can ever flip the row.
func (t *txStore) MarkLoanPaymentSuccess(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE loan_payments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusSuccess, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyProcessed
	}
	return nil
}

func (t *txStore) UpdateLoanRepayment(ctx context.Context, loanID, paidAmount int64, status ledger.LoanStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE loans SET paid_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		loanID, paidAmount, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txStore) SavingPaymentByTransactionID(ctx context.Context, transactionID string) (*SavingPayment, error) {
	return scanSavingPayment(t.tx.QueryRow(ctx, savingPaymentQuery+` WHERE transaction_id = $1`, transactionID))
}

func (t *txStore) MarkSavingPaymentSuccess(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE saving_payments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusSuccess, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAlreadyProcessed
	}
	return nil
}

func (t *txStore) SavingExistsOn(ctx context.Context, day time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM savings WHERE date = $1 AND saving_type_id <> $2)`,
		day, ledger.BackfillTypeID,
	).Scan(&exists)
	return exists, err
}

func (t *txStore) InsertSaving(ctx context.Context, s *ledger.Saving) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO savings (date, member_id, saving_type_id, number_of_shares, share_value, amount, recorder_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at`,
		s.Date, s.MemberID, s.SavingTypeID, s.Shares, s.ShareValue, s.Amount, s.RecorderID,
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return shared.ErrAlreadyProcessed
	}
	return err
}

func (t *txStore) LockMember(ctx context.Context, memberID int64) (*ledger.Member, error) {
	var m ledger.Member
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, phone, balance FROM members WHERE id = $1 FOR UPDATE`, memberID,
	).Scan(&m.ID, &m.Name, &m.Phone, &m.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *txStore) AddMemberBalance(ctx context.Context, memberID, amount int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE members SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1`,
		memberID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
