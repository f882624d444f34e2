package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jamii-coop/jamii-coop/internal/ledger"
	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// Store defines the persistence surface the service depends on.
type Store interface {
	InsertLoanPayment(ctx context.Context, p *LoanPayment) error
	InsertSavingPayment(ctx context.Context, p *SavingPayment) error
	GetLoanPayment(ctx context.Context, transactionID string) (*LoanPayment, error)
	GetSavingPayment(ctx context.Context, transactionID string) (*SavingPayment, error)
	MarkLoanPaymentFailed(ctx context.Context, transactionID string) error
	MarkSavingPaymentFailed(ctx context.Context, transactionID string) error
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// CompletionScheduler enqueues the delayed settlement of a simulated payment.
type CompletionScheduler interface {
	ScheduleSimulatedCompletion(ctx context.Context, transactionID string, delay time.Duration) error
}

// Service handles payment initiation and confirmation.
type Service struct {
	logger    *slog.Logger
	store     Store
	gateway   Gateway
	scheduler CompletionScheduler
	cache     *StatusCache

	baseURL        string
	simulatedDelay time.Duration

	printer *message.Printer
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Logger         *slog.Logger
	Store          Store
	Gateway        Gateway
	Scheduler      CompletionScheduler
	Cache          *StatusCache
	BaseURL        string
	SimulatedDelay time.Duration
}

// NewService builds a Service instance.
func NewService(cfg ServiceConfig) *Service {
	delay := cfg.SimulatedDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Service{
		logger:         cfg.Logger,
		store:          cfg.Store,
		gateway:        cfg.Gateway,
		scheduler:      cfg.Scheduler,
		cache:          cfg.Cache,
		baseURL:        cfg.BaseURL,
		simulatedDelay: delay,
		printer:        message.NewPrinter(language.English),
		now:            time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// InitiateLoanInput describes a loan repayment request.
type InitiateLoanInput struct {
	LoanID int64
	Amount int64
}

// InitiateSavingInput describes a savings deposit request. SavingTypeID may
// be zero; classification then falls back to the amount tiers at confirm.
type InitiateSavingInput struct {
	Shares       int64
	Amount       int64
	Total        int64
	SavingTypeID int
}

// SimulatedInput describes a simulated-provider repayment request.
type SimulatedInput struct {
	LoanID int64
	Amount int64
	Phone  string
}

// InitiationResult is returned to the caller without blocking on settlement.
type InitiationResult struct {
	TransactionID string
	Message       string
	Provider      json.RawMessage
}

// LoanConfirmation reports the outcome of a loan confirmation call.
type LoanConfirmation struct {
	TransactionID    string
	Amount           int64
	Method           Method
	LoanStatus       ledger.LoanStatus
	AlreadyConfirmed bool
	Message          string
}

// SavingConfirmation reports the outcome of a savings confirmation call.
type SavingConfirmation struct {
	TransactionID string
	Amount        int64
	SavingTypeID  int
	Message       string
}

func newTransactionID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InitiateLoanPayment persists a pending repayment and forwards it to the
// gateway. The pending row goes in first: when persistence fails no gateway
// call is made, and when the gateway call fails the row is marked FAILED so
// it can never settle later.
func (s *Service) InitiateLoanPayment(ctx context.Context, in InitiateLoanInput, recorderID int64) (*InitiationResult, error) {
	if in.LoanID <= 0 {
		return nil, fmt.Errorf("%w: loan id required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}

	p := &LoanPayment{
		TransactionID: newTransactionID("LP"),
		LoanID:        in.LoanID,
		Amount:        in.Amount,
		Method:        MethodGateway,
		RecorderID:    recorderID,
		Status:        StatusPending,
	}
	if err := s.store.InsertLoanPayment(ctx, p); err != nil {
		return nil, err
	}

	resp, err := s.gateway.Initiate(ctx, GatewayRequest{
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		CallbackURL:   fmt.Sprintf("%s/pay/%s/confirm", s.baseURL, p.TransactionID),
		SuccessURL:    fmt.Sprintf("%s/pay/success?transactionId=%s", s.baseURL, p.TransactionID),
	})
	if err != nil {
		if markErr := s.store.MarkLoanPaymentFailed(ctx, p.TransactionID); markErr != nil {
			s.logger.Error("mark loan payment failed", slog.String("transaction_id", p.TransactionID), slog.Any("error", markErr))
		}
		return nil, err
	}

	return &InitiationResult{
		TransactionID: p.TransactionID,
		Message:       s.printer.Sprintf("repayment of %d initiated for loan %d", p.Amount, p.LoanID),
		Provider:      resp.Raw,
	}, nil
}

// InitiateSavingPayment persists a pending deposit and forwards it to the
// gateway.
func (s *Service) InitiateSavingPayment(ctx context.Context, in InitiateSavingInput, recorderID int64) (*InitiationResult, error) {
	if in.Shares <= 0 {
		return nil, fmt.Errorf("%w: shares must be positive", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if in.SavingTypeID != 0 && !ValidSavingTypeID(in.SavingTypeID) {
		return nil, fmt.Errorf("%w: unknown saving type %d", shared.ErrValidation, in.SavingTypeID)
	}

	p := &SavingPayment{
		TransactionID: newTransactionID("SP"),
		MemberID:      recorderID,
		Shares:        in.Shares,
		Amount:        in.Amount,
		SavingTypeID:  in.SavingTypeID,
		RecorderID:    recorderID,
		Status:        StatusPending,
	}
	if err := s.store.InsertSavingPayment(ctx, p); err != nil {
		return nil, err
	}

	total := in.Total
	if total <= 0 {
		total = in.Amount
	}
	resp, err := s.gateway.Initiate(ctx, GatewayRequest{
		TransactionID: p.TransactionID,
		Amount:        total,
		CallbackURL:   fmt.Sprintf("%s/pay/saving/%s/confirm", s.baseURL, p.TransactionID),
		SuccessURL:    fmt.Sprintf("%s/pay/success?transactionId=%s", s.baseURL, p.TransactionID),
	})
	if err != nil {
		if markErr := s.store.MarkSavingPaymentFailed(ctx, p.TransactionID); markErr != nil {
			s.logger.Error("mark saving payment failed", slog.String("transaction_id", p.TransactionID), slog.Any("error", markErr))
		}
		return nil, err
	}

	return &InitiationResult{
		TransactionID: p.TransactionID,
		Message:       s.printer.Sprintf("deposit of %d initiated", p.Amount),
		Provider:      resp.Raw,
	}, nil
}

// InitiateSimulated persists a durable pending repayment and schedules its
// completion after a fixed delay. A process restart does not lose the record:
// the pending row lives in the store, the delayed task in the queue.
func (s *Service) InitiateSimulated(ctx context.Context, in SimulatedInput, recorderID int64) (*InitiationResult, error) {
	if in.LoanID <= 0 {
		return nil, fmt.Errorf("%w: loan id required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if in.Phone == "" {
		return nil, fmt.Errorf("%w: phone required", shared.ErrValidation)
	}

	p := &LoanPayment{
		TransactionID: newTransactionID("MP"),
		LoanID:        in.LoanID,
		Amount:        in.Amount,
		Method:        MethodSimulated,
		Phone:         in.Phone,
		RecorderID:    recorderID,
		Status:        StatusPending,
	}
	if err := s.store.InsertLoanPayment(ctx, p); err != nil {
		return nil, err
	}

	if err := s.scheduler.ScheduleSimulatedCompletion(ctx, p.TransactionID, s.simulatedDelay); err != nil {
		if markErr := s.store.MarkLoanPaymentFailed(ctx, p.TransactionID); markErr != nil {
			s.logger.Error("mark simulated payment failed", slog.String("transaction_id", p.TransactionID), slog.Any("error", markErr))
		}
		return nil, err
	}

	return &InitiationResult{
		TransactionID: p.TransactionID,
		Message:       "payment initiated, awaiting PIN confirmation",
	}, nil
}

// ConfirmLoanPayment settles a loan repayment exactly once. The whole
// algorithm runs in one transaction: load the payment, short-circuit when it
// already settled, lock the loan row, apply the amount, flip the payment
// status. A commit failure leaves the payment PENDING and safe to retry.
func (s *Service) ConfirmLoanPayment(ctx context.Context, transactionID string) (*LoanConfirmation, error) {
	var out *LoanConfirmation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LoanPaymentByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if p.Status == StatusSuccess {
			out = &LoanConfirmation{
				TransactionID:    p.TransactionID,
				Amount:           p.Amount,
				Method:           p.Method,
				AlreadyConfirmed: true,
				Message:          "payment already confirmed",
			}
			return nil
		}
		if !p.Status.CanTransition(StatusSuccess) {
			return fmt.Errorf("%w: payment is %s", shared.ErrAlreadyProcessed, p.Status)
		}

		loan, err := tx.LockLoan(ctx, p.LoanID)
		if err != nil {
			return err
		}
		newPaid := loan.PaidAmount + p.Amount
		// Equality on purpose: an overpayment leaves the loan ACTIVE.
		// Changing this to >= is a product decision, not a bug fix.
		status := ledger.LoanStatusActive
		if loan.AmountToPay == newPaid {
			status = ledger.LoanStatusPaid
		}

		if err := tx.MarkLoanPaymentSuccess(ctx, p.ID); err != nil {
			return err
		}
		if err := tx.UpdateLoanRepayment(ctx, loan.ID, newPaid, status); err != nil {
			return err
		}

		out = &LoanConfirmation{
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Method:        p.Method,
			LoanStatus:    status,
			Message:       s.printer.Sprintf("repayment of %d applied to loan %d", p.Amount, loan.ID),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.AlreadyConfirmed {
		if err := s.cache.Invalidate(ctx, transactionID); err != nil {
			s.logger.Warn("invalidate status cache", slog.String("transaction_id", transactionID), slog.Any("error", err))
		}
	}
	return out, nil
}

// ConfirmSavingPayment settles a savings deposit exactly once: flip the
// payment status, insert the saving ledger row, credit the member balance.
// All three happen in one transaction or not at all.
func (s *Service) ConfirmSavingPayment(ctx context.Context, transactionID string, recorderID int64) (*SavingConfirmation, error) {
	var out *SavingConfirmation
	today := dateOnly(s.now())

	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.SavingPaymentByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if p.Status == StatusSuccess {
			return fmt.Errorf("%w: already saved", shared.ErrAlreadyProcessed)
		}
		if !p.Status.CanTransition(StatusSuccess) {
			return fmt.Errorf("%w: payment is %s", shared.ErrAlreadyProcessed, p.Status)
		}

		exists, err := tx.SavingExistsOn(ctx, today)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: a deposit was already recorded today", shared.ErrAlreadyProcessed)
		}

		if err := tx.MarkSavingPaymentSuccess(ctx, p.ID); err != nil {
			return err
		}

		typeID := p.SavingTypeID
		if typeID == 0 {
			typeID = ClassifySavingType(p.Amount)
		}
		saving := &ledger.Saving{
			Date:         today,
			MemberID:     p.MemberID,
			SavingTypeID: typeID,
			Shares:       p.Shares,
			ShareValue:   float64(p.Amount) / float64(p.Shares),
			Amount:       p.Amount,
			RecorderID:   recorderID,
		}
		if err := tx.InsertSaving(ctx, saving); err != nil {
			return err
		}

		if _, err := tx.LockMember(ctx, p.MemberID); err != nil {
			return err
		}
		if err := tx.AddMemberBalance(ctx, p.MemberID, p.Amount); err != nil {
			return err
		}

		out = &SavingConfirmation{
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			SavingTypeID:  typeID,
			Message:       s.printer.Sprintf("deposit of %d saved", p.Amount),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, transactionID); err != nil {
		s.logger.Warn("invalidate status cache", slog.String("transaction_id", transactionID), slog.Any("error", err))
	}
	return out, nil
}

// PaymentStatus looks up the current status of a transaction, serving from
// the cache when fresh.
func (s *Service) PaymentStatus(ctx context.Context, transactionID string) (Status, error) {
	if status, ok := s.cache.Get(ctx, transactionID); ok {
		return status, nil
	}

	var status Status
	if lp, err := s.store.GetLoanPayment(ctx, transactionID); err == nil {
		status = lp.Status
	} else if sp, spErr := s.store.GetSavingPayment(ctx, transactionID); spErr == nil {
		status = sp.Status
	} else {
		return "", err
	}

	if err := s.cache.Set(ctx, transactionID, status); err != nil {
		s.logger.Warn("cache payment status", slog.String("transaction_id", transactionID), slog.Any("error", err))
	}
	return status, nil
}

// ExpireStalePending abandons pending payments older than maxAge. Run from
// the weekly reconciliation job so lost provider callbacks cannot strand
// rows in PENDING forever.
func (s *Service) ExpireStalePending(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.store.ExpirePendingBefore(ctx, s.now().Add(-maxAge))
}
