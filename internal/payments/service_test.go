package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamii-coop/jamii-coop/internal/ledger"
	"github.com/jamii-coop/jamii-coop/internal/shared"
)

// memoryStore implements Store with transactional semantics: WithTx holds a
// lock for the whole callback and restores a snapshot when it fails, so
// commit/rollback and serialization behave like the real repository.
type memoryStore struct {
	mu             sync.Mutex
	loanPayments   map[string]*LoanPayment
	savingPayments map[string]*SavingPayment
	loans          map[int64]*ledger.Loan
	members        map[int64]*ledger.Member
	savings        []*ledger.Saving
	nextID         int64

	insertSavingErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		loanPayments:   make(map[string]*LoanPayment),
		savingPayments: make(map[string]*SavingPayment),
		loans:          make(map[int64]*ledger.Loan),
		members:        make(map[int64]*ledger.Member),
	}
}

func (s *memoryStore) InsertLoanPayment(ctx context.Context, p *LoanPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loanPayments[p.TransactionID]; ok {
		return shared.ErrAlreadyProcessed
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now()
	cp := *p
	s.loanPayments[p.TransactionID] = &cp
	return nil
}

func (s *memoryStore) InsertSavingPayment(ctx context.Context, p *SavingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.savingPayments[p.TransactionID]; ok {
		return shared.ErrAlreadyProcessed
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now()
	cp := *p
	s.savingPayments[p.TransactionID] = &cp
	return nil
}

func (s *memoryStore) GetLoanPayment(ctx context.Context, transactionID string) (*LoanPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.loanPayments[transactionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) GetSavingPayment(ctx context.Context, transactionID string) (*SavingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.savingPayments[transactionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) MarkLoanPaymentFailed(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.loanPayments[transactionID]; ok && p.Status == StatusPending {
		p.Status = StatusFailed
	}
	return nil
}

func (s *memoryStore) MarkSavingPaymentFailed(ctx context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.savingPayments[transactionID]; ok && p.Status == StatusPending {
		p.Status = StatusFailed
	}
	return nil
}

func (s *memoryStore) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.loanPayments {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = StatusExpired
			n++
		}
	}
	for _, p := range s.savingPayments {
		if p.Status == StatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) snapshot() *memoryStore {
	snap := newMemoryStore()
	for k, v := range s.loanPayments {
		cp := *v
		snap.loanPayments[k] = &cp
	}
	for k, v := range s.savingPayments {
		cp := *v
		snap.savingPayments[k] = &cp
	}
	for k, v := range s.loans {
		cp := *v
		snap.loans[k] = &cp
	}
	for k, v := range s.members {
		cp := *v
		snap.members[k] = &cp
	}
	for _, v := range s.savings {
		cp := *v
		snap.savings = append(snap.savings, &cp)
	}
	return snap
}

func (s *memoryStore) restore(snap *memoryStore) {
	s.loanPayments = snap.loanPayments
	s.savingPayments = snap.savingPayments
	s.loans = snap.loans
	s.members = snap.members
	s.savings = snap.savings
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) LoanPaymentByTransactionID(ctx context.Context, transactionID string) (*LoanPayment, error) {
	p, ok := t.store.loanPayments[transactionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memoryTx) LockLoan(ctx context.Context, loanID int64) (*ledger.Loan, error) {
	l, ok := t.store.loans[loanID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (t *memoryTx) MarkLoanPaymentSuccess(ctx context.Context, id int64) error {
	for _, p := range t.store.loanPayments {
		if p.ID == id {
			if p.Status != StatusPending {
				return shared.ErrAlreadyProcessed
			}
			p.Status = StatusSuccess
			return nil
		}
	}
	return shared.ErrNotFound
}

func (t *memoryTx) UpdateLoanRepayment(ctx context.Context, loanID, paidAmount int64, status ledger.LoanStatus) error {
	l, ok := t.store.loans[loanID]
	if !ok {
		return shared.ErrNotFound
	}
	l.PaidAmount = paidAmount
	l.Status = status
	return nil
}

func (t *memoryTx) SavingPaymentByTransactionID(ctx context.Context, transactionID string) (*SavingPayment, error) {
	p, ok := t.store.savingPayments[transactionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memoryTx) MarkSavingPaymentSuccess(ctx context.Context, id int64) error {
	for _, p := range t.store.savingPayments {
		if p.ID == id {
			if p.Status != StatusPending {
				return shared.ErrAlreadyProcessed
			}
			p.Status = StatusSuccess
			return nil
		}
	}
	return shared.ErrNotFound
}

func (t *memoryTx) SavingExistsOn(ctx context.Context, day time.Time) (bool, error) {
	for _, s := range t.store.savings {
		if s.Date.Equal(day) && s.SavingTypeID != ledger.BackfillTypeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertSaving(ctx context.Context, s *ledger.Saving) error {
	if t.store.insertSavingErr != nil {
		return t.store.insertSavingErr
	}
	t.store.nextID++
	s.ID = t.store.nextID
	cp := *s
	t.store.savings = append(t.store.savings, &cp)
	return nil
}

func (t *memoryTx) LockMember(ctx context.Context, memberID int64) (*ledger.Member, error) {
	m, ok := t.store.members[memberID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (t *memoryTx) AddMemberBalance(ctx context.Context, memberID, amount int64) error {
	m, ok := t.store.members[memberID]
	if !ok {
		return shared.ErrNotFound
	}
	m.Balance += amount
	return nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []GatewayRequest
	err      error
}

func (g *fakeGateway) Initiate(ctx context.Context, req GatewayRequest) (*GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &GatewayResponse{Accepted: true, Raw: json.RawMessage(`{"status":"accepted"}`)}, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
	delay     time.Duration
	err       error
}

func (f *fakeScheduler) ScheduleSimulatedCompletion(ctx context.Context, transactionID string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, transactionID)
	f.delay = delay
	return nil
}

func newTestService(store *memoryStore, gw *fakeGateway, sched *fakeScheduler) *Service {
	return NewService(ServiceConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:          store,
		Gateway:        gw,
		Scheduler:      sched,
		Cache:          NewStatusCache(nil, 0),
		BaseURL:        "http://127.0.0.1:8080",
		SimulatedDelay: 3 * time.Second,
	})
}

func seedLoan(store *memoryStore, id, amountToPay, paid int64) {
	store.loans[id] = &ledger.Loan{
		ID:          id,
		MemberID:    1,
		Amount:      amountToPay,
		AmountToPay: amountToPay,
		PaidAmount:  paid,
		Status:      ledger.LoanStatusActive,
	}
}

func seedPendingLoanPayment(t *testing.T, store *memoryStore, loanID, amount int64) string {
	t.Helper()
	p := &LoanPayment{
		TransactionID: newTransactionID("LP"),
		LoanID:        loanID,
		Amount:        amount,
		Method:        MethodGateway,
		Status:        StatusPending,
	}
	require.NoError(t, store.InsertLoanPayment(context.Background(), p))
	return p.TransactionID
}

func seedPendingSavingPayment(t *testing.T, store *memoryStore, memberID, shares, amount int64, typeID int) string {
	t.Helper()
	p := &SavingPayment{
		TransactionID: newTransactionID("SP"),
		MemberID:      memberID,
		Shares:        shares,
		Amount:        amount,
		SavingTypeID:  typeID,
		Status:        StatusPending,
	}
	require.NoError(t, store.InsertSavingPayment(context.Background(), p))
	return p.TransactionID
}

func TestInitiateLoanPaymentCreatesPendingRow(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gw := &fakeGateway{}
	svc := newTestService(store, gw, &fakeScheduler{})

	result, err := svc.InitiateLoanPayment(ctx, InitiateLoanInput{LoanID: 7, Amount: 2500}, 42)
	require.NoError(t, err)
	require.NotEmpty(t, result.TransactionID)

	p, err := store.GetLoanPayment(ctx, result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Equal(t, int64(42), p.RecorderID)

	require.Len(t, gw.requests, 1)
	require.Equal(t, result.TransactionID, gw.requests[0].TransactionID)
	require.Contains(t, gw.requests[0].CallbackURL, result.TransactionID)
}

func TestInitiateLoanPaymentRejectsInvalidInput(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGateway{}, &fakeScheduler{})

	_, err := svc.InitiateLoanPayment(context.Background(), InitiateLoanInput{LoanID: 0, Amount: 100}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.InitiateLoanPayment(context.Background(), InitiateLoanInput{LoanID: 1, Amount: 0}, 1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestInitiateLoanPaymentGatewayFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gw := &fakeGateway{err: &shared.ProviderError{StatusCode: 502, Body: "gateway down"}}
	svc := newTestService(store, gw, &fakeScheduler{})

	_, err := svc.InitiateLoanPayment(ctx, InitiateLoanInput{LoanID: 7, Amount: 2500}, 1)
	var pe *shared.ProviderError
	require.ErrorAs(t, err, &pe)

	// The pending row must not stay confirmable after a dispatch failure.
	var failed int
	for _, p := range store.loanPayments {
		if p.Status == StatusFailed {
			failed++
		}
	}
	require.Equal(t, 1, failed)
}

func TestConfirmLoanPaymentExactPayoff(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 4000)
	txID := seedPendingLoanPayment(t, store, 1, 1000)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	result, err := svc.ConfirmLoanPayment(ctx, txID)
	require.NoError(t, err)
	require.False(t, result.AlreadyConfirmed)
	require.Equal(t, int64(1000), result.Amount)
	require.Equal(t, ledger.LoanStatusPaid, result.LoanStatus)

	require.Equal(t, int64(5000), store.loans[1].PaidAmount)
	require.Equal(t, ledger.LoanStatusPaid, store.loans[1].Status)
}

func TestConfirmLoanPaymentPartial(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 4000)
	txID := seedPendingLoanPayment(t, store, 1, 500)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	result, err := svc.ConfirmLoanPayment(ctx, txID)
	require.NoError(t, err)
	require.Equal(t, ledger.LoanStatusActive, result.LoanStatus)
	require.Equal(t, int64(4500), store.loans[1].PaidAmount)
	require.Equal(t, ledger.LoanStatusActive, store.loans[1].Status)
}

func TestConfirmLoanPaymentOverpaymentStaysActive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 4000)
	txID := seedPendingLoanPayment(t, store, 1, 2000)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	result, err := svc.ConfirmLoanPayment(ctx, txID)
	require.NoError(t, err)
	require.Equal(t, int64(6000), store.loans[1].PaidAmount)
	require.Equal(t, ledger.LoanStatusActive, result.LoanStatus)
}

func TestConfirmLoanPaymentIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 0)
	txID := seedPendingLoanPayment(t, store, 1, 1500)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	first, err := svc.ConfirmLoanPayment(ctx, txID)
	require.NoError(t, err)
	require.False(t, first.AlreadyConfirmed)

	second, err := svc.ConfirmLoanPayment(ctx, txID)
	require.NoError(t, err)
	require.True(t, second.AlreadyConfirmed)
	require.Equal(t, first.Amount, second.Amount)

	require.Equal(t, int64(1500), store.loans[1].PaidAmount)
}

func TestConfirmLoanPaymentUnknownTransaction(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGateway{}, &fakeScheduler{})

	_, err := svc.ConfirmLoanPayment(context.Background(), "LP-missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConfirmLoanPaymentFailedPaymentCannotSettle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 0)
	txID := seedPendingLoanPayment(t, store, 1, 1000)
	require.NoError(t, store.MarkLoanPaymentFailed(ctx, txID))
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	_, err := svc.ConfirmLoanPayment(ctx, txID)
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	require.Equal(t, int64(0), store.loans[1].PaidAmount)
}

func TestConfirmLoanPaymentConcurrentNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 10000, 0)
	txA := seedPendingLoanPayment(t, store, 1, 1500)
	txB := seedPendingLoanPayment(t, store, 1, 1500)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	errc := make(chan error, 2)
	var wg sync.WaitGroup
	for _, txID := range []string{txA, txB} {
		txID := txID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmLoanPayment(ctx, txID)
			errc <- err
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		require.NoError(t, err)
	}

	require.Equal(t, int64(3000), store.loans[1].PaidAmount)
}

func TestConfirmSavingPaymentAppliesOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.members[5] = &ledger.Member{ID: 5, Balance: 2000}
	txID := seedPendingSavingPayment(t, store, 5, 10, 10000, 0)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	result, err := svc.ConfirmSavingPayment(ctx, txID, 9)
	require.NoError(t, err)
	require.Equal(t, int64(10000), result.Amount)
	require.Equal(t, SavingTypeA, result.SavingTypeID)

	require.Equal(t, int64(12000), store.members[5].Balance)
	require.Len(t, store.savings, 1)
	require.Equal(t, int64(10), store.savings[0].Shares)
	require.Equal(t, float64(1000), store.savings[0].ShareValue)
	require.Equal(t, int64(9), store.savings[0].RecorderID)
}

func TestConfirmSavingPaymentClassification(t *testing.T) {
	cases := []struct {
		amount int64
		typeID int
	}{
		{10000, SavingTypeA},
		{3000, SavingTypeB},
		{7000, SavingTypeC},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("amount_%d", tc.amount), func(t *testing.T) {
			store := newMemoryStore()
			store.members[1] = &ledger.Member{ID: 1}
			txID := seedPendingSavingPayment(t, store, 1, 5, tc.amount, 0)
			svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

			result, err := svc.ConfirmSavingPayment(context.Background(), txID, 1)
			require.NoError(t, err)
			require.Equal(t, tc.typeID, result.SavingTypeID)
			require.Equal(t, float64(tc.amount)/5, store.savings[0].ShareValue)
		})
	}
}

func TestConfirmSavingPaymentExplicitTypePreserved(t *testing.T) {
	store := newMemoryStore()
	store.members[1] = &ledger.Member{ID: 1}
	txID := seedPendingSavingPayment(t, store, 1, 5, 10000, SavingTypeC)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	result, err := svc.ConfirmSavingPayment(context.Background(), txID, 1)
	require.NoError(t, err)
	require.Equal(t, SavingTypeC, result.SavingTypeID)
}

func TestConfirmSavingPaymentDuplicateReturnsConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.members[5] = &ledger.Member{ID: 5}
	txID := seedPendingSavingPayment(t, store, 5, 10, 10000, 0)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	_, err := svc.ConfirmSavingPayment(ctx, txID, 1)
	require.NoError(t, err)
	balance := store.members[5].Balance

	_, err = svc.ConfirmSavingPayment(ctx, txID, 1)
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	require.Equal(t, balance, store.members[5].Balance)
	require.Len(t, store.savings, 1)
}

func TestConfirmSavingPaymentSameDayGuard(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.members[5] = &ledger.Member{ID: 5}
	store.members[6] = &ledger.Member{ID: 6}
	txA := seedPendingSavingPayment(t, store, 5, 10, 10000, 0)
	txB := seedPendingSavingPayment(t, store, 6, 3, 3000, 0)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	_, err := svc.ConfirmSavingPayment(ctx, txA, 1)
	require.NoError(t, err)

	// The guard is deliberately coarse: any real deposit today blocks
	// further confirmations, regardless of member.
	_, err = svc.ConfirmSavingPayment(ctx, txB, 1)
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	require.Equal(t, int64(0), store.members[6].Balance)
}

func TestConfirmSavingPaymentRollsBackOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.members[5] = &ledger.Member{ID: 5, Balance: 100}
	txID := seedPendingSavingPayment(t, store, 5, 10, 10000, 0)
	store.insertSavingErr = errors.New("disk full")
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	_, err := svc.ConfirmSavingPayment(ctx, txID, 1)
	require.Error(t, err)

	// Every step of the failed attempt must unwind.
	p, getErr := store.GetSavingPayment(ctx, txID)
	require.NoError(t, getErr)
	require.Equal(t, StatusPending, p.Status)
	require.Equal(t, int64(100), store.members[5].Balance)
	require.Empty(t, store.savings)
}

func TestInitiateSimulatedSchedulesCompletion(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sched := &fakeScheduler{}
	svc := newTestService(store, &fakeGateway{}, sched)

	result, err := svc.InitiateSimulated(ctx, SimulatedInput{LoanID: 3, Amount: 800, Phone: "0788123456"}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, result.TransactionID)

	p, err := store.GetLoanPayment(ctx, result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, p.Status)
	require.Equal(t, MethodSimulated, p.Method)

	require.Equal(t, []string{result.TransactionID}, sched.scheduled)
	require.Equal(t, 3*time.Second, sched.delay)
}

func TestInitiateSimulatedScheduleFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	sched := &fakeScheduler{err: errors.New("queue unavailable")}
	svc := newTestService(store, &fakeGateway{}, sched)

	_, err := svc.InitiateSimulated(ctx, SimulatedInput{LoanID: 3, Amount: 800, Phone: "0788123456"}, 2)
	require.Error(t, err)

	var failed int
	for _, p := range store.loanPayments {
		if p.Status == StatusFailed {
			failed++
		}
	}
	require.Equal(t, 1, failed)
}

func TestPaymentStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	loanTx := seedPendingLoanPayment(t, store, 1, 1000)
	savingTx := seedPendingSavingPayment(t, store, 2, 5, 3000, 0)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	status, err := svc.PaymentStatus(ctx, loanTx)
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)

	status, err = svc.PaymentStatus(ctx, savingTx)
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)

	_, err = svc.PaymentStatus(ctx, "LP-missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExpireStalePending(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	seedLoan(store, 1, 5000, 0)
	staleTx := seedPendingLoanPayment(t, store, 1, 1000)
	store.loanPayments[staleTx].CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	freshTx := seedPendingLoanPayment(t, store, 1, 1000)
	svc := newTestService(store, &fakeGateway{}, &fakeScheduler{})

	expired, err := svc.ExpireStalePending(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), expired)

	stale, _ := store.GetLoanPayment(ctx, staleTx)
	require.Equal(t, StatusExpired, stale.Status)
	fresh, _ := store.GetLoanPayment(ctx, freshTx)
	require.Equal(t, StatusPending, fresh.Status)

	// An expired payment can no longer settle.
	_, err = svc.ConfirmLoanPayment(ctx, staleTx)
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
}
