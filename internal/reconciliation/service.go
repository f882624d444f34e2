package reconciliation

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamii-coop/jamii-coop/internal/ledger"
)

// Ledger defines the persistence surface the weekly run depends on.
type Ledger interface {
	ListMemberIDs(ctx context.Context) ([]int64, error)
	MembersMissingSavingOn(ctx context.Context, day time.Time) ([]int64, error)
	InsertBackfillSaving(ctx context.Context, memberID int64, day time.Time) (bool, error)
	InsertPenalty(ctx context.Context, p ledger.Penalty) (bool, error)
}

// Sweeper expires payments stuck in PENDING, typically because a provider
// callback was lost.
type Sweeper interface {
	ExpireStalePending(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Service runs the weekly penalty and ledger-backfill pass.
type Service struct {
	logger *slog.Logger
	ledger Ledger
	rule   PenaltyRule
	sweep  Sweeper

	pendingMaxAge time.Duration
	workers       int
	now           func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Logger        *slog.Logger
	Ledger        Ledger
	Rule          PenaltyRule
	Sweeper       Sweeper
	PendingMaxAge time.Duration
	Workers       int
}

// NewService builds a Service instance.
func NewService(cfg ServiceConfig) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		logger:        cfg.Logger,
		ledger:        cfg.Ledger,
		rule:          cfg.Rule,
		sweep:         cfg.Sweeper,
		pendingMaxAge: cfg.PendingMaxAge,
		workers:       workers,
		now:           time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Summary reports what a reconciliation run changed.
type Summary struct {
	Day       time.Time
	Penalties int
	Backfills int
	Expired   int64
}

// Run executes the reconciliation pass for day. A zero day means the day
// before the run fires. The pass is best-effort: a failing step is logged
// and the next step still runs; every write is idempotent so a re-run for
// the same day changes nothing already present.
func (s *Service) Run(ctx context.Context, day time.Time) (Summary, error) {
	if day.IsZero() {
		day = s.now().AddDate(0, 0, -1)
	}
	y, m, d := day.UTC().Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	summary := Summary{Day: day}
	var firstErr error
	penalties, err := s.applyPenalties(ctx, day)
	if err != nil {
		s.logger.Error("apply penalties", slog.Time("day", day), slog.Any("error", err))
		firstErr = err
	}
	summary.Penalties = penalties

	backfills, err := s.backfill(ctx, day)
	if err != nil {
		s.logger.Error("backfill savings", slog.Time("day", day), slog.Any("error", err))
		if firstErr == nil {
			firstErr = err
		}
	}
	summary.Backfills = backfills

	if s.sweep != nil && s.pendingMaxAge > 0 {
		expired, err := s.sweep.ExpireStalePending(ctx, s.pendingMaxAge)
		if err != nil {
			s.logger.Error("expire stale pending", slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		} else if expired > 0 {
			s.logger.Info("expired stale pending payments", slog.Int64("count", expired))
		}
		summary.Expired = expired
	}
	return summary, firstErr
}

// applyPenalties evaluates the penalty rule for every member and records the
// resulting fines.
func (s *Service) applyPenalties(ctx context.Context, day time.Time) (int, error) {
	memberIDs, err := s.ledger.ListMemberIDs(ctx)
	if err != nil {
		return 0, err
	}

	var applied int
	for _, memberID := range memberIDs {
		assessment, err := s.rule.Assess(ctx, memberID, day)
		if err != nil {
			return applied, err
		}
		if !assessment.Apply {
			continue
		}
		inserted, err := s.ledger.InsertPenalty(ctx, ledger.Penalty{
			MemberID: memberID,
			Date:     day,
			Amount:   assessment.Amount,
			Status:   ledger.PenaltyStatusUnpaid,
		})
		if err != nil {
			return applied, err
		}
		if inserted {
			applied++
		}
	}

	s.logger.Info("penalties applied", slog.Time("day", day), slog.Int("count", applied))
	return applied, nil
}

// backfill inserts a zero-value saving row for every member lacking one, so
// the ledger has exactly one row per member per day.
func (s *Service) backfill(ctx context.Context, day time.Time) (int, error) {
	missing, err := s.ledger.MembersMissingSavingOn(ctx, day)
	if err != nil {
		return 0, err
	}

	var inserted atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, memberID := range missing {
		memberID := memberID
		g.Go(func() error {
			ok, err := s.ledger.InsertBackfillSaving(ctx, memberID, day)
			if ok {
				inserted.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return int(inserted.Load()), err
	}

	s.logger.Info("savings backfilled", slog.Time("day", day), slog.Int("count", len(missing)))
	return int(inserted.Load()), nil
}
