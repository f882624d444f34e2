package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/jamii-coop/jamii-coop/internal/jobs"
	"github.com/jamii-coop/jamii-coop/internal/shared"
	"github.com/jamii-coop/jamii-coop/jobs"
)

// CompletionJob settles simulated payments when their delayed task fires.
// It drives the same confirmation path as the gateway callback, so the
// idempotency and status-machine guarantees hold for both.
type CompletionJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewCompletionJob constructs a job handler. A nil metrics falls back to the
// default registerer.
func NewCompletionJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *CompletionJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &CompletionJob{service: service, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *CompletionJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.SimulatedCompletePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TransactionID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(jobs.TaskSimulatedComplete)
	result, err := j.service.ConfirmLoanPayment(ctx, payload.TransactionID)
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrAlreadyProcessed):
		// Nothing left to settle for this transaction.
		_ = tracker.End(nil)
		return asynq.SkipRetry
	case err != nil:
		if j.logger != nil {
			j.logger.Error("simulated completion", slog.String("transaction_id", payload.TransactionID), slog.Any("error", err))
		}
		return tracker.End(err)
	}
	_ = tracker.End(nil)
	if !result.AlreadyConfirmed {
		j.metrics.AddSettlement(string(result.Method))
	}

	if j.logger != nil {
		j.logger.Info("simulated payment completed",
			slog.String("transaction_id", payload.TransactionID),
			slog.Int64("amount", result.Amount),
			slog.Bool("already_confirmed", result.AlreadyConfirmed))
	}
	return nil
}
