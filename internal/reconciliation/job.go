package reconciliation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/jamii-coop/jamii-coop/internal/jobs"
	"github.com/jamii-coop/jamii-coop/jobs"
)

// WeeklyJob processes the scheduled reconciliation task.
type WeeklyJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewWeeklyJob constructs a job handler. A nil metrics falls back to the
// default registerer.
func NewWeeklyJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *WeeklyJob {
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &WeeklyJob{service: service, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract. Failures are logged and not
// retried before the next scheduled run; the pass is idempotent either way.
func (j *WeeklyJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.WeeklyReconciliationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(jobs.TaskWeeklyReconciliation)
	summary, err := j.service.Run(ctx, payload.Day)
	j.metrics.AddPenalties(summary.Penalties)
	j.metrics.AddBackfills(summary.Backfills)
	if tracker.End(err) != nil {
		if j.logger != nil {
			j.logger.Error("weekly reconciliation", slog.Time("day", summary.Day), slog.Any("error", err))
		}
		return asynq.SkipRetry
	}

	if j.logger != nil {
		j.logger.Info("weekly reconciliation done",
			slog.Time("day", summary.Day),
			slog.Int("penalties", summary.Penalties),
			slog.Int("backfills", summary.Backfills),
			slog.Int64("expired", summary.Expired))
	}
	return nil
}
