package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWeeklyReconciliation runs the penalty and backfill pass.
	TaskWeeklyReconciliation = "reconciliation:weekly"
	// TaskSimulatedComplete settles a simulated payment after its delay.
	TaskSimulatedComplete = "payment:simulated_complete"
)

// WeeklyReconciliationPayload carries scheduling metadata. Day is the ledger
// date to reconcile; zero means the day before the task fires.
type WeeklyReconciliationPayload struct {
	Day time.Time `json:"day"`
}

// NewWeeklyReconciliationTask constructs an Asynq task for the weekly run.
func NewWeeklyReconciliationTask(day time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(WeeklyReconciliationPayload{Day: day})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWeeklyReconciliation, body, asynq.Queue(QueueDefault)), nil
}

// SimulatedCompletePayload identifies the payment to settle.
type SimulatedCompletePayload struct {
	TransactionID string `json:"transaction_id"`
}

// NewSimulatedCompleteTask constructs an Asynq task for a delayed settlement.
func NewSimulatedCompleteTask(transactionID string) (*asynq.Task, error) {
	body, err := json.Marshal(SimulatedCompletePayload{TransactionID: transactionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSimulatedComplete, body, asynq.Queue(QueueDefault)), nil
}
