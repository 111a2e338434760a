package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueLedger carries the integrity check. It is drained ahead of maintenance.
	QueueLedger = "ledger"
	// QueueMaintenance carries housekeeping such as idempotency cleanup.
	QueueMaintenance = "maintenance"
	// TaskIntegrityCheck recomputes the trial balance and the stock fold.
	TaskIntegrityCheck = "ledger:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// Queues maps each queue to its processing weight.
var Queues = map[string]int{
	QueueLedger:      3,
	QueueMaintenance: 1,
}

// IntegrityPayload carries the as-of date for the ledger check. A zero AsOf means "now".
type IntegrityPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewIntegrityTask constructs an Asynq task for the integrity check.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityCheck, body, asynq.Queue(QueueLedger), asynq.MaxRetry(3)), nil
}

// CleanupPayload configures how long idempotency keys are retained.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewCleanupTask constructs an Asynq task pruning idempotency keys.
func NewCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueMaintenance), asynq.MaxRetry(1)), nil
}
