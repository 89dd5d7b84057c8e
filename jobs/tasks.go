package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillingOverdueSweep moves past-due pending billings to overdue.
	TaskBillingOverdueSweep = "billing:overdue_sweep"
	// TaskInventoryLowStockScan reports products at or below their minimum level.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
)

// OverdueSweepPayload carries the reference time of a sweep. Zero means the
// time the task runs.
type OverdueSweepPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewOverdueSweepTask constructs an Asynq task for the billing sweep.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingOverdueSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
