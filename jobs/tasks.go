// Package jobs runs the background work of the store service on Asynq.
package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity is the task type for the nightly ledger scan.
	TaskLedgerIntegrity = "ledger:integrity"
)

// NewLedgerIntegrityTask constructs the integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}
