package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskChainVerify re-walks an audit hash chain end to end.
	TaskChainVerify = "security:chain_verify"
	// TaskAnomalyScan replays recent audit entries through the detectors.
	TaskAnomalyScan = "security:anomaly_scan"
	// TaskGrantSweep expires overdue break-glass grants.
	TaskGrantSweep = "security:grant_sweep"
)

// ChainVerifyPayload selects the chain to verify. An empty chain means the
// global chain.
type ChainVerifyPayload struct {
	Chain string `json:"chain"`
}

// AnomalyScanPayload bounds the scan window in hours.
type AnomalyScanPayload struct {
	WindowHours int `json:"window_hours"`
}

// GrantSweepPayload is currently empty; the sweep always covers every
// outstanding grant.
type GrantSweepPayload struct{}

// NewChainVerifyTask constructs an Asynq task.
func NewChainVerifyTask(payload ChainVerifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChainVerify, data), nil
}

// NewAnomalyScanTask constructs an Asynq task.
func NewAnomalyScanTask(payload AnomalyScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnomalyScan, data), nil
}

// NewGrantSweepTask constructs an Asynq task.
func NewGrantSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(GrantSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantSweep, data), nil
}
