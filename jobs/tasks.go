package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue for ledger maintenance jobs.
	QueueDefault = "default"
	// TaskChainVerify re-verifies journal hash chains.
	TaskChainVerify = "ledger:chain:verify"
	// TaskApprovedPosting posts transactions whose approval was granted but not yet applied.
	TaskApprovedPosting = "ledger:approvals:post"
)

// ChainVerifyPayload scopes a verification run. Empty CompanyIDs means every company.
type ChainVerifyPayload struct {
	CompanyIDs []int64 `json:"company_ids,omitempty"`
}

// ApprovedPostingPayload bounds one sweep.
type ApprovedPostingPayload struct {
	Limit int `json:"limit"`
}

// NewChainVerifyTask builds the chain verification task.
func NewChainVerifyTask(companyIDs ...int64) (*asynq.Task, error) {
	data, err := json.Marshal(ChainVerifyPayload{CompanyIDs: companyIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChainVerify, data), nil
}

// NewApprovedPostingTask builds the approved-posting sweep task.
func NewApprovedPostingTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(ApprovedPostingPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovedPosting, data), nil
}
