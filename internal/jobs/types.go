package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Kind names an orchestrator action.
type Kind string

const (
	KindRun        Kind = "run"
	KindRetryItem  Kind = "retry-item"
	KindRetryBatch Kind = "retry-batch"
	KindRetryAll   Kind = "retry-all"
)

type EnqueueRequest struct {
	Kind      Kind
	DedupeKey string
	Payload   Payload
}

// Payload carries the parameters of one action. Only the fields relevant
// to the action kind are set.
type Payload struct {
	TargetLanguage string `json:"target_language,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	ItemID         int    `json:"item_id,omitempty"`
	BatchKey       string `json:"batch_key,omitempty"`
}

type Action struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	DedupeKey string    `json:"dedupe_key,omitempty"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seq uint64
}
