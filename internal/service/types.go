package service

import (
	"math"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

// State is the orchestrator activity flag.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Outcome is how the last run ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// RunRequest carries the per-run settings. Retries reuse the request of
// the last run.
type RunRequest struct {
	TargetLanguage language.Tag
	// Prompt is a template; {language} is replaced with the target
	// language name.
	Prompt string
	Model  string
}

// Progress counts finished work queue items of the current or last run.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

func newProgress(done, total int) Progress {
	if total <= 0 {
		return Progress{Percent: 100}
	}
	pct := int(math.Round(float64(done) / float64(total) * 100))
	return Progress{Done: done, Total: total, Percent: min(max(pct, 0), 100)}
}

// Options tune batching.
type Options struct {
	Planner       batch.Planner
	ContextWindow int
	// ChunkLimit caps texts per gateway call; larger batches are split
	// into chunks sent concurrently.
	ChunkLimit int
}

func DefaultOptions() Options {
	return Options{
		Planner:       batch.DefaultPlanner(),
		ContextWindow: batch.DefaultContextWindow,
		ChunkLimit:    30,
	}
}

// Snapshot is a consistent copy of the observable state.
type Snapshot struct {
	RunID          string          `json:"run_id,omitempty"`
	State          State           `json:"state"`
	Action         string          `json:"action,omitempty"`
	Outcome        Outcome         `json:"outcome,omitempty"`
	RunError       string          `json:"run_error,omitempty"`
	Progress       Progress        `json:"progress"`
	Format         subtitle.Format `json:"format,omitempty"`
	SourceLanguage string          `json:"source_language,omitempty"`
	TargetLanguage string          `json:"target_language,omitempty"`
	Items          []subtitle.Item `json:"items"`
	FailedBatches  []batch.View    `json:"failed_batches"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Counts tallies items by status.
func (s Snapshot) Counts() map[subtitle.Status]int {
	out := make(map[subtitle.Status]int, 4)
	for _, it := range s.Items {
		out[it.Status]++
	}
	return out
}
