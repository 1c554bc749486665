package jobs

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusNotFound   Status = "not_found"
)

// Terminal reports whether no further transitions can happen
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Job is one file plus target-language translation request. Immutable once enqueued.
type Job struct {
	ID          string    `json:"id"`
	SourceKey   string    `json:"source_key"`
	TargetLang  string    `json:"target_language"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusRecord is the per-job progress snapshot returned to status queries.
type StatusRecord struct {
	Total                   int        `json:"total"`
	DialogueLines           int        `json:"dialogue_lines"`
	Completed               int        `json:"completed"`
	Status                  Status     `json:"status"`
	QueuePosition           int        `json:"queue_position"`
	TargetLanguage          string     `json:"target_language,omitempty"`
	SourceLanguage          string     `json:"source_language,omitempty"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	ETASeconds              float64    `json:"eta_seconds"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time,omitempty"`
	FinishedAt              *time.Time `json:"finished_at,omitempty"`
	ErrorMessage            string     `json:"error_message,omitempty"`
}

// NotFound is the record returned for ids nobody knows about.
func NotFound() StatusRecord {
	return StatusRecord{Status: StatusNotFound, QueuePosition: -1}
}

// Executor runs one job to completion.
type Executor func(ctx context.Context, job Job) error

// Store archives terminal status records so they outlive tracker eviction and restarts.
type Store interface {
	SaveStatus(ctx context.Context, id string, rec StatusRecord) error
	LoadStatus(ctx context.Context, id string) (StatusRecord, bool, error)
}
