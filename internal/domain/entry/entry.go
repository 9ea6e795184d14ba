// Package entry provides the immutable envelope for step submissions.
package entry

import (
	"errors"
	"time"
)

// ErrValidation marks an inbound submission that failed validation.
// Such submissions are dropped with a logged warning, never fatal.
var ErrValidation = errors.New("invalid submission")

// Entry is one step submission accepted by the pipeline. Entries are
// append-only; a visitor may legitimately produce multiple entries for
// the same topic (e.g. repeated payment attempts), so there is no upsert.
type Entry struct {
	ID          string         `json:"id"`
	Identity    string         `json:"identity"`
	Topic       string         `json:"topic"`
	Payload     map[string]any `json:"payload"`
	Page        string         `json:"page,omitempty"`
	StepNumber  int            `json:"stepNumber,omitempty"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// PartitionRecord is one row held in a visitor-scoped partition.
type PartitionRecord struct {
	ID         string         `json:"id"`
	Identity   string         `json:"identity"`
	DataType   string         `json:"dataType"`
	Payload    map[string]any `json:"payload"`
	Page       string         `json:"page,omitempty"`
	StepNumber int            `json:"stepNumber,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
