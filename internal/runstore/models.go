package runstore

import (
	"time"

	"github.com/raysh454/uiflow/internal/steps"
)

const StatusRunning = "running"

// Run is one invocation of the suite.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ResultsDir string     `json:"results_dir,omitempty"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	Broken     int        `json:"broken"`
	Skipped    int        `json:"skipped"`
}

// Case is one scenario execution inside a run.
type Case struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	Name       string       `json:"name"`
	FullName   string       `json:"full_name,omitempty"`
	Labels     steps.Labels `json:"labels"`
	Status     string       `json:"status"`
	Message    string       `json:"message,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Step is one reported step. ParentID is nil for top-level steps.
type Step struct {
	ID          int64        `json:"id"`
	CaseID      string       `json:"case_id"`
	ParentID    *int64       `json:"parent_id,omitempty"`
	Seq         int          `json:"seq"`
	Depth       int          `json:"depth"`
	Title       string       `json:"title"`
	Status      string       `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment points at a blob. StepID is nil for case-level attachments.
type Attachment struct {
	ID     int64  `json:"id"`
	CaseID string `json:"case_id"`
	StepID *int64 `json:"step_id,omitempty"`
	Name   string `json:"name"`
	Mime   string `json:"mime"`
	BlobID string `json:"blob_id"`
	Size   int    `json:"size"`
}

// EventType names what changed in a live feed.
type EventType string

const (
	EventCaseStarted  EventType = "case_started"
	EventStep         EventType = "step"
	EventCaseFinished EventType = "case_finished"
	EventRunFinished  EventType = "run_finished"
)

// Event is published to run subscribers.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	Case  *Case     `json:"case,omitempty"`
	Step  *Step     `json:"step,omitempty"`
	Run   *Run      `json:"run,omitempty"`
}
