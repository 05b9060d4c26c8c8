package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
)

var (
	ErrJobActive   = errors.New("a run is already in progress")
	ErrJobNotFound = errors.New("job not found")
)

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventResult JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For results
	RunID  string `json:"run_id,omitempty"`
	Passed int    `json:"passed,omitempty"`
	Failed int    `json:"failed,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

func (s JobStatus) terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

// Job is one background suite run.
type Job struct {
	ID        string        `json:"id"`
	Scenarios []string      `json:"scenarios"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Events    chan JobEvent `json:"-"`

	// Set once the run finishes.
	RunID    string `json:"run_id,omitempty"`
	RunName  string `json:"run_name,omitempty"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Broken   int    `json:"broken"`
	ExitCode int    `json:"exit_code"`
}

// RunFunc runs the named scenarios to completion.
type RunFunc func(ctx context.Context, names []string) (*suite.Summary, error)

// Orchestrator runs suites in the background, one at a time, since every
// run drives the same browser configuration.
type Orchestrator struct {
	run    RunFunc
	logger logging.Logger
	base   context.Context
	wg     sync.WaitGroup

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	active     string
}

// NewOrchestrator ties a run function to a logger. Jobs stop when base is
// cancelled.
func NewOrchestrator(base context.Context, run RunFunc, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Orchestrator{
		run:        run,
		logger:     logger,
		base:       base,
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}
}

func (o *Orchestrator) emitJobEvent(job *Job, ev JobEvent) {
	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

// update applies fn to the job under the lock and emits the event it returns.
func (o *Orchestrator) update(jobID string, fn func(*Job) JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	var ev JobEvent
	if ok {
		ev = fn(job)
	}
	o.jobsMu.Unlock()
	if ok {
		ev.JobID = jobID
		o.emitJobEvent(job, ev)
	}
}

// StartRunJob runs names (all scenarios when empty) in the background.
func (o *Orchestrator) StartRunJob(names []string) (*Job, error) {
	o.jobsMu.Lock()
	if o.active != "" {
		o.jobsMu.Unlock()
		return nil, ErrJobActive
	}
	job := &Job{
		ID:        uuid.New().String(),
		Scenarios: append([]string(nil), names...),
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 16),
	}
	jobCtx, cancel := context.WithCancel(o.base)
	o.jobs[job.ID] = job
	o.jobCancels[job.ID] = cancel
	o.active = job.ID
	snapshot := *job
	o.jobsMu.Unlock()

	o.emitJobEvent(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobPending})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.jobsMu.Lock()
			job.EndedAt = time.Now().UTC()
			delete(o.jobCancels, job.ID)
			o.active = ""
			o.jobsMu.Unlock()
			cancel()

			// Close events channel so websocket loop can terminate cleanly
			close(job.Events)
		}()

		o.update(job.ID, func(j *Job) JobEvent {
			j.Status = JobRunning
			return JobEvent{Type: JobEventStatus, Status: JobRunning}
		})

		sum, err := o.run(jobCtx, names)
		o.update(job.ID, func(j *Job) JobEvent {
			switch {
			case jobCtx.Err() != nil:
				j.Status = JobCanceled
				j.Error = jobCtx.Err().Error()
				j.absorb(sum)
				return JobEvent{Type: JobEventStatus, Status: JobCanceled, Error: j.Error}
			case err != nil:
				j.Status = JobFailed
				j.Error = err.Error()
				return JobEvent{Type: JobEventStatus, Status: JobFailed, Error: j.Error}
			default:
				j.Status = JobDone
				j.absorb(sum)
				return JobEvent{Type: JobEventResult, Status: JobDone, RunID: j.RunID, Passed: j.Passed, Failed: j.Failed + j.Broken}
			}
		})
		if err != nil && jobCtx.Err() == nil {
			o.logger.Error("run job failed", logging.Field{Key: "job_id", Value: job.ID}, logging.Err(err))
		}
	}()

	return &snapshot, nil
}

func (j *Job) absorb(sum *suite.Summary) {
	if sum == nil {
		return
	}
	counts := sum.Counts()
	j.RunID = sum.RunID
	j.RunName = sum.RunName
	j.Passed = counts[steps.StatusPassed]
	j.Failed = counts[steps.StatusFailed]
	j.Broken = counts[steps.StatusBroken]
	j.ExitCode = sum.ExitCode()
}

// CancelJob stops a pending or running job.
func (o *Orchestrator) CancelJob(jobID string) error {
	o.jobsMu.Lock()
	cancel, ok := o.jobCancels[jobID]
	_, known := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !known {
		return ErrJobNotFound
	}
	if ok {
		cancel()
	}
	return nil
}

// GetJob returns a copy of the job, or nil.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// Events returns the job's event channel. It closes when the job ends.
func (o *Orchestrator) Events(jobID string) (<-chan JobEvent, bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Events, true
}

// ListJobs returns copies of all jobs, newest first.
func (o *Orchestrator) ListJobs() []Job {
	o.jobsMu.Lock()
	out := make([]Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, *j)
	}
	o.jobsMu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.After(out[k].StartedAt) })
	return out
}

// Shutdown cancels every job and waits for them to stop.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.jobsMu.Lock()
	for _, cancel := range o.jobCancels {
		cancel()
	}
	o.jobsMu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminal reports whether the job has finished.
func (j *Job) Terminal() bool { return j.Status.terminal() }
