package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/testutil"
)

func newTestOrchestrator(t *testing.T, run RunFunc) *Orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o := NewOrchestrator(ctx, run, &testutil.DummyLogger{})
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return o
}

// drain collects events until the job's channel closes.
func drain(t *testing.T, o *Orchestrator, jobID string) []JobEvent {
	t.Helper()
	events, ok := o.Events(jobID)
	require.True(t, ok)
	var out []JobEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, open := <-events:
			if !open {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("job %s did not finish; events so far: %+v", jobID, out)
		}
	}
}

func TestRunJobCompletes(t *testing.T) {
	t.Parallel()
	var got []string
	o := newTestOrchestrator(t, func(_ context.Context, names []string) (*suite.Summary, error) {
		got = names
		return &suite.Summary{RunID: "run-1", RunName: "Report-x", Cases: []suite.CaseResult{
			{Name: "login", Status: steps.StatusPassed},
			{Name: "import", Status: steps.StatusFailed},
		}}, nil
	})

	job, err := o.StartRunJob([]string{"login", "import"})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)

	events := drain(t, o, job.ID)
	require.Len(t, events, 3)
	assert.Equal(t, JobPending, events[0].Status)
	assert.Equal(t, JobRunning, events[1].Status)
	assert.Equal(t, JobEventResult, events[2].Type)
	assert.Equal(t, "run-1", events[2].RunID)
	assert.Equal(t, 1, events[2].Passed)
	assert.Equal(t, 1, events[2].Failed)

	final := o.GetJob(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, JobDone, final.Status)
	assert.True(t, final.Terminal())
	assert.Equal(t, 1, final.ExitCode)
	assert.False(t, final.EndedAt.IsZero())
	assert.Equal(t, []string{"login", "import"}, got)
}

func TestRunJobFailure(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, func(context.Context, []string) (*suite.Summary, error) {
		return nil, errors.New("chrome not found")
	})
	job, err := o.StartRunJob(nil)
	require.NoError(t, err)
	drain(t, o, job.ID)

	final := o.GetJob(job.ID)
	assert.Equal(t, JobFailed, final.Status)
	assert.Equal(t, "chrome not found", final.Error)
}

func TestRunJobCancel(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	o := newTestOrchestrator(t, func(ctx context.Context, _ []string) (*suite.Summary, error) {
		close(started)
		<-ctx.Done()
		return &suite.Summary{RunID: "partial"}, ctx.Err()
	})
	job, err := o.StartRunJob(nil)
	require.NoError(t, err)
	<-started

	_, err = o.StartRunJob(nil)
	assert.ErrorIs(t, err, ErrJobActive)

	require.NoError(t, o.CancelJob(job.ID))
	drain(t, o, job.ID)
	final := o.GetJob(job.ID)
	assert.Equal(t, JobCanceled, final.Status)
	assert.Equal(t, "partial", final.RunID)

	assert.ErrorIs(t, o.CancelJob("nope"), ErrJobNotFound)
	assert.Nil(t, o.GetJob("nope"))
}

func TestListJobsNewestFirst(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, func(context.Context, []string) (*suite.Summary, error) {
		return &suite.Summary{}, nil
	})
	first, err := o.StartRunJob([]string{"a"})
	require.NoError(t, err)
	drain(t, o, first.ID)
	// the slot frees right after the channel closes
	require.Eventually(t, func() bool {
		_, err := o.StartRunJob([]string{"b"})
		return err == nil
	}, time.Second, 5*time.Millisecond)

	jobs := o.ListJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{"b"}, jobs[0].Scenarios)
}

func TestShutdownStopsJobs(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, func(ctx context.Context, _ []string) (*suite.Summary, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	job, err := o.StartRunJob(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))
	assert.Equal(t, JobCanceled, o.GetJob(job.ID).Status)
}
