package runstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
)

// CaseRecorder is a steps.Reporter that writes one case's steps and
// attachments to the store. Attachments belong to the innermost open step.
type CaseRecorder struct {
	store *Store

	mu    sync.Mutex
	c     Case
	seq   int
	stack []int64
}

var _ steps.Reporter = (*CaseRecorder)(nil)

func (r *CaseRecorder) ID() string { return r.c.ID }

func (r *CaseRecorder) Step(ctx context.Context, title string, outcome steps.Outcome, body func(context.Context) error) error {
	r.mu.Lock()
	r.seq++
	st := Step{
		CaseID: r.c.ID,
		Seq:    r.seq,
		Depth:  len(r.stack),
		Title:  title,
		Status: outcome.Status(),
		Reason: outcome.Reason,
	}
	if n := len(r.stack); n > 0 {
		parent := r.stack[n-1]
		st.ParentID = &parent
	}
	started := r.store.millis()
	st.StartedAt = fromMillis(started)
	res, err := r.store.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO steps (case_id, parent_id, seq, depth, title, status, reason, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.CaseID, st.ParentID, st.Seq, st.Depth, st.Title, st.Status, st.Reason, started)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("insert step: %w", err)
	}
	st.ID, err = res.LastInsertId()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("step id: %w", err)
	}
	r.stack = append(r.stack, st.ID)
	r.mu.Unlock()

	var bodyErr error
	if body != nil {
		bodyErr = body(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = r.stack[:len(r.stack)-1]
	if bodyErr != nil && !outcome.Failed {
		st.Status = steps.StatusBroken
		st.Reason = bodyErr.Error()
	}
	finished := r.store.millis()
	_, err = r.store.db.ExecContext(context.WithoutCancel(ctx),
		`UPDATE steps SET status = ?, reason = ?, finished_at = ? WHERE id = ?`,
		st.Status, st.Reason, finished, st.ID)
	if err != nil {
		r.store.logger.Warn("step not finalised", logging.Field{Key: "step_id", Value: st.ID}, logging.Err(err))
	}
	ft := fromMillis(finished)
	st.FinishedAt = &ft
	st.Attachments = []Attachment{}
	r.store.publish(Event{Type: EventStep, RunID: r.c.RunID, Step: &st})
	return bodyErr
}

func (r *CaseRecorder) Attach(ctx context.Context, name string, data []byte, mimeType string) error {
	blobID, err := r.store.blobs.Put(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var stepID *int64
	if n := len(r.stack); n > 0 {
		id := r.stack[n-1]
		stepID = &id
	}
	_, err = r.store.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO attachments (case_id, step_id, name, mime, blob_id, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.c.ID, stepID, name, mimeType, blobID, len(data), r.store.millis())
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

// Finish closes the case with the status err maps to.
func (r *CaseRecorder) Finish(ctx context.Context, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.c.Status = steps.StatusOf(err)
	if err != nil {
		r.c.Message = err.Error()
	}
	finished := r.store.millis()
	ft := fromMillis(finished)
	r.c.FinishedAt = &ft
	_, dbErr := r.store.db.ExecContext(context.WithoutCancel(ctx),
		`UPDATE cases SET status = ?, message = ?, finished_at = ? WHERE id = ?`,
		r.c.Status, r.c.Message, finished, r.c.ID)
	if dbErr != nil {
		return fmt.Errorf("finish case: %w", dbErr)
	}
	snapshot := r.c
	r.store.publish(Event{Type: EventCaseFinished, RunID: r.c.RunID, Case: &snapshot})
	return nil
}

// Skip closes the case as skipped.
func (r *CaseRecorder) Skip(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.c.Status = steps.StatusSkipped
	r.c.Message = reason
	finished := r.store.millis()
	ft := fromMillis(finished)
	r.c.FinishedAt = &ft
	if _, err := r.store.db.ExecContext(context.WithoutCancel(ctx),
		`UPDATE cases SET status = ?, message = ?, finished_at = ? WHERE id = ?`,
		r.c.Status, r.c.Message, finished, r.c.ID); err != nil {
		return fmt.Errorf("skip case: %w", err)
	}
	snapshot := r.c
	r.store.publish(Event{Type: EventCaseFinished, RunID: r.c.RunID, Case: &snapshot})
	return nil
}
