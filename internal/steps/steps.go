// Package steps records human-readable test steps with screenshots.
package steps

import (
	"context"
	"errors"
)

var ErrCaptureFailed = errors.New("capture failed")

// Status values follow the Allure result vocabulary.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusBroken  = "broken"
	StatusSkipped = "skipped"
)

// Outcome is the result of one attempt or action.
type Outcome struct {
	Failed bool
	Reason string
}

func Success() Outcome { return Outcome{} }

func Failure(reason string) Outcome { return Outcome{Failed: true, Reason: reason} }

func (o Outcome) Status() string {
	if o.Failed {
		return StatusFailed
	}
	return StatusPassed
}

// StatusOf maps a case error to a status. Context cancellation is broken,
// any other error failed.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusPassed
	case errors.Is(err, context.Canceled):
		return StatusBroken
	default:
		return StatusFailed
	}
}

// Sink records one step per interaction attempt. It never fails.
type Sink interface {
	RecordStep(ctx context.Context, description string, outcome Outcome)
}

// Reporter is the step-reporting collaborator. Step runs body inside a named
// step so attachments made from body belong to that step.
type Reporter interface {
	Step(ctx context.Context, title string, outcome Outcome, body func(ctx context.Context) error) error
	Attach(ctx context.Context, name string, data []byte, mimeType string) error
}

// NopReporter runs step bodies and drops everything else.
type NopReporter struct{}

func (NopReporter) Step(ctx context.Context, _ string, _ Outcome, body func(context.Context) error) error {
	if body == nil {
		return nil
	}
	return body(ctx)
}

func (NopReporter) Attach(context.Context, string, []byte, string) error { return nil }

// MultiReporter fans steps out to several reporters. Steps nest so each
// reporter sees the body's attachments inside its own step.
type MultiReporter []Reporter

func (m MultiReporter) Step(ctx context.Context, title string, outcome Outcome, body func(context.Context) error) error {
	if len(m) == 0 {
		return NopReporter{}.Step(ctx, title, outcome, body)
	}
	return m[0].Step(ctx, title, outcome, func(ctx context.Context) error {
		return m[1:].Step(ctx, title, outcome, body)
	})
}

func (m MultiReporter) Attach(ctx context.Context, name string, data []byte, mimeType string) error {
	var errs []error
	for _, r := range m {
		if err := r.Attach(ctx, name, data, mimeType); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
