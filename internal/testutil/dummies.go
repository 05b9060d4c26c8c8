// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without a real browser.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// Lines returns every recorded message regardless of level.
func (l *DummyLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	out = append(out, l.Debugs...)
	out = append(out, l.Infos...)
	out = append(out, l.Warns...)
	out = append(out, l.Errors...)
	return out
}

// ─── Page ──────────────────────────────────────────────────────────────

// FakeElement scripts how one element behaves.
type FakeElement struct {
	// WaitFailures makes the first N WaitVisible calls fail. Negative means
	// the element never becomes visible.
	WaitFailures int
	Hidden       bool
	// DisabledChecks makes the first N IsEnabled calls report false.
	// Negative means always disabled.
	DisabledChecks int
	ClickFailures  int
	ScrollErr      error
	InvokeErr      error
	Text           string
	Value          string
	Box            *browser.Box
	// ClipErr fails clipped screenshots of this element's region.
	ClipErr error
}

// FakePage implements browser.Page against scripted elements keyed by
// Handle.Query.
type FakePage struct {
	mu       sync.Mutex
	Elements map[string]*FakeElement

	CurrentURL    string
	NavigateErr   error
	ScreenshotErr error
	PNG           []byte
	EvalFunc      func(expr string, res any) error

	Waits       map[string]int
	Clicks      map[string]int
	Invokes     map[string]int
	Enables     map[string]int
	Calls       []string
	Screenshots []browser.ScreenshotOptions
	Closed      bool
}

var _ browser.Page = (*FakePage)(nil)

func NewFakePage() *FakePage {
	return &FakePage{
		Elements: map[string]*FakeElement{},
		Waits:    map[string]int{},
		Clicks:   map[string]int{},
		Invokes:  map[string]int{},
		Enables:  map[string]int{},
		PNG:      TinyPNG(8, 8),
	}
}

// Add registers el under the handle d resolves to.
func (p *FakePage) Add(d locator.Descriptor, el *FakeElement) *FakeElement {
	h := locator.MustResolve(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elements[h.Query] = el
	return el
}

func (p *FakePage) record(call string) {
	p.Calls = append(p.Calls, call)
}

func (p *FakePage) element(h locator.Handle) (*FakeElement, error) {
	el, ok := p.Elements[h.Query]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, h.Desc)
	}
	return el, nil
}

func (p *FakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate " + url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	return nil
}

func (p *FakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) WaitVisible(ctx context.Context, h locator.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("wait " + h.Desc)
	p.Waits[h.Query]++
	el, err := p.element(h)
	if err != nil {
		return fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
	}
	if el.WaitFailures < 0 || p.Waits[h.Query] <= el.WaitFailures {
		return fmt.Errorf("waiting for %s: %w", h.Desc, context.DeadlineExceeded)
	}
	return ctx.Err()
}

func (p *FakePage) IsVisible(_ context.Context, h locator.Handle) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(h)
	if err != nil {
		return false, nil
	}
	return !el.Hidden && el.WaitFailures >= 0, nil
}

func (p *FakePage) IsEnabled(_ context.Context, h locator.Handle) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Enables[h.Query]++
	el, err := p.element(h)
	if err != nil {
		return false, nil
	}
	if el.DisabledChecks < 0 {
		return false, nil
	}
	return p.Enables[h.Query] > el.DisabledChecks, nil
}

func (p *FakePage) ScrollIntoView(_ context.Context, h locator.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scroll " + h.Desc)
	el, err := p.element(h)
	if err != nil {
		return err
	}
	return el.ScrollErr
}

func (p *FakePage) Click(_ context.Context, h locator.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("click " + h.Desc)
	p.Clicks[h.Query]++
	el, err := p.element(h)
	if err != nil {
		return err
	}
	if p.Clicks[h.Query] <= el.ClickFailures {
		return fmt.Errorf("click %s: element is covered by another element", h.Desc)
	}
	return nil
}

func (p *FakePage) InvokeClick(_ context.Context, h locator.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("invoke " + h.Desc)
	p.Invokes[h.Query]++
	el, err := p.element(h)
	if err != nil {
		return err
	}
	return el.InvokeErr
}

func (p *FakePage) Type(_ context.Context, h locator.Handle, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("type " + h.Desc)
	el, err := p.element(h)
	if err != nil {
		return err
	}
	el.Value += text
	return nil
}

func (p *FakePage) Fill(_ context.Context, h locator.Handle, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("fill " + h.Desc)
	el, err := p.element(h)
	if err != nil {
		return err
	}
	el.Value = text
	return nil
}

func (p *FakePage) Text(_ context.Context, h locator.Handle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(h)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (p *FakePage) BoundingBox(_ context.Context, h locator.Handle) (*browser.Box, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.Elements[h.Query]
	if !ok || el.Box == nil {
		return nil, nil
	}
	b := *el.Box
	return &b, nil
}

func (p *FakePage) Evaluate(_ context.Context, expr string, res any) error {
	p.mu.Lock()
	fn := p.EvalFunc
	p.record("evaluate")
	p.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(expr, res)
}

func (p *FakePage) Screenshot(_ context.Context, opts browser.ScreenshotOptions) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Screenshots = append(p.Screenshots, opts)
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if opts.Clip != nil {
		for _, el := range p.Elements {
			if el.Box != nil && el.ClipErr != nil && opts.Clip.Contains(*el.Box) {
				return nil, el.ClipErr
			}
		}
	}
	return append([]byte(nil), p.PNG...), nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// CallsWithPrefix filters recorded calls.
func (p *FakePage) CallsWithPrefix(prefix string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// TinyPNG encodes a solid w×h image.
func TinyPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ─── Sleeper ───────────────────────────────────────────────────────────

// FakeSleeper records requested sleeps without blocking.
type FakeSleeper struct {
	mu    sync.Mutex
	Slept []time.Duration
}

func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Slept = append(s.Slept, d)
	return ctx.Err()
}

// ─── Steps ─────────────────────────────────────────────────────────────

type RecordedStep struct {
	Description string
	Outcome     steps.Outcome
}

// RecordingSink implements steps.Sink.
type RecordingSink struct {
	mu    sync.Mutex
	Steps []RecordedStep
}

func (s *RecordingSink) RecordStep(_ context.Context, description string, outcome steps.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Steps = append(s.Steps, RecordedStep{Description: description, Outcome: outcome})
}

func (s *RecordingSink) Failures() []RecordedStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RecordedStep
	for _, st := range s.Steps {
		if st.Outcome.Failed {
			out = append(out, st)
		}
	}
	return out
}

type ReportedStep struct {
	Title       string
	Status      string
	Depth       int
	Attachments []string
}

// RecordingReporter implements steps.Reporter.
type RecordingReporter struct {
	mu       sync.Mutex
	depth    int
	current  *ReportedStep
	Steps    []*ReportedStep
	Loose    []string
	Payloads map[string][]byte
	StepErr  error
}

func (r *RecordingReporter) Step(ctx context.Context, title string, outcome steps.Outcome, body func(context.Context) error) error {
	r.mu.Lock()
	if r.StepErr != nil {
		r.mu.Unlock()
		return r.StepErr
	}
	st := &ReportedStep{Title: title, Status: outcome.Status(), Depth: r.depth}
	r.Steps = append(r.Steps, st)
	prev := r.current
	r.current = st
	r.depth++
	r.mu.Unlock()

	var err error
	if body != nil {
		err = body(ctx)
	}

	r.mu.Lock()
	r.depth--
	r.current = prev
	r.mu.Unlock()
	return err
}

func (r *RecordingReporter) Attach(_ context.Context, name string, data []byte, mimeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Payloads == nil {
		r.Payloads = map[string][]byte{}
	}
	r.Payloads[name] = data
	label := name + " (" + mimeType + ")"
	if r.current != nil {
		r.current.Attachments = append(r.current.Attachments, label)
		return nil
	}
	r.Loose = append(r.Loose, label)
	return nil
}
