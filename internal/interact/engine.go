// Package interact runs keyword actions against a page with retries,
// visibility gating and a step record for every attempt.
package interact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
)

const verifyPollInterval = 100 * time.Millisecond

// Sleeper pauses between attempts. Tests inject one to observe backoff.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

var realSleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// Engine executes interactions on one page. It is not safe for concurrent
// use; a page runs one interaction at a time.
type Engine struct {
	page   browser.Page
	sink   steps.Sink
	logger logging.Logger
	cfg    Config
	sleep  Sleeper
}

func New(page browser.Page, sink steps.Sink, logger logging.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Engine{
		page:   page,
		sink:   sink,
		logger: logger,
		cfg:    cfg.With(),
		sleep:  realSleeper,
	}
}

// SetSleeper replaces the timer-based sleeper.
func (e *Engine) SetSleeper(s Sleeper) {
	if s == nil {
		s = realSleeper
	}
	e.sleep = s
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Page() browser.Page { return e.page }

func (e *Engine) record(ctx context.Context, desc string, outcome steps.Outcome) {
	if e.sink == nil {
		return
	}
	e.sink.RecordStep(ctx, desc, outcome)
}

func (e *Engine) resolve(d locator.Descriptor) (locator.Handle, error) {
	h, err := locator.Resolve(d)
	if err != nil {
		e.logger.Error("invalid locator", logging.Field{Key: "locator", Value: locator.Describe(d)}, logging.Err(err))
	}
	return h, err
}

// waitVisible bounds the visibility wait and types its failure.
func (e *Engine) waitVisible(ctx context.Context, h locator.Handle, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.page.WaitVisible(waitCtx, h); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVisibilityTimeout, h.Desc, err)
	}
	return nil
}

// Navigate loads url and records the step.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	if err := e.page.Navigate(ctx, url); err != nil {
		e.logger.Error("navigation failed", logging.Field{Key: "url", Value: url}, logging.Err(err))
		e.record(ctx, "Failed to navigate to: "+url, steps.Failure(err.Error()))
		return err
	}
	e.logger.Info("navigated", logging.Field{Key: "url", Value: url})
	e.record(ctx, "Navigated to "+url, steps.Success())
	return nil
}

// Click retries a click until it lands or attempts run out. Every attempt
// produces a step record.
func (e *Engine) Click(ctx context.Context, d locator.Descriptor, opts ...Option) error {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return err
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		attempts = attempt
		err := e.clickOnce(ctx, h, cfg)
		if err == nil {
			e.logger.Info("clicked",
				logging.Field{Key: "locator", Value: h.Desc},
				logging.Field{Key: "attempt", Value: attempt})
			e.record(ctx, fmt.Sprintf("Clicked on element: %s (attempt %d)", h.Desc, attempt), steps.Success())
			return nil
		}

		lastErr = err
		e.logger.Warn("click attempt failed",
			logging.Field{Key: "locator", Value: h.Desc},
			logging.Field{Key: "attempt", Value: attempt},
			logging.Err(err))
		e.record(ctx, fmt.Sprintf("Click attempt %d failed for %s", attempt, h.Desc), steps.Failure(err.Error()))

		if cfg.TryFallbackInvoke {
			e.fallbackInvoke(ctx, h, cfg)
		}
		if serr := e.sleep.Sleep(ctx, cfg.BackoffBase*time.Duration(attempt)); serr != nil {
			lastErr = errors.Join(lastErr, serr)
			break
		}
	}

	e.logger.Error("click failed",
		logging.Field{Key: "locator", Value: h.Desc},
		logging.Field{Key: "attempts", Value: attempts},
		logging.Err(lastErr))
	e.record(ctx, fmt.Sprintf("Failed to click element after %d attempts: %s", attempts, h.Desc), steps.Failure(lastErr.Error()))
	return &InteractionFailedError{Target: h.Desc, Attempts: attempts, Last: lastErr}
}

func (e *Engine) clickOnce(ctx context.Context, h locator.Handle, cfg Config) error {
	if err := e.waitVisible(ctx, h, cfg.WaitTimeout); err != nil {
		return err
	}

	// Query errors count as "no".
	if visible, _ := e.page.IsVisible(ctx, h); !visible {
		return fmt.Errorf("%w: %s", ErrVisibilityTimeout, h.Desc)
	}
	if enabled, _ := e.page.IsEnabled(ctx, h); !enabled {
		if err := e.sleep.Sleep(ctx, cfg.EnableGrace); err != nil {
			return err
		}
		if enabled, _ = e.page.IsEnabled(ctx, h); !enabled {
			return fmt.Errorf("%w: %s is not enabled", ErrVisibilityTimeout, h.Desc)
		}
	}

	if cfg.ScrollIntoView {
		if err := e.page.ScrollIntoView(ctx, h); err != nil {
			e.logger.Debug("scroll into view failed", logging.Field{Key: "locator", Value: h.Desc}, logging.Err(err))
		}
	}

	clickCtx, cancel := context.WithTimeout(ctx, cfg.ClickTimeout)
	defer cancel()
	return e.page.Click(clickCtx, h)
}

// fallbackInvoke is best effort. Its errors are logged and dropped.
func (e *Engine) fallbackInvoke(ctx context.Context, h locator.Handle, cfg Config) {
	invokeCtx, cancel := context.WithTimeout(ctx, cfg.ClickTimeout)
	err := e.page.InvokeClick(invokeCtx, h)
	cancel()
	if err != nil {
		e.logger.Debug("fallback click failed", logging.Field{Key: "locator", Value: h.Desc}, logging.Err(err))
	}
	_ = e.sleep.Sleep(ctx, cfg.FallbackSettle)
}

// single runs one non-retried action: wait for visibility, act, record.
func (e *Engine) single(ctx context.Context, h locator.Handle, cfg Config, failTitle string, act func(ctx context.Context) (string, error)) error {
	err := e.waitVisible(ctx, h, cfg.WaitTimeout)
	okTitle := ""
	if err == nil {
		okTitle, err = act(ctx)
	}
	if err != nil {
		e.logger.Error(failTitle, logging.Err(err))
		e.record(ctx, failTitle, steps.Failure(err.Error()))
		return err
	}
	e.logger.Info(okTitle)
	e.record(ctx, okTitle, steps.Success())
	return nil
}

// Type sends keystrokes to the element without clearing it.
func (e *Engine) Type(ctx context.Context, d locator.Descriptor, text string, opts ...Option) error {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return err
	}
	return e.single(ctx, h, cfg, "Failed to type in: "+h.Desc, func(ctx context.Context) (string, error) {
		actCtx, cancel := context.WithTimeout(ctx, cfg.TypeTimeout)
		defer cancel()
		if err := e.page.Type(actCtx, h, text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Typed %q into: %s", text, h.Desc), nil
	})
}

// Fill replaces the element's value.
func (e *Engine) Fill(ctx context.Context, d locator.Descriptor, text string, opts ...Option) error {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return err
	}
	return e.single(ctx, h, cfg, "Failed to fill in: "+h.Desc, func(ctx context.Context) (string, error) {
		actCtx, cancel := context.WithTimeout(ctx, cfg.FillTimeout)
		defer cancel()
		if err := e.page.Fill(actCtx, h, text); err != nil {
			return "", err
		}
		return fmt.Sprintf("Filled %q into: %s", text, h.Desc), nil
	})
}

// GetText returns the element's rendered text.
func (e *Engine) GetText(ctx context.Context, d locator.Descriptor, opts ...Option) (string, error) {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return "", err
	}
	var text string
	err = e.single(ctx, h, cfg, "Failed to get text from: "+h.Desc, func(ctx context.Context) (string, error) {
		var err error
		text, err = e.page.Text(ctx, h)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Got text from %s: %q", h.Desc, text), nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// VerifyText polls until the element's text equals expected, comparing with
// whitespace collapsed, or VerifyTimeout elapses.
func (e *Engine) VerifyText(ctx context.Context, d locator.Descriptor, expected string, opts ...Option) error {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return err
	}
	failTitle := "Text verification failed for: " + h.Desc

	err = e.pollText(ctx, h, cfg, expected)
	if err != nil {
		e.logger.Error(failTitle, logging.Err(err))
		e.record(ctx, failTitle, steps.Failure(err.Error()))
		return err
	}
	title := fmt.Sprintf("Verified text %q for: %s", expected, h.Desc)
	e.logger.Info(title)
	e.record(ctx, title, steps.Success())
	return nil
}

func (e *Engine) pollText(ctx context.Context, h locator.Handle, cfg Config, expected string) error {
	verifyCtx, cancel := context.WithTimeout(ctx, cfg.VerifyTimeout)
	defer cancel()

	polls := int(cfg.VerifyTimeout / verifyPollInterval)
	if polls < 1 {
		polls = 1
	}
	want := normalizeSpace(expected)
	var (
		got     string
		read    bool
		lastErr error
	)
	for i := 0; i < polls; i++ {
		text, err := e.page.Text(verifyCtx, h)
		if err == nil {
			read = true
			got = normalizeSpace(text)
			if got == want {
				return nil
			}
		} else {
			lastErr = err
		}
		if i == polls-1 {
			break
		}
		if err := e.sleep.Sleep(verifyCtx, verifyPollInterval); err != nil {
			break
		}
	}
	if !read {
		if lastErr == nil {
			lastErr = context.DeadlineExceeded
		}
		return fmt.Errorf("%w: %s: %w", ErrVisibilityTimeout, h.Desc, lastErr)
	}
	return fmt.Errorf("%w: %s: want %q, got %q: %s", ErrTextMismatch, h.Desc, want, got, textDiff(want, got))
}

// WaitForVisible blocks until the element is visible. It logs but records no
// step.
func (e *Engine) WaitForVisible(ctx context.Context, d locator.Descriptor, opts ...Option) error {
	cfg := e.cfg.With(opts...)
	h, err := e.resolve(d)
	if err != nil {
		return err
	}
	if err := e.waitVisible(ctx, h, cfg.WaitTimeout); err != nil {
		e.logger.Warn("element did not become visible", logging.Field{Key: "locator", Value: h.Desc}, logging.Err(err))
		return err
	}
	e.logger.Info("Waited until element is visible: " + h.Desc)
	return nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
