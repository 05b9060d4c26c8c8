package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/logging"
)

const defaultCaptureTimeout = 10 * time.Second

// CaptureSink screenshots the viewport for every step and hands both to a
// Reporter.
type CaptureSink struct {
	Capturer browser.Capturer
	Reporter Reporter
	Logger   logging.Logger
	// Timeout bounds each capture; zero means 10s.
	Timeout time.Duration
}

func NewCaptureSink(c browser.Capturer, r Reporter, logger logging.Logger) *CaptureSink {
	if r == nil {
		r = NopReporter{}
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &CaptureSink{Capturer: c, Reporter: r, Logger: logger}
}

func (s *CaptureSink) RecordStep(ctx context.Context, description string, outcome Outcome) {
	png, err := s.capture(ctx)
	if err != nil {
		s.Logger.Warn("step screenshot skipped",
			logging.Field{Key: "step", Value: description},
			logging.Err(err))
	}

	err = s.Reporter.Step(ctx, description, outcome, func(ctx context.Context) error {
		if png == nil {
			return nil
		}
		return s.Reporter.Attach(ctx, "screenshot", png, "image/png")
	})
	if err != nil {
		s.Logger.Warn("step not recorded",
			logging.Field{Key: "step", Value: description},
			logging.Err(err))
	}
}

// capture returns ErrCaptureFailed wrapped around the driver error.
func (s *CaptureSink) capture(ctx context.Context) ([]byte, error) {
	if s.Capturer == nil {
		return nil, fmt.Errorf("%w: no capturer", ErrCaptureFailed)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	png, err := s.Capturer.Screenshot(ctx, browser.ScreenshotOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return png, nil
}
