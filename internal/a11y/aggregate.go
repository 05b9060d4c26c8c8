package a11y

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
)

const (
	DefaultPadding = 40
	ScreenshotDir  = "screenshots"
)

// Page is what the aggregator needs from a live page.
type Page interface {
	browser.Capturer
	IsVisible(ctx context.Context, h locator.Handle) (bool, error)
	ScrollIntoView(ctx context.Context, h locator.Handle) error
	BoundingBox(ctx context.Context, h locator.Handle) (*browser.Box, error)
}

// Aggregator groups violations by impact and attaches screenshot refs.
type Aggregator struct {
	Page Page
	// Dir is the report directory; captures go to Dir/screenshots.
	Dir     string
	Padding float64
	// Annotate outlines the node and prints the rule id on its capture.
	Annotate       bool
	CaptureTimeout time.Duration
	Logger         logging.Logger
	Now            func() time.Time
}

func NewAggregator(page Page, dir string, logger logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Aggregator{
		Page:           page,
		Dir:            dir,
		Padding:        DefaultPadding,
		Annotate:       true,
		CaptureTimeout: 10 * time.Second,
		Logger:         logger,
		Now:            time.Now,
	}
}

// Aggregate builds the report model. The scan is not modified. Capture
// failures leave nil refs and never fail the aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, scan *ScanResult) (*ReportModel, error) {
	if scan == nil || scan.Violations == nil {
		return nil, fmt.Errorf("%w: missing violations", ErrMalformedScan)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	model := NewReportModel(scan.URL, now())

	if err := os.MkdirAll(filepath.Join(a.Dir, ScreenshotDir), 0o755); err != nil {
		a.logger().Warn("cannot create screenshot directory", logging.Err(err))
	}

	index := 1
	for _, v := range scan.Violations {
		issue := v.clone()
		issue.MetaScreenshot = nil

		if len(issue.Nodes) == 0 {
			name := fmt.Sprintf("issue-%d.png", index)
			index++
			ref, err := a.captureFullPage(ctx, name, nil, issue.ID)
			if err != nil {
				a.logger().Warn("document screenshot failed",
					logging.Field{Key: "rule", Value: issue.ID}, logging.Err(err))
			}
			issue.MetaScreenshot = ref
		}

		for i := range issue.Nodes {
			node := &issue.Nodes[i]
			name := fmt.Sprintf("node-%d.png", index)
			index++
			ref, err := a.captureNode(ctx, name, node, issue.ID)
			if err != nil {
				a.logger().Warn("node screenshot failed",
					logging.Field{Key: "rule", Value: issue.ID},
					logging.Field{Key: "target", Value: node.Target.First()},
					logging.Err(err))
			}
			node.Screenshot = ref
		}

		lvl := issue.Level()
		model.Groups[lvl] = append(model.Groups[lvl], issue)
	}
	return model, nil
}

func (a *Aggregator) logger() logging.Logger {
	if a.Logger == nil {
		return logging.Nop{}
	}
	return a.Logger
}

// Capturable reports whether a selector can be located and clipped.
func Capturable(selector string) bool {
	s := strings.TrimSpace(selector)
	if s == "" || strings.Contains(s, ">>>") {
		return false
	}
	if strings.HasPrefix(s, "meta") || s == "html" || s == "head" {
		return false
	}
	return !strings.Contains(s, "::before") && !strings.Contains(s, "::after")
}

// captureNode tries a padded clip around the node and falls back to the full
// page.
func (a *Aggregator) captureNode(ctx context.Context, name string, node *Node, rule string) (*string, error) {
	if a.Page == nil {
		return nil, errors.New("no page to capture")
	}
	box := a.locate(ctx, node.Target.First())
	if box != nil {
		clip := box.Expand(a.Padding)
		ref, err := a.capture(ctx, name, browser.ScreenshotOptions{Clip: &clip}, box, &clip, rule)
		if err == nil {
			return ref, nil
		}
		a.logger().Debug("clipped screenshot failed, using full page",
			logging.Field{Key: "target", Value: node.Target.First()}, logging.Err(err))
	}
	return a.captureFullPage(ctx, name, box, rule)
}

// locate returns the node's box when it is capturable and visible.
func (a *Aggregator) locate(ctx context.Context, selector string) *browser.Box {
	if !Capturable(selector) {
		return nil
	}
	h, err := locator.Resolve(locator.CSS(selector))
	if err != nil {
		return nil
	}
	if visible, _ := a.Page.IsVisible(ctx, h); !visible {
		return nil
	}
	_ = a.Page.ScrollIntoView(ctx, h)
	box, err := a.Page.BoundingBox(ctx, h)
	if err != nil || box == nil {
		return nil
	}
	return box
}

func (a *Aggregator) captureFullPage(ctx context.Context, name string, box *browser.Box, rule string) (*string, error) {
	if a.Page == nil {
		return nil, errors.New("no page to capture")
	}
	return a.capture(ctx, name, browser.ScreenshotOptions{FullPage: true}, box, nil, rule)
}

// capture writes one screenshot and returns its report-relative path once
// the file is confirmed on disk.
func (a *Aggregator) capture(ctx context.Context, name string, opts browser.ScreenshotOptions, box, origin *browser.Box, rule string) (*string, error) {
	timeout := a.CaptureTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := a.Page.Screenshot(cctx, opts)
	if err != nil {
		return nil, err
	}
	if a.Annotate && box != nil {
		annotated, aerr := annotate(data, *box, origin, rule)
		if aerr != nil {
			a.logger().Debug("annotation skipped", logging.Err(aerr))
		} else {
			data = annotated
		}
	}

	path := filepath.Join(a.Dir, ScreenshotDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write screenshot: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("confirm screenshot: %w", err)
	}
	ref := ScreenshotDir + "/" + name
	return &ref, nil
}
