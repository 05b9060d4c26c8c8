package a11y

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raysh454/uiflow/internal/logging"
)

var ErrScriptMissing = errors.New("axe-core script not available")

// Evaluator runs JavaScript in a page and decodes the result into res.
// Promises are awaited.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, res any) error
}

// Scanner injects axe-core into a page and runs it.
type Scanner struct {
	Page Evaluator
	// ScriptPath points at axe.min.js. Script wins when both are set.
	ScriptPath string
	Script     string
	// Tags restricts the rules run, e.g. wcag2a, wcag2aa.
	Tags    []string
	Timeout time.Duration
	Logger  logging.Logger
}

func NewScanner(page Evaluator, scriptPath string, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Scanner{Page: page, ScriptPath: scriptPath, Timeout: 60 * time.Second, Logger: logger}
}

func (s *Scanner) script() (string, error) {
	if s.Script != "" {
		return s.Script, nil
	}
	if s.ScriptPath == "" {
		return "", ErrScriptMissing
	}
	data, err := os.ReadFile(s.ScriptPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrScriptMissing, err)
	}
	return string(data), nil
}

// runExpr builds the axe.run call. The result is stringified in the page so
// DOM references never cross the protocol boundary.
func (s *Scanner) runExpr() (string, error) {
	opts := map[string]any{}
	if len(s.Tags) > 0 {
		opts["runOnly"] = map[string]any{"type": "tag", "values": s.Tags}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return `(async () => {
  const r = await axe.run(document, ` + string(raw) + `);
  return JSON.stringify({
    url: r.url,
    timestamp: r.timestamp,
    testEngine: r.testEngine,
    violations: r.violations,
    incomplete: r.incomplete,
    passes: (r.passes || []).map(p => ({ id: p.id })),
  });
})()`, nil
}

// Scan injects the script unless axe is already present and returns the
// parsed result.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	if s.Page == nil {
		return nil, errors.New("scanner has no page")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var present bool
	if err := s.Page.Evaluate(ctx, `typeof window.axe !== "undefined"`, &present); err != nil {
		return nil, fmt.Errorf("probe axe: %w", err)
	}
	if !present {
		src, err := s.script()
		if err != nil {
			return nil, err
		}
		var ignored any
		if err := s.Page.Evaluate(ctx, src+"\n;true", &ignored); err != nil {
			return nil, fmt.Errorf("inject axe: %w", err)
		}
		s.logger().Debug("axe-core injected", logging.Field{Key: "bytes", Value: len(src)})
	}

	expr, err := s.runExpr()
	if err != nil {
		return nil, fmt.Errorf("build axe options: %w", err)
	}
	var out string
	if err := s.Page.Evaluate(ctx, expr, &out); err != nil {
		return nil, fmt.Errorf("run axe: %w", err)
	}
	scan, err := ParseScan([]byte(strings.TrimSpace(out)))
	if err != nil {
		return nil, err
	}
	s.logger().Info("accessibility scan finished",
		logging.Field{Key: "url", Value: scan.URL},
		logging.Field{Key: "violations", Value: len(scan.Violations)})
	return scan, nil
}

func (s *Scanner) logger() logging.Logger {
	if s.Logger == nil {
		return logging.Nop{}
	}
	return s.Logger
}
