// Package scenarios holds the end-to-end cases uiflow ships with.
package scenarios

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/suite"
)

// Scenario names, also used as keys into the configured targets.
const (
	AnswersStage1 = "answers-stage-1"
	ImportInvoice = "import-invoice"
	AxeReport     = "axe-report"
	PracticeLogin = "practice-login"
)

var ErrStillVisible = errors.New("element still visible")

// Register adds every built-in scenario to r.
func Register(r *suite.Registry) {
	r.Register(answersStage1())
	r.Register(importInvoice())
	r.Register(axeReport())
	r.Register(practiceLogin())
}

// Default returns a registry holding the built-in scenarios.
func Default() *suite.Registry {
	r := suite.NewRegistry()
	Register(r)
	return r
}

// locators fetches several named descriptors from the env's catalog.
func locators(env *suite.Env, names ...string) (map[string]locator.Descriptor, error) {
	out := make(map[string]locator.Descriptor, len(names))
	for _, n := range names {
		d, err := env.Locator(n)
		if err != nil {
			return nil, err
		}
		out[n] = d
	}
	return out, nil
}

// pageTitle reads document.title.
func pageTitle(ctx context.Context, env *suite.Env) (string, error) {
	var title string
	if err := env.Page.Evaluate(ctx, "document.title", &title); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// expectTitle fails unless the page title equals want after trimming.
func expectTitle(ctx context.Context, env *suite.Env, want string) error {
	title, err := pageTitle(ctx, env)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) != strings.TrimSpace(want) {
		return fmt.Errorf("page title is %q, want %q", title, want)
	}
	return nil
}

// waitGone waits for d to disappear when it is currently shown. An element
// that is not there at all counts as gone.
func waitGone(ctx context.Context, env *suite.Env, d locator.Descriptor, timeout time.Duration) error {
	h, err := locator.Resolve(d)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for {
		visible, err := env.Page.IsVisible(ctx, h)
		if err != nil || !visible {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s: %s", ErrStillVisible, timeout, h.Desc)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
