package scenarios

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/raysh454/uiflow/internal/a11y"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
)

func axeReport() suite.Scenario {
	return suite.Scenario{
		Name:        AxeReport,
		FullName:    "a11y/axe report with screenshots",
		Description: "Reach the second login step, scan it with axe-core and write an HTML report. The scan runs even when the flow fails.",
		Labels: steps.Labels{
			Epic:    "Accessibility",
			Feature: "axe-core scan",
			Tags:    []string{"a11y"},
		},
		Run: runAxeReport,
	}
}

func runAxeReport(ctx context.Context, env *suite.Env) error {
	flowErr := env.Step(ctx, "Reach the password step", func(ctx context.Context) error {
		url, err := env.Target()
		if err != nil {
			return err
		}
		email, err := env.Lookup("Email")
		if err != nil {
			return err
		}
		if err := env.Engine.Navigate(ctx, url); err != nil {
			return err
		}
		if err := env.Engine.Type(ctx, locator.Role("textbox", "Email"), email); err != nil {
			return err
		}
		return env.Engine.Click(ctx, locator.Role("button", "Next"))
	})
	if flowErr != nil {
		env.Logger.Warn("flow failed, scanning the page as it is", logging.Err(flowErr))
	}

	_, scanErr := ScanAndReport(ctx, env, "Accessibility Report")
	return errors.Join(flowErr, scanErr)
}

// ScanAndReport runs axe-core on the current page, writes the report into a
// fresh directory under env.A11y.ReportsDir and attaches the HTML and JSON to
// the case.
func ScanAndReport(ctx context.Context, env *suite.Env, title string) (*a11y.Generated, error) {
	scanner := a11y.NewScanner(env.Page, env.A11y.ScriptPath, env.Logger)

	var scan *a11y.ScanResult
	err := env.Step(ctx, "Run axe-core scan", func(ctx context.Context) error {
		var err error
		scan, err = scanner.Scan(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("accessibility scan: %w", err)
	}

	var gen *a11y.Generated
	err = env.Step(ctx, "Generate accessibility report", func(ctx context.Context) error {
		var err error
		gen, err = a11y.Generate(ctx, scan, a11y.GenerateOptions{
			BaseDir:  env.A11y.ReportsDir,
			Page:     env.Page,
			Title:    title,
			Annotate: env.A11y.Annotate,
			Logger:   env.Logger,
		})
		if err != nil {
			return err
		}
		attachFile(ctx, env, "accessibility report", gen.HTMLPath, "text/html")
		attachFile(ctx, env, a11y.JSONFile, gen.JSONPath, "application/json")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accessibility report: %w", err)
	}
	return gen, nil
}

func attachFile(ctx context.Context, env *suite.Env, name, path, mimeType string) {
	data, err := os.ReadFile(path)
	if err != nil {
		env.Logger.Warn("attachment unreadable", logging.Field{Key: "path", Value: path}, logging.Err(err))
		return
	}
	if err := env.Reporter.Attach(ctx, name, data, mimeType); err != nil {
		env.Logger.Warn("attachment not recorded", logging.Field{Key: "name", Value: name}, logging.Err(err))
	}
}
