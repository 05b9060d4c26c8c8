package scenarios

import (
	"context"
	"fmt"

	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/practice"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
)

// DraftInvoiceNumber is the number the practice scenario saves.
const DraftInvoiceNumber = "INV-1001"

func practiceLogin() suite.Scenario {
	return suite.Scenario{
		Name:        PracticeLogin,
		FullName:    "practice/Sign in and draft an invoice",
		Description: "Drive the local practice app: sign in, check the invoice list and save a draft invoice.",
		Labels: steps.Labels{
			Epic:     "Practice",
			Feature:  "Import Invoice",
			Story:    "Save Invoice as Draft",
			Severity: "normal",
		},
		Run: runPracticeLogin,
	}
}

// practiceCredentials prefers PracticeUser and PracticePassword from the data
// sheet and falls back to the practice server defaults.
func practiceCredentials(env *suite.Env) (string, string) {
	def := practice.DefaultConfig()
	user, pass := def.Username, def.Password
	if v, err := env.Lookup("PracticeUser"); err == nil && v != "" {
		user = v
	}
	if v, err := env.Lookup("PracticePassword"); err == nil && v != "" {
		pass = v
	}
	return user, pass
}

func runPracticeLogin(ctx context.Context, env *suite.Env) error {
	url, err := env.Target()
	if err != nil {
		return err
	}
	user, pass := practiceCredentials(env)
	e := env.Engine

	if err := e.Navigate(ctx, url); err != nil {
		return err
	}
	if err := e.Fill(ctx, locator.TestID("username"), user); err != nil {
		return err
	}
	if err := e.Fill(ctx, locator.TestID("password"), pass); err != nil {
		return err
	}
	if err := e.Click(ctx, locator.Role("button", "Sign in")); err != nil {
		return err
	}
	if err := e.VerifyText(ctx, locator.TestID("welcome"), "Welcome, "+user); err != nil {
		return err
	}
	if err := waitGone(ctx, env, locator.Text("Processing").WithExact(), e.Config().WaitTimeout); err != nil {
		return err
	}
	count, err := e.GetText(ctx, locator.TestID("invoice-count"))
	if err != nil {
		return err
	}
	env.Logger.Info("invoice list loaded", logging.Field{Key: "count", Value: count})

	if err := e.Click(ctx, locator.Role("link", "Import invoice")); err != nil {
		return err
	}
	if err := e.Fill(ctx, locator.Label("Invoice number"), DraftInvoiceNumber); err != nil {
		return err
	}
	if err := e.Fill(ctx, locator.Label("Amount"), "1250.00"); err != nil {
		return err
	}
	if err := e.Click(ctx, locator.Role("button", "Save as draft")); err != nil {
		return err
	}
	return e.VerifyText(ctx, locator.TestID("toast"), fmt.Sprintf("Invoice %s saved as draft", DraftInvoiceNumber))
}
