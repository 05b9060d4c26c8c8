package scenarios

import (
	"context"

	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
)

const invoiceTitle = "SVM LRPV2"

func importInvoice() suite.Scenario {
	return suite.Scenario{
		Name:        ImportInvoice,
		FullName:    "lrp/Draft Invoice",
		Description: "Log in, wait out the processing banner and open Import Invoice from the module search.",
		Labels: steps.Labels{
			Owner:   "Muthuram",
			Epic:    "Practice Playwright",
			Feature: "Import Invoice",
			Story:   "Save Invoice as Draft",
		},
		Run: runImportInvoice,
	}
}

func runImportInvoice(ctx context.Context, env *suite.Env) error {
	url, err := env.Target()
	if err != nil {
		return err
	}
	data, err := env.Lookups("Username", "Password", "ModuleName")
	if err != nil {
		return err
	}
	loc, err := locators(env, "username", "password", "loginButton", "processing", "menuSearch", "importInvoiceNav")
	if err != nil {
		return err
	}

	e := env.Engine
	if err := e.Navigate(ctx, url); err != nil {
		return err
	}
	if err := env.Step(ctx, "Page title is "+invoiceTitle, func(ctx context.Context) error {
		return expectTitle(ctx, env, invoiceTitle)
	}); err != nil {
		return err
	}

	if err := e.WaitForVisible(ctx, loc["username"]); err != nil {
		return err
	}
	if err := e.Fill(ctx, loc["username"], data["Username"]); err != nil {
		return err
	}
	if err := e.Fill(ctx, loc["password"], data["Password"]); err != nil {
		return err
	}
	if err := e.Click(ctx, loc["loginButton"]); err != nil {
		return err
	}
	if err := waitGone(ctx, env, loc["processing"], e.Config().WaitTimeout*6); err != nil {
		return err
	}

	if err := e.Click(ctx, loc["menuSearch"]); err != nil {
		return err
	}
	if err := e.Type(ctx, loc["menuSearch"], data["ModuleName"]); err != nil {
		return err
	}
	return e.Click(ctx, loc["importInvoiceNav"])
}
