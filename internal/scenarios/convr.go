package scenarios

import (
	"context"

	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
)

func answersStage1() suite.Scenario {
	return suite.Scenario{
		Name:        AnswersStage1,
		FullName:    "convr/Answers Stage 1",
		Description: "Sign in through the two-step login and switch the submissions list to Created by me.",
		Labels: steps.Labels{
			Owner:   "Muthuram",
			Epic:    "Automation of Convr Application",
			Feature: "Answers Stage 1",
			Story:   "Enter the mandatory fields and submit the form",
		},
		Run: runAnswersStage1,
	}
}

func runAnswersStage1(ctx context.Context, env *suite.Env) error {
	url, err := env.Target()
	if err != nil {
		return err
	}
	data, err := env.Lookups("Email", "Username", "Password")
	if err != nil {
		return err
	}
	e := env.Engine

	if err := e.Navigate(ctx, url); err != nil {
		return err
	}
	if err := e.WaitForVisible(ctx, locator.Role("img", "convr")); err != nil {
		return err
	}

	email := locator.Role("textbox", "Email")
	if err := e.Click(ctx, email); err != nil {
		return err
	}
	if err := e.Type(ctx, email, data["Email"]); err != nil {
		return err
	}
	if err := e.Click(ctx, locator.Role("button", "Next")); err != nil {
		return err
	}

	if err := e.Fill(ctx, locator.Role("textbox", "Username or email"), data["Username"]); err != nil {
		return err
	}
	password := locator.Role("textbox", "Password")
	if err := e.Click(ctx, password); err != nil {
		return err
	}
	if err := e.Fill(ctx, password, data["Password"]); err != nil {
		return err
	}
	if err := e.Click(ctx, locator.Role("button", "Sign In")); err != nil {
		return err
	}

	if err := e.Click(ctx, locator.Role("button", "Assigned to me")); err != nil {
		return err
	}
	if err := e.WaitForVisible(ctx, locator.Role("menu", "Assigned to me")); err != nil {
		return err
	}
	return e.Click(ctx, locator.Role("menuitem", "Created by me"))
}
