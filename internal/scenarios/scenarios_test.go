package scenarios_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/a11y"
	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/interact"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/practice"
	"github.com/raysh454/uiflow/internal/scenarios"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/tabular"
	"github.com/raysh454/uiflow/internal/testutil"
)

const scanJSON = `{"url":"http://app.test/","violations":[{"id":"image-alt","impact":"critical","help":"Images must have alternate text","nodes":[{"target":["header img"],"html":"<img src=\"/logo.svg\">"}]}],"passes":[]}`

var testData = tabular.Memory{"Sheet1": {
	{"Email", "admin@app.test"},
	{"Username", "qa.user"},
	{"Password", tabular.RichRuns{{Text: "Pa"}, {Text: "ss!"}}},
	{"ModuleName", "Import Invoice"},
}}

func runOne(t *testing.T, name string, setup func(*testutil.FakePage)) (*suite.CaseResult, *testutil.FakePage, *suite.Runner) {
	t.Helper()
	var page *testutil.FakePage
	r := &suite.Runner{
		ResultsBase: t.TempDir(),
		Interact:    interact.DefaultConfig(),
		Data:        testData,
		DataSheet:   "Sheet1",
		Targets: map[string]string{
			scenarios.AnswersStage1: "http://app.test/",
			scenarios.ImportInvoice: "http://lrp.test/main",
			scenarios.AxeReport:     "http://app.test/",
			scenarios.PracticeLogin: "http://127.0.0.1:9999/",
		},
		A11y:    suite.A11yOptions{ReportsDir: t.TempDir()},
		Logger:  &testutil.DummyLogger{},
		Getenv:  func(string) string { return "" },
		Sleeper: &testutil.FakeSleeper{},
		Pages: func() (browser.Page, error) {
			page = testutil.NewFakePage()
			setup(page)
			return page, nil
		},
	}
	list, err := scenarios.Default().Select(name)
	require.NoError(t, err)
	sum, err := r.Run(context.Background(), list)
	require.NoError(t, err)
	require.Len(t, sum.Cases, 1)
	return &sum.Cases[0], page, r
}

func valueOf(p *testutil.FakePage, d locator.Descriptor) string {
	return p.Elements[locator.MustResolve(d).Query].Value
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		scenarios.AnswersStage1, scenarios.AxeReport, scenarios.ImportInvoice, scenarios.PracticeLogin,
	}, scenarios.Default().Names())
}

func TestAnswersStage1(t *testing.T) {
	t.Parallel()
	res, page, _ := runOne(t, scenarios.AnswersStage1, func(p *testutil.FakePage) {
		for _, d := range []locator.Descriptor{
			locator.Role("img", "convr"),
			locator.Role("textbox", "Email"),
			locator.Role("button", "Next"),
			locator.Role("textbox", "Username or email"),
			locator.Role("textbox", "Password"),
			locator.Role("button", "Sign In"),
			locator.Role("button", "Assigned to me"),
			locator.Role("menu", "Assigned to me"),
			locator.Role("menuitem", "Created by me"),
		} {
			p.Add(d, &testutil.FakeElement{})
		}
		// the menu only opens on the second attempt
		p.Elements[locator.MustResolve(locator.Role("menuitem", "Created by me")).Query].ClickFailures = 1
	})
	require.Equal(t, steps.StatusPassed, res.Status, res.Message)
	assert.Equal(t, "admin@app.test", valueOf(page, locator.Role("textbox", "Email")))
	assert.Equal(t, "qa.user", valueOf(page, locator.Role("textbox", "Username or email")))
	assert.Equal(t, "Pass!", valueOf(page, locator.Role("textbox", "Password")))
	assert.Equal(t, []string{"navigate http://app.test/"}, page.CallsWithPrefix("navigate"))
	assert.Len(t, page.CallsWithPrefix("click role=menuitem"), 2)
}

func TestAnswersStage1MissingData(t *testing.T) {
	t.Parallel()
	var page *testutil.FakePage
	r := &suite.Runner{
		ResultsBase: t.TempDir(),
		Data:        tabular.Memory{"Sheet1": {{"Email", "a@b.test"}}},
		DataSheet:   "Sheet1",
		Targets:     map[string]string{scenarios.AnswersStage1: "http://app.test/"},
		Getenv:      func(string) string { return "" },
		Pages: func() (browser.Page, error) {
			page = testutil.NewFakePage()
			return page, nil
		},
	}
	list, err := scenarios.Default().Select(scenarios.AnswersStage1)
	require.NoError(t, err)
	sum, err := r.Run(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, steps.StatusFailed, sum.Cases[0].Status)
	assert.Contains(t, sum.Cases[0].Message, "Username")
	assert.Empty(t, page.CallsWithPrefix("navigate"))
}

func invoicePage(title string) func(*testutil.FakePage) {
	return func(p *testutil.FakePage) {
		for _, name := range locator.LoginLocators.Names() {
			p.Add(locator.LoginLocators[name], &testutil.FakeElement{})
		}
		p.Elements[locator.MustResolve(locator.LoginLocators["processing"]).Query].Hidden = true
		p.EvalFunc = func(expr string, res any) error {
			if expr == "document.title" {
				*res.(*string) = title
			}
			return nil
		}
	}
}

func TestImportInvoice(t *testing.T) {
	t.Parallel()
	res, page, _ := runOne(t, scenarios.ImportInvoice, invoicePage("SVM LRPV2 "))
	require.Equal(t, steps.StatusPassed, res.Status, res.Message)
	assert.Equal(t, "qa.user", valueOf(page, locator.LoginLocators["username"]))
	assert.Equal(t, "Import Invoice", valueOf(page, locator.LoginLocators["menuSearch"]))
	assert.Equal(t, []string{"click //li[@data-item-label='Import Invoice']"}, page.CallsWithPrefix("click //li"))
}

func TestImportInvoiceWrongTitle(t *testing.T) {
	t.Parallel()
	res, page, _ := runOne(t, scenarios.ImportInvoice, invoicePage("Maintenance"))
	assert.Equal(t, steps.StatusFailed, res.Status)
	assert.Contains(t, res.Message, `page title is "Maintenance"`)
	assert.Empty(t, page.CallsWithPrefix("fill"))
}

func TestAxeReportScansAfterFailedFlow(t *testing.T) {
	t.Parallel()
	res, page, r := runOne(t, scenarios.AxeReport, func(p *testutil.FakePage) {
		p.Add(locator.Role("textbox", "Email"), &testutil.FakeElement{})
		// no Next button: the flow fails but the page still gets scanned
		p.EvalFunc = func(expr string, res any) error {
			switch {
			case strings.HasPrefix(expr, "typeof window.axe"):
				*res.(*bool) = true
			case strings.Contains(expr, "axe.run("):
				*res.(*string) = scanJSON
			}
			return nil
		}
	})
	assert.Equal(t, steps.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "failed after 3 attempts")
	assert.Len(t, page.CallsWithPrefix("evaluate"), 2)

	dirs, err := os.ReadDir(r.A11y.ReportsDir)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, strings.HasPrefix(dirs[0].Name(), "axe-report-"))
	report := filepath.Join(r.A11y.ReportsDir, dirs[0].Name())
	assert.FileExists(t, filepath.Join(report, "index.html"))
	assert.FileExists(t, filepath.Join(report, a11y.JSONFile))
}

func TestAxeReportWithoutScript(t *testing.T) {
	t.Parallel()
	res, _, r := runOne(t, scenarios.AxeReport, func(p *testutil.FakePage) {
		p.Add(locator.Role("textbox", "Email"), &testutil.FakeElement{})
		p.Add(locator.Role("button", "Next"), &testutil.FakeElement{})
		p.EvalFunc = func(expr string, res any) error {
			if b, ok := res.(*bool); ok {
				*b = false
			}
			return nil
		}
	})
	assert.Equal(t, steps.StatusFailed, res.Status)
	assert.Contains(t, res.Message, a11y.ErrScriptMissing.Error())
	dirs, err := os.ReadDir(r.A11y.ReportsDir)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestPracticeLogin(t *testing.T) {
	t.Parallel()
	user := practice.DefaultConfig().Username
	res, page, _ := runOne(t, scenarios.PracticeLogin, func(p *testutil.FakePage) {
		p.Add(locator.TestID("username"), &testutil.FakeElement{})
		p.Add(locator.TestID("password"), &testutil.FakeElement{})
		p.Add(locator.Role("button", "Sign in"), &testutil.FakeElement{})
		p.Add(locator.TestID("welcome"), &testutil.FakeElement{Text: "Welcome,\n  " + user})
		p.Add(locator.TestID("invoice-count"), &testutil.FakeElement{Text: "3 invoices"})
		p.Add(locator.Role("link", "Import invoice"), &testutil.FakeElement{})
		p.Add(locator.Label("Invoice number"), &testutil.FakeElement{})
		p.Add(locator.Label("Amount"), &testutil.FakeElement{})
		p.Add(locator.Role("button", "Save as draft"), &testutil.FakeElement{})
		p.Add(locator.TestID("toast"), &testutil.FakeElement{Text: "Invoice INV-1001 saved as draft"})
	})
	require.Equal(t, steps.StatusPassed, res.Status, res.Message)
	assert.Equal(t, user, valueOf(page, locator.TestID("username")))
	assert.Equal(t, scenarios.DraftInvoiceNumber, valueOf(page, locator.Label("Invoice number")))
}

func TestPracticeLoginWrongToast(t *testing.T) {
	t.Parallel()
	res, _, _ := runOne(t, scenarios.PracticeLogin, func(p *testutil.FakePage) {
		for _, d := range []locator.Descriptor{
			locator.TestID("username"), locator.TestID("password"), locator.Role("button", "Sign in"),
			locator.TestID("invoice-count"), locator.Role("link", "Import invoice"),
			locator.Label("Invoice number"), locator.Label("Amount"), locator.Role("button", "Save as draft"),
		} {
			p.Add(d, &testutil.FakeElement{})
		}
		p.Add(locator.TestID("welcome"), &testutil.FakeElement{Text: "Welcome, " + practice.DefaultConfig().Username})
		p.Add(locator.TestID("toast"), &testutil.FakeElement{Text: "Invoice number is required"})
	})
	assert.Equal(t, steps.StatusFailed, res.Status)
	assert.Contains(t, res.Message, interact.ErrTextMismatch.Error())
}
