package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/raysh454/uiflow/internal/app"
	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/practice"
	"github.com/raysh454/uiflow/internal/scenarios"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/tabular"
	"github.com/raysh454/uiflow/internal/testutil"
)

type harness struct {
	dir string
	env map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dir: dir,
		env: map[string]string{
			"UIFLOW_STORE_ROOT":  filepath.Join(dir, "store"),
			"UIFLOW_RESULTS_DIR": filepath.Join(dir, "allure-results"),
			"UIFLOW_A11Y_DIR":    filepath.Join(dir, "a11y"),
			"UIFLOW_WORKBOOK":    filepath.Join(dir, "Testdata.xlsx"),
		},
	}
}

func practicePage() *testutil.FakePage {
	p := testutil.NewFakePage()
	for _, d := range []locator.Descriptor{
		locator.TestID("username"), locator.TestID("password"), locator.Role("button", "Sign in"),
		locator.TestID("invoice-count"), locator.Role("link", "Import invoice"),
		locator.Label("Invoice number"), locator.Label("Amount"), locator.Role("button", "Save as draft"),
	} {
		p.Add(d, &testutil.FakeElement{})
	}
	p.Add(locator.TestID("welcome"), &testutil.FakeElement{Text: "Welcome, " + practice.DefaultConfig().Username})
	p.Add(locator.TestID("toast"), &testutil.FakeElement{Text: "Invoice " + scenarios.DraftInvoiceNumber + " saved as draft"})
	return p
}

func (h *harness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	o := &options{
		logger: &testutil.DummyLogger{},
		getenv: func(k string) (string, bool) {
			v, ok := h.env[k]
			return v, ok
		},
		newApp: func(cfg *app.Config, logger logging.Logger) *app.Application {
			a := app.NewApplication(cfg, logger)
			a.PageSource = func(ctx context.Context) (func() (browser.Page, error), func() error, error) {
				return func() (browser.Page, error) { return practicePage(), nil },
					func() error { return nil }, nil
			}
			return a
		},
	}
	root := newRootCommand(o)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestListScenarios(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out, err := h.exec(t, "list")
	require.NoError(t, err)
	for _, name := range scenarios.Default().Names() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "Accessibility")
}

func TestListTargetsFromEnv(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cfgPath := filepath.Join(h.dir, "uiflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("targets:\n  practice-login: http://practice.test:8000/\n"), 0o644))

	out, err := h.exec(t, "--config", cfgPath, "list", "--targets")
	require.NoError(t, err)
	assert.Contains(t, out, "http://practice.test:8000/")
	assert.Contains(t, out, "https://lrpv2.solverminds.net/main")
}

func TestRunThenReport(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	out, err := h.exec(t, "run", "--name", "nightly", scenarios.PracticeLogin)
	require.NoError(t, err, out)
	assert.Contains(t, out, scenarios.PracticeLogin)
	assert.Contains(t, out, "passed")
	assert.DirExists(t, filepath.Join(h.env["UIFLOW_RESULTS_DIR"], "nightly"))

	out, err = h.exec(t, "report", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
}

func TestRunUnknownScenario(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.exec(t, "run", "nope")
	require.ErrorIs(t, err, suite.ErrUnknownScenario)
	var exit *ExitError
	assert.NotErrorAs(t, err, &exit)
}

func TestReportShowUnknownRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.exec(t, "report", "show", "missing")
	assert.Error(t, err)
}

func TestReportA11y(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	scanPath := filepath.Join(h.dir, "axe-report.json")
	scan := `{"url":"http://app.test/","violations":[{"id":"image-alt","impact":"critical","help":"Images must have alternate text","nodes":[{"target":["header img"],"html":"<img src=\"/logo.svg\">"}]}],"passes":[]}`
	require.NoError(t, os.WriteFile(scanPath, []byte(scan), 0o644))
	outDir := filepath.Join(h.dir, "report")

	out, err := h.exec(t, "report", "a11y", scanPath, "--out", outDir, "--title", "Login page")
	require.NoError(t, err)
	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "image-alt")
	assert.FileExists(t, filepath.Join(outDir, "index.html"))
	html, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Login page")
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]string{{"Email", "admin@app.test"}, {"Username", "qa.user"}, {"Password", "s3cret"}}
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLookup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	writeWorkbook(t, h.env["UIFLOW_WORKBOOK"])

	out, err := h.exec(t, "lookup", "Username", "Password")
	require.NoError(t, err)
	assert.Contains(t, out, "Username\tqa.user\n")
	assert.Contains(t, out, "Password\t********\n")
	assert.NotContains(t, out, "s3cret")

	out, err = h.exec(t, "lookup", "--reveal", "Password", "Missing")
	require.ErrorIs(t, err, tabular.ErrKeyNotFound)
	assert.Contains(t, out, "Password\ts3cret\n")
}

func TestBadConfigEnv(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.env["UIFLOW_HEADLESS"] = "sometimes"
	_, err := h.exec(t, "list")
	assert.ErrorContains(t, err, "UIFLOW_HEADLESS")
}
