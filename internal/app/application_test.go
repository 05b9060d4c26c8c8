package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/practice"
	"github.com/raysh454/uiflow/internal/scenarios"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/testutil"
)

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

func newTestApplication(t *testing.T) (*Application, *int) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.StoreRoot = filepath.Join(dir, "store")
	cfg.Reports.ResultsDir = filepath.Join(dir, "allure-results")
	cfg.Reports.A11yDir = filepath.Join(dir, "a11y")
	cfg.Data.Workbook = filepath.Join(dir, "missing.xlsx")

	a := NewApplication(cfg, &testutil.DummyLogger{})
	opened := 0
	closed := 0
	a.PageSource = func(ctx context.Context) (func() (browser.Page, error), func() error, error) {
		pages := func() (browser.Page, error) {
			opened++
			return practicePage(), nil
		}
		return pages, func() error { closed++; return nil }, nil
	}
	t.Cleanup(func() {
		_ = a.Shutdown(context.Background())
		assert.Equal(t, opened > 0, closed > 0)
	})
	return a, &opened
}

func TestRunScenariosRecordsRun(t *testing.T) {
	t.Parallel()
	a, opened := newTestApplication(t)

	sum, err := a.RunScenarios(context.Background(), []string{scenarios.PracticeLogin})
	require.NoError(t, err)
	require.Len(t, sum.Cases, 1)
	assert.Equal(t, steps.StatusPassed, sum.Cases[0].Status, sum.Cases[0].Message)
	assert.Equal(t, 0, sum.ExitCode())
	assert.Equal(t, 1, *opened)
	assert.DirExists(t, sum.Dir)

	store, err := a.Store()
	require.NoError(t, err)
	run, err := store.GetRun(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, steps.StatusPassed, run.Status)
}

func TestRunScenariosUnknownName(t *testing.T) {
	t.Parallel()
	a, opened := newTestApplication(t)

	_, err := a.RunScenarios(context.Background(), []string{"nope"})
	require.ErrorIs(t, err, suite.ErrUnknownScenario)
	assert.Zero(t, *opened)
}

func TestOpenDataMissingWorkbook(t *testing.T) {
	t.Parallel()
	a, _ := newTestApplication(t)

	src, closeFn, err := a.OpenData()
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.NoError(t, closeFn())

	a.Config.Data.Workbook = ""
	src, _, err = a.OpenData()
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestApplicationJob(t *testing.T) {
	t.Parallel()
	a, _ := newTestApplication(t)

	job, err := a.Orch.StartRunJob([]string{scenarios.PracticeLogin})
	require.NoError(t, err)
	events, ok := a.Orch.Events(job.ID)
	require.True(t, ok)
	var last JobEvent
	for ev := range events {
		last = ev
	}
	assert.Equal(t, JobEventResult, last.Type)
	assert.Equal(t, 1, last.Passed)

	got := a.Orch.GetJob(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, JobDone, got.Status)
	assert.NotEmpty(t, got.RunID)
}
