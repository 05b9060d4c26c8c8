package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/interact"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/runstore"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/tabular"
)

// RunNameEnv overrides the generated run folder name.
const RunNameEnv = "UIFLOW_RUN_NAME"

// RunName returns the run folder name: the override when set, otherwise
// Report-YYYY-MM-DD_HH-MM-SS in local time.
func RunName(now time.Time, override string) string {
	if name := strings.TrimSpace(override); name != "" {
		return filepath.Base(name)
	}
	return "Report-" + now.Format("2006-01-02_15-04-05")
}

// Runner executes scenarios sequentially, one page per scenario.
type Runner struct {
	// Pages opens a fresh page for each scenario.
	Pages       func() (browser.Page, error)
	ResultsBase string
	// Store is optional. When set every case is also recorded there.
	Store     *runstore.Store
	Interact  interact.Config
	Data      tabular.Source
	DataSheet string
	Targets   map[string]string
	Locators  locator.Catalog
	A11y      A11yOptions
	Logger    logging.Logger
	// Name overrides the run folder name, ahead of UIFLOW_RUN_NAME.
	Name string

	Now     func() time.Time
	Getenv  func(string) string
	Sleeper interact.Sleeper
}

// CaseResult is the outcome of one scenario.
type CaseResult struct {
	Name     string
	Status   string
	Message  string
	Duration time.Duration
	CaseID   string
}

// Summary describes a finished run.
type Summary struct {
	RunName string
	Dir     string
	RunID   string
	Cases   []CaseResult
}

// Counts returns the number of cases per status.
func (s *Summary) Counts() map[string]int {
	out := map[string]int{}
	for _, c := range s.Cases {
		out[c.Status]++
	}
	return out
}

// ExitCode is 1 when any case failed or broke.
func (s *Summary) ExitCode() int {
	for _, c := range s.Cases {
		if c.Status == steps.StatusFailed || c.Status == steps.StatusBroken {
			return 1
		}
	}
	return 0
}

// Print writes a table of case outcomes.
func (s *Summary) Print(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Scenario", "Status", "Duration", "Message")
	for _, c := range s.Cases {
		msg := c.Message
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		if err := table.Append([]string{c.Name, c.Status, c.Duration.Round(time.Millisecond).String(), msg}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Results: %s\n", s.Dir)
	return err
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() logging.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.Nop{}
}

// Run executes scenarios in order. A failing scenario does not stop the
// run; a cancelled context marks the remaining ones broken without running
// them.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Summary, error) {
	if r.Pages == nil {
		return nil, errors.New("runner has no page source")
	}
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	log := r.logger()

	override := r.Name
	if override == "" {
		override = getenv(RunNameEnv)
	}
	name := RunName(r.now(), override)
	dir := filepath.Join(r.ResultsBase, name)
	writer, err := steps.NewAllureWriter(dir)
	if err != nil {
		return nil, err
	}
	writer.Now = r.now

	sum := &Summary{RunName: name, Dir: dir}
	if r.Store != nil {
		run, err := r.Store.CreateRun(ctx, name, dir)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		sum.RunID = run.ID
	}
	log.Info("run started",
		logging.Field{Key: "run", Value: name},
		logging.Field{Key: "scenarios", Value: len(scenarios)})

	for _, s := range scenarios {
		sum.Cases = append(sum.Cases, r.runCase(ctx, writer, sum.RunID, dir, s))
	}

	if err := tidyResults(r.ResultsBase, dir); err != nil {
		log.Warn("could not move loose results", logging.Err(err))
	}
	if r.Store != nil {
		if _, err := r.Store.FinishRun(context.WithoutCancel(ctx), sum.RunID); err != nil {
			log.Warn("run not finalised", logging.Field{Key: "run_id", Value: sum.RunID}, logging.Err(err))
		}
	}
	counts := sum.Counts()
	log.Info("run finished",
		logging.Field{Key: "run", Value: name},
		logging.Field{Key: "passed", Value: counts[steps.StatusPassed]},
		logging.Field{Key: "failed", Value: counts[steps.StatusFailed]},
		logging.Field{Key: "broken", Value: counts[steps.StatusBroken]})
	return sum, nil
}

func (r *Runner) runCase(ctx context.Context, writer *steps.AllureWriter, runID, dir string, s Scenario) CaseResult {
	log := r.logger().With(logging.Field{Key: "scenario", Value: s.Name})
	started := r.now()
	res := CaseResult{Name: s.Name}

	allureCase := writer.StartCase(s.Name, s.FullName, s.Labels)
	reporter := steps.MultiReporter{allureCase}
	var rec *runstore.CaseRecorder
	if r.Store != nil {
		var err error
		rec, err = r.Store.StartCase(ctx, runID, s.Name, s.FullName, s.Labels)
		if err != nil {
			log.Warn("case not recorded", logging.Err(err))
		} else {
			reporter = append(reporter, rec)
			res.CaseID = rec.ID()
		}
	}

	err := ctx.Err()
	if err == nil {
		err = r.execute(ctx, s, reporter, dir, log)
	}

	finishCtx := context.WithoutCancel(ctx)
	if fErr := allureCase.Finish(err); fErr != nil {
		log.Error("allure result not written", logging.Err(fErr))
	}
	if rec != nil {
		if fErr := rec.Finish(finishCtx, err); fErr != nil {
			log.Warn("case not finalised", logging.Err(fErr))
		}
	}

	res.Status = steps.StatusOf(err)
	if err != nil {
		res.Message = err.Error()
		log.Error("scenario failed", logging.Err(err))
	} else {
		log.Info("scenario passed")
	}
	res.Duration = r.now().Sub(started)
	return res
}

func (r *Runner) execute(ctx context.Context, s Scenario, reporter steps.Reporter, dir string, log logging.Logger) (err error) {
	page, err := r.Pages()
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	if page == nil {
		return errors.New("open page: no page returned")
	}
	defer func() {
		if cErr := page.Close(); cErr != nil {
			log.Debug("page close", logging.Err(cErr))
		}
	}()

	sink := steps.NewCaptureSink(page, reporter, log)
	engine := interact.New(page, sink, log, r.Interact)
	if r.Sleeper != nil {
		engine.SetSleeper(r.Sleeper)
	}
	env := &Env{
		Page:      page,
		Engine:    engine,
		Reporter:  reporter,
		Logger:    log,
		Data:      r.Data,
		DataSheet: r.DataSheet,
		Targets:   r.Targets,
		Locators:  r.Locators,
		A11y:      r.A11y,
		RunDir:    dir,
		name:      s.Name,
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario %s panicked: %v", s.Name, p)
		}
		if err != nil {
			attachFailure(ctx, page, reporter, log)
		}
	}()
	return s.Run(ctx, env)
}

// attachFailure adds a full-page screenshot at case level.
func attachFailure(ctx context.Context, page browser.Page, reporter steps.Reporter, log logging.Logger) {
	ctx = context.WithoutCancel(ctx)
	png, err := page.Screenshot(ctx, browser.ScreenshotOptions{FullPage: true})
	if err != nil {
		log.Warn("failure screenshot", logging.Err(err))
		return
	}
	if err := reporter.Attach(ctx, "failure screenshot", png, "image/png"); err != nil {
		log.Warn("failure screenshot not attached", logging.Err(err))
	}
}

// tidyResults moves result files written straight into base into dir.
func tidyResults(base, dir string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !looseResult(e.Name()) {
			continue
		}
		if err := os.Rename(filepath.Join(base, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func looseResult(name string) bool {
	return strings.HasSuffix(name, "-result.json") ||
		strings.HasSuffix(name, "-container.json") ||
		strings.Contains(name, "-attachment")
}
