package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/runstore"
	"github.com/raysh454/uiflow/internal/scenarios"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/tabular"
)

// Application is the global runtime state container.
// It holds config, the scenario registry and the services shared across
// commands (run store, orchestrator, logger). Pass Application into modules
// that need access to the global state rather than using package-level
// variables.
type Application struct {
	Config   *Config
	Logger   logging.Logger
	Registry *suite.Registry
	Orch     *Orchestrator

	// PageSource replaces the Chrome browser when set. Tests use it.
	PageSource func(ctx context.Context) (pages func() (browser.Page, error), closeFn func() error, err error)

	mu    sync.Mutex
	store *runstore.Store

	// internal context for cancellation / lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication constructs an Application with the built-in scenarios.
func NewApplication(cfg *Config, logger logging.Logger) *Application {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		Config:   cfg,
		Logger:   logger,
		Registry: scenarios.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.Orch = NewOrchestrator(ctx, a.RunScenarios, logger)
	return a
}

// Store opens the run store under Config.StoreRoot on first use.
func (a *Application) Store() (*runstore.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}
	s, err := runstore.Open(a.Config.StoreRoot, a.Logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// OpenData opens the configured workbook. A missing workbook is not an
// error: scenarios that need data fail on their own lookups.
func (a *Application) OpenData() (tabular.Source, func() error, error) {
	path := a.Config.Data.Workbook
	noop := func() error { return nil }
	if path == "" {
		return nil, noop, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.Logger.Warn("test data workbook not found", logging.Field{Key: "path", Value: path})
		return nil, noop, nil
	}
	wb, err := tabular.OpenXLSX(path)
	if err != nil {
		return nil, noop, err
	}
	return wb, wb.Close, nil
}

// Locators loads the configured locator catalog, if any.
func (a *Application) Locators() (locator.Catalog, error) {
	if a.Config.Locators == "" {
		return nil, nil
	}
	return locator.LoadCatalog(a.Config.Locators)
}

func (a *Application) startPages(ctx context.Context) (func() (browser.Page, error), func() error, error) {
	if a.PageSource != nil {
		return a.PageSource(ctx)
	}
	b, err := browser.New(ctx, a.Config.Browser, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	pages := func() (browser.Page, error) {
		p, err := b.NewPage()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return pages, b.Close, nil
}

// RunScenarios runs the named scenarios (all when names is empty) in one
// browser and records them in the run store.
func (a *Application) RunScenarios(ctx context.Context, names []string) (*suite.Summary, error) {
	return a.RunNamed(ctx, "", names)
}

// RunNamed is RunScenarios with an explicit run folder name. An empty
// runName falls back to UIFLOW_RUN_NAME and then the timestamp.
func (a *Application) RunNamed(ctx context.Context, runName string, names []string) (*suite.Summary, error) {
	list, err := a.Registry.Select(names...)
	if err != nil {
		return nil, err
	}
	store, err := a.Store()
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	data, closeData, err := a.OpenData()
	if err != nil {
		return nil, fmt.Errorf("open test data: %w", err)
	}
	defer func() {
		if err := closeData(); err != nil {
			a.Logger.Debug("close workbook", logging.Err(err))
		}
	}()
	catalog, err := a.Locators()
	if err != nil {
		return nil, err
	}

	pages, closePages, err := a.startPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := closePages(); err != nil {
			a.Logger.Warn("browser close", logging.Err(err))
		}
	}()

	cfg := a.Config
	runner := &suite.Runner{
		Pages:       pages,
		ResultsBase: cfg.Reports.ResultsDir,
		Store:       store,
		Interact:    cfg.Interact,
		Data:        data,
		DataSheet:   cfg.Data.Sheet,
		Targets:     cfg.Targets,
		Locators:    catalog,
		A11y: suite.A11yOptions{
			ScriptPath: cfg.Reports.AxeScript,
			ReportsDir: cfg.Reports.A11yDir,
			Annotate:   cfg.Reports.Annotate,
		},
		Logger: a.Logger,
		Name:   runName,
	}
	return runner.Run(ctx, list)
}

// Shutdown cancels running jobs and closes the run store.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	// Ask orchestrator to shut down first with a bounded timeout.
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := a.Orch.Shutdown(shutdownCtx); err != nil {
		a.Logger.Info("orchestrator shutdown returned error", logging.Err(err))
	}

	// cancel internal ctx to signal local components/tests
	a.cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}
