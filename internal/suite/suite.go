// Package suite runs scenarios one after another, each in a fresh page,
// reporting every case to Allure results and the run store.
package suite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/interact"
	"github.com/raysh454/uiflow/internal/locator"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/tabular"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrNoTarget        = errors.New("no target url configured")
)

// Scenario is one end-to-end case.
type Scenario struct {
	Name        string
	FullName    string
	Description string
	Labels      steps.Labels
	Run         func(ctx context.Context, env *Env) error
}

// Env is what a running scenario gets to work with.
type Env struct {
	Page     browser.Page
	Engine   *interact.Engine
	Reporter steps.Reporter
	Logger   logging.Logger

	// Data is nil when no workbook is configured.
	Data      tabular.Source
	DataSheet string
	Targets   map[string]string
	// Locators overrides entries of locator.LoginLocators by name.
	Locators  locator.Catalog
	A11y      A11yOptions
	// RunDir is this run's results folder.
	RunDir    string

	name string
}

// A11yOptions configure accessibility scans made by scenarios.
type A11yOptions struct {
	ScriptPath string
	ReportsDir string
	Annotate   bool
}

// Target returns the configured URL for the running scenario.
func (e *Env) Target() (string, error) {
	return e.TargetFor(e.name)
}

func (e *Env) TargetFor(name string) (string, error) {
	url := strings.TrimSpace(e.Targets[name])
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTarget, name)
	}
	return url, nil
}

// Locator returns the named descriptor, preferring configured overrides.
func (e *Env) Locator(name string) (locator.Descriptor, error) {
	if d, ok := e.Locators[name]; ok {
		return d, nil
	}
	return locator.LoginLocators.Get(name)
}

// Lookup reads one value from the data sheet.
func (e *Env) Lookup(key string) (string, error) {
	if e.Data == nil {
		return "", fmt.Errorf("no test data workbook: %w", tabular.ErrSheetNotFound)
	}
	return tabular.Lookup(e.Data, e.DataSheet, key)
}

// Lookups reads several keys at once.
func (e *Env) Lookups(keys ...string) (map[string]string, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("no test data workbook: %w", tabular.ErrSheetNotFound)
	}
	return tabular.LookupAll(e.Data, e.DataSheet, keys...)
}

// Step groups the body's reported steps under title.
func (e *Env) Step(ctx context.Context, title string, body func(context.Context) error) error {
	return e.Reporter.Step(ctx, title, steps.Success(), body)
}

// Registry holds scenarios by name.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string]Scenario
}

func NewRegistry() *Registry {
	return &Registry{scenarios: map[string]Scenario{}}
}

// Register adds s. A later registration under the same name replaces it.
func (r *Registry) Register(s Scenario) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios[s.Name] = s
}

// Names lists registered scenarios sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scenarios))
	for n := range r.scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Select returns the named scenarios in the given order, or all sorted by
// name when names is empty.
func (r *Registry) Select(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		s, ok := r.scenarios[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScenario, n, strings.Join(r.namesLocked(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.scenarios))
	for n := range r.scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
