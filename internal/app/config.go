package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/uiflow/internal/browser"
	"github.com/raysh454/uiflow/internal/interact"
)

// ReportsConfig says where results and reports are written.
type ReportsConfig struct {
	// ResultsDir holds one Allure results folder per run.
	ResultsDir string
	// A11yDir receives axe-report-* directories.
	A11yDir string
	// AxeScript is the axe-core bundle injected before a scan.
	AxeScript string
	Annotate  bool
}

// DataConfig points at the spreadsheet used for test data.
type DataConfig struct {
	Workbook string
	Sheet    string
}

type LogConfig struct {
	Level string
	File  string
}

// Config is the complete runtime configuration.
type Config struct {
	Browser  browser.Config
	Interact interact.Config
	Reports  ReportsConfig
	Data     DataConfig
	Log      LogConfig

	// StoreRoot holds runs.db and the attachment blobs.
	StoreRoot string
	// ListenAddr is where `uiflow serve` listens.
	ListenAddr string
	// Locators optionally points at a YAML locator catalog.
	Locators string
	// Targets maps scenario names to the URL they open.
	Targets map[string]string
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser:  browser.DefaultConfig(),
		Interact: interact.DefaultConfig(),
		Reports: ReportsConfig{
			ResultsDir: "allure-results",
			A11yDir:    "accessibility-reports",
			AxeScript:  "node_modules/axe-core/axe.min.js",
			Annotate:   true,
		},
		Data: DataConfig{
			Workbook: "Test Files/Testdata.xlsx",
			Sheet:    "Sheet1",
		},
		Log:        LogConfig{Level: "info"},
		StoreRoot:  "~/.config/uiflow",
		ListenAddr: ":8080",
		Targets: map[string]string{
			"answers-stage-1": "https://staging.convr.io/",
			"import-invoice":  "https://lrpv2.solverminds.net/main",
			"axe-report":      "https://staging.convr.io/",
			"practice-login":  "http://127.0.0.1:9999/",
		},
	}
}

// FileConfig is the on-disk YAML shape. Unset fields keep their defaults.
type FileConfig struct {
	Browser *struct {
		Backend         *string `yaml:"backend"`
		Headless        *bool   `yaml:"headless"`
		RemoteURL       *string `yaml:"remote_url"`
		WindowWidth     *int    `yaml:"window_width"`
		WindowHeight    *int    `yaml:"window_height"`
		IdleAfter       *string `yaml:"idle_after"`
		NavigateTimeout *string `yaml:"navigate_timeout"`
	} `yaml:"browser"`
	Interact *struct {
		Attempts       *int    `yaml:"attempts"`
		WaitTimeout    *string `yaml:"wait_timeout"`
		ClickTimeout   *string `yaml:"click_timeout"`
		FallbackInvoke *bool   `yaml:"fallback_invoke"`
		ScrollIntoView *bool   `yaml:"scroll_into_view"`
		BackoffBase    *string `yaml:"backoff_base"`
		TypeTimeout    *string `yaml:"type_timeout"`
		FillTimeout    *string `yaml:"fill_timeout"`
		VerifyTimeout  *string `yaml:"verify_timeout"`
	} `yaml:"interact"`
	Reports *struct {
		ResultsDir *string `yaml:"results_dir"`
		A11yDir    *string `yaml:"a11y_dir"`
		AxeScript  *string `yaml:"axe_script"`
		Annotate   *bool   `yaml:"annotate"`
	} `yaml:"reports"`
	Data *struct {
		Workbook *string `yaml:"workbook"`
		Sheet    *string `yaml:"sheet"`
	} `yaml:"data"`
	Log *struct {
		Level *string `yaml:"level"`
		File  *string `yaml:"file"`
	} `yaml:"log"`
	StoreRoot  *string           `yaml:"store_root"`
	ListenAddr *string           `yaml:"listen_addr"`
	Locators   *string           `yaml:"locators"`
	Targets    map[string]string `yaml:"targets"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// LoadConfig builds the effective config: defaults, then the YAML file at
// path when non-empty, then UIFLOW_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigWith(path, os.LookupEnv)
}

// LoadConfigWith is LoadConfig with a custom environment lookup.
func LoadConfigWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()
	if path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := fc.Apply(cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	root, err := expandPath(cfg.StoreRoot)
	if err != nil {
		return nil, fmt.Errorf("expanding store root: %w", err)
	}
	cfg.StoreRoot = root
	return cfg, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*src))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

// Apply overlays the set fields of fc onto cfg.
func (fc FileConfig) Apply(cfg *Config) error {
	var errs []error
	if b := fc.Browser; b != nil {
		if b.Backend != nil {
			cfg.Browser.Backend = browser.Backend(*b.Backend)
		}
		setBool(&cfg.Browser.Headless, b.Headless)
		setString(&cfg.Browser.RemoteURL, b.RemoteURL)
		setInt(&cfg.Browser.WindowWidth, b.WindowWidth)
		setInt(&cfg.Browser.WindowHeight, b.WindowHeight)
		errs = append(errs,
			setDuration(&cfg.Browser.IdleAfter, b.IdleAfter, "browser.idle_after"),
			setDuration(&cfg.Browser.NavigateTimeout, b.NavigateTimeout, "browser.navigate_timeout"))
	}
	if i := fc.Interact; i != nil {
		setInt(&cfg.Interact.Attempts, i.Attempts)
		setBool(&cfg.Interact.TryFallbackInvoke, i.FallbackInvoke)
		setBool(&cfg.Interact.ScrollIntoView, i.ScrollIntoView)
		errs = append(errs,
			setDuration(&cfg.Interact.WaitTimeout, i.WaitTimeout, "interact.wait_timeout"),
			setDuration(&cfg.Interact.ClickTimeout, i.ClickTimeout, "interact.click_timeout"),
			setDuration(&cfg.Interact.BackoffBase, i.BackoffBase, "interact.backoff_base"),
			setDuration(&cfg.Interact.TypeTimeout, i.TypeTimeout, "interact.type_timeout"),
			setDuration(&cfg.Interact.FillTimeout, i.FillTimeout, "interact.fill_timeout"),
			setDuration(&cfg.Interact.VerifyTimeout, i.VerifyTimeout, "interact.verify_timeout"))
	}
	if r := fc.Reports; r != nil {
		setString(&cfg.Reports.ResultsDir, r.ResultsDir)
		setString(&cfg.Reports.A11yDir, r.A11yDir)
		setString(&cfg.Reports.AxeScript, r.AxeScript)
		setBool(&cfg.Reports.Annotate, r.Annotate)
	}
	if d := fc.Data; d != nil {
		setString(&cfg.Data.Workbook, d.Workbook)
		setString(&cfg.Data.Sheet, d.Sheet)
	}
	if l := fc.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.File, l.File)
	}
	setString(&cfg.StoreRoot, fc.StoreRoot)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.Locators, fc.Locators)
	for name, url := range fc.Targets {
		if cfg.Targets == nil {
			cfg.Targets = map[string]string{}
		}
		cfg.Targets[name] = url
	}
	return errors.Join(errs...)
}

// ApplyEnv overlays UIFLOW_* variables. lookup is os.LookupEnv outside tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	var backend string
	str("UIFLOW_BROWSER_BACKEND", &backend)
	if backend != "" {
		cfg.Browser.Backend = browser.Backend(backend)
	}
	boolean("UIFLOW_HEADLESS", &cfg.Browser.Headless)
	str("UIFLOW_REMOTE_URL", &cfg.Browser.RemoteURL)
	str("UIFLOW_RESULTS_DIR", &cfg.Reports.ResultsDir)
	str("UIFLOW_A11Y_DIR", &cfg.Reports.A11yDir)
	str("UIFLOW_AXE_SCRIPT", &cfg.Reports.AxeScript)
	str("UIFLOW_WORKBOOK", &cfg.Data.Workbook)
	str("UIFLOW_SHEET", &cfg.Data.Sheet)
	str("UIFLOW_STORE_ROOT", &cfg.StoreRoot)
	str("UIFLOW_LISTEN_ADDR", &cfg.ListenAddr)
	str("UIFLOW_LOCATORS", &cfg.Locators)
	str("UIFLOW_LOG_LEVEL", &cfg.Log.Level)
	str("UIFLOW_LOG_FILE", &cfg.Log.File)
	if v, ok := lookup("UIFLOW_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("UIFLOW_ATTEMPTS: %w", err))
		} else {
			cfg.Interact.Attempts = n
		}
	}
	return errors.Join(errs...)
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
