package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/app"
	"github.com/raysh454/uiflow/internal/logging"
)

var version = "0.1.0"

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// options is the state shared by every subcommand.
type options struct {
	configPath string
	logLevel   string

	cfg    *app.Config
	logger logging.Logger

	// newApp builds the Application for commands that need one.
	newApp func(cfg *app.Config, logger logging.Logger) *app.Application
	getenv func(string) (string, bool)
}

// NewRootCommand returns the uiflow command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{newApp: app.NewApplication, getenv: os.LookupEnv})
}

func newRootCommand(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "uiflow",
		Short:         "Run browser UI scenarios and accessibility scans",
		Long:          "uiflow drives Chrome through resilient keyword steps, records Allure results and run history, and renders axe-core accessibility reports.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return o.load()
	}

	root.AddCommand(
		newRunCmd(o),
		newListCmd(o),
		newReportCmd(o),
		newLookupCmd(o),
		newServeCmd(o),
	)
	return root
}

func (o *options) load() error {
	cfg, err := app.LoadConfigWith(o.configPath, o.getenv)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	o.cfg = cfg
	if o.logger == nil {
		logging.Setup(cfg.Log.Level, cfg.Log.File)
		o.logger = logging.NewStdoutLogger("uiflow")
	}
	return nil
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}
	return 0
}
