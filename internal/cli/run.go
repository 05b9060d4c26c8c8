package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/logging"
)

func newRunCmd(o *options) *cobra.Command {
	var (
		runName  string
		headed   bool
		workbook string
		results  string
	)
	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run scenarios (all when none are named)",
		Long: "Run the named scenarios in one browser. Results go to <results-dir>/<run name> in Allure format " +
			"and into the run history. The exit status is 1 when any scenario failed or broke.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if headed {
				o.cfg.Browser.Headless = false
			}
			if workbook != "" {
				o.cfg.Data.Workbook = workbook
			}
			if results != "" {
				o.cfg.Reports.ResultsDir = results
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := o.newApp(o.cfg, o.logger)
			defer func() {
				if err := a.Shutdown(context.WithoutCancel(ctx)); err != nil {
					o.logger.Warn("shutdown", logging.Err(err))
				}
			}()

			sum, err := a.RunNamed(ctx, runName, args)
			if err != nil {
				return err
			}
			if err := sum.Print(cmd.OutOrStdout()); err != nil {
				return err
			}
			if code := sum.ExitCode(); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runName, "name", "", "run folder name (default Report-<timestamp>, or $UIFLOW_RUN_NAME)")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	cmd.Flags().StringVar(&workbook, "workbook", "", "test data workbook (.xlsx)")
	cmd.Flags().StringVar(&results, "results-dir", "", "base directory for Allure results")
	return cmd
}
