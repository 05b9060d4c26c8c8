package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/a11y"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/runstore"
)

func newReportCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect run history and render accessibility reports",
	}
	cmd.AddCommand(newReportRunsCmd(o), newReportShowCmd(o), newReportA11yCmd(o))
	return cmd
}

func openStore(o *options) (*runstore.Store, error) {
	return runstore.Open(o.cfg.StoreRoot, o.logger)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func newReportRunsCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(o)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Name", "Status", "Started", "Passed", "Failed", "Broken", "Skipped")
			for _, r := range runs {
				started := r.StartedAt
				row := []string{
					r.ID, r.Name, r.Status, formatTime(&started),
					strconv.Itoa(r.Passed), strconv.Itoa(r.Failed), strconv.Itoa(r.Broken), strconv.Itoa(r.Skipped),
				}
				if err := table.Append(row); err != nil {
					return fmt.Errorf("run row: %w", err)
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	return cmd
}

func newReportShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the cases of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(o)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cases, err := store.ListCases(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  (%s)\n", run.Name, run.Status, run.ResultsDir)
			table := tablewriter.NewWriter(out)
			table.Header("Case", "Status", "Finished", "Message")
			for _, c := range cases {
				if err := table.Append([]string{c.Name, c.Status, formatTime(c.FinishedAt), c.Message}); err != nil {
					return fmt.Errorf("case row: %w", err)
				}
			}
			return table.Render()
		},
	}
}

func newReportA11yCmd(o *options) *cobra.Command {
	var (
		outDir string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "a11y SCAN_JSON",
		Short: "Render an HTML accessibility report from a saved axe-core result",
		Long: "Render index.html and axe-report.json from a saved axe-core result. " +
			"No browser is involved, so the report has no element screenshots.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scan, err := a11y.LoadScan(args[0])
			if err != nil {
				return err
			}
			opts := a11y.GenerateOptions{
				BaseDir: o.cfg.Reports.A11yDir,
				Dir:     outDir,
				Title:   title,
				Logger:  o.logger,
			}
			gen, err := a11y.Generate(cmd.Context(), scan, opts)
			if err != nil {
				return err
			}
			if err := a11y.PrintSummary(cmd.OutOrStdout(), gen.Model); err != nil {
				return err
			}
			o.logger.Info("report written", logging.Field{Key: "dir", Value: gen.Dir})
			fmt.Fprintln(cmd.OutOrStdout(), "Report:", gen.HTMLPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "report directory (default a fresh axe-report-* under the a11y dir)")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	return cmd
}
