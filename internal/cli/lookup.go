package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/tabular"
)

func newLookupCmd(o *options) *cobra.Command {
	var (
		workbook string
		sheet    string
		reveal   bool
	)
	cmd := &cobra.Command{
		Use:   "lookup KEY...",
		Short: "Resolve keys from the test data workbook",
		Long: "Print the cell to the right of the first cell matching each key, the way scenarios read " +
			"credentials. Keys containing \"password\" are masked unless --reveal is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workbook == "" {
				workbook = o.cfg.Data.Workbook
			}
			if sheet == "" {
				sheet = o.cfg.Data.Sheet
			}
			wb, err := tabular.OpenXLSX(workbook)
			if err != nil {
				return err
			}
			defer wb.Close()

			values, err := tabular.LookupAll(wb, sheet, args...)
			out := cmd.OutOrStdout()
			for _, k := range args {
				v, ok := values[k]
				if !ok {
					continue
				}
				if !reveal && strings.Contains(strings.ToLower(k), "password") && v != "" {
					v = strings.Repeat("*", 8)
				}
				fmt.Fprintf(out, "%s\t%s\n", k, v)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&workbook, "workbook", "", "workbook path (default from config)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default from config)")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print password values in clear")
	return cmd
}
