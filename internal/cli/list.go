package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raysh454/uiflow/internal/scenarios"
)

func newListCmd(o *options) *cobra.Command {
	var targets bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := scenarios.Default().Select()
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			if targets {
				table.Header("Scenario", "Target")
			} else {
				table.Header("Scenario", "Epic", "Feature", "Tags")
			}
			for _, s := range list {
				row := []string{s.Name, s.Labels.Epic, s.Labels.Feature, strings.Join(s.Labels.Tags, ", ")}
				if targets {
					row = []string{s.Name, o.cfg.Targets[s.Name]}
				}
				if err := table.Append(row); err != nil {
					return fmt.Errorf("scenario row: %w", err)
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVar(&targets, "targets", false, "show the URL each scenario opens")
	return cmd
}
