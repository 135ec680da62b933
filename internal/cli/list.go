package cli

import (
	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/client"
)

func newListCmd() *cobra.Command {
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		Long:  "List canvassed properties, optionally filtered by status, lead quality or territory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "only this status (e.g. interested, do_not_contact)")
	cmd.Flags().StringVar(&opts.Quality, "quality", "", "only this lead quality (hot|warm|cold)")
	cmd.Flags().StringVar(&opts.TerritoryID, "territory", "", "only properties in this territory ID")

	return cmd
}

func runList(opts client.ListOptions) error {
	props, err := newAPIClient().ListProperties(opts)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(props)
	}

	return printPropertyTable(props)
}
