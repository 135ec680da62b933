// Package cli defines the cobra command tree for canvasser.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/client"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cv",
		Short:         "Door-to-door canvassing for roofing sales",
		Long:          "Pin properties, track their status, draw territories, plan walking routes and export a daily summary. Run 'cv serve' for the API, then use the other commands against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for serve (default: ~/.canvasser/canvass.db)")

	root.AddCommand(
		newAddCmd(),
		newListCmd(),
		newShowCmd(),
		newMarkCmd(),
		newNoteCmd(),
		newRemoveCmd(),
		newRouteCmd(),
		newNearCmd(),
		newMoveCmd(),
		newHistoryCmd(),
		newSummaryCmd(),
		newImportCmd(),
		newServeCmd(),
		newConfigCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// newAPIClient creates an HTTP client for the canvasser API.
func newAPIClient() *client.Client {
	return client.New(getServerURL())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
