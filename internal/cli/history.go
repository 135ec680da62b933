package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent saves",
		Long:  "List the most recent saved states kept by the server's store, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of saves to show (0 for all)")

	return cmd
}

func runHistory(limit int) error {
	states, err := newAPIClient().History(limit)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(states)
	}
	if len(states) == 0 {
		fmt.Println("No saves recorded.")
		return nil
	}
	for _, st := range states {
		fmt.Printf("%s  %d properties, %d territories, %d routes\n",
			st.SavedAt.Local().Format("2006-01-02 15:04:05"), st.Properties, st.Territories, st.Routes)
	}
	return nil
}
