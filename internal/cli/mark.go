package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/property"
)

func newMarkCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "mark <id> <status>",
		Short: "Set a property's status",
		Long:  "Record a door knock outcome. Status is one of: " + statusList() + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMark(args[0], args[1], note)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note to log with the status change")

	return cmd
}

func runMark(idArg, statusArg, note string) error {
	status, ok := property.ParseStatus(statusArg)
	if !ok {
		return fmt.Errorf("invalid status %q (want one of: %s)", statusArg, statusList())
	}

	c := newAPIClient()
	id, err := resolveID(c, idArg)
	if err != nil {
		return err
	}

	p, err := c.SetStatus(id, string(status), note)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(p)
	}

	fmt.Printf("%s marked %s.\n", p.Address, p.Status.Label())
	return nil
}

func statusList() string {
	names := make([]string, len(property.Statuses))
	for i, st := range property.Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
