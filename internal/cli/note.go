package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text>",
		Short: "Add a note to a property",
		Long:  "Append a note to a property's visit log without changing its status.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runNote,
	}
}

func runNote(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		return fmt.Errorf("note text is required")
	}

	c := newAPIClient()
	id, err := resolveID(c, args[0])
	if err != nil {
		return err
	}

	v, err := c.AddNote(id, text)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(v)
	}

	fmt.Printf("Note added.\n  %s\n", v.Notes)
	return nil
}
