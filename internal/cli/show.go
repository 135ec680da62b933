package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/client"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show property details",
		Long:  "Show full details for a property, including its visit log. The ID may be shortened to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	c := newAPIClient()

	id, err := resolveID(c, args[0])
	if err != nil {
		return err
	}

	p, err := c.GetProperty(id)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(p)
	}

	printPropertySummary(p)
	fmt.Println()
	fmt.Printf("Visits (%d):\n", len(p.Visits))
	printVisits(p.Visits)

	return nil
}

// resolveID expands a short ID prefix to a full property ID.
func resolveID(c *client.Client, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("property ID is required")
	}
	if len(prefix) == 36 {
		return prefix, nil
	}

	props, err := c.ListProperties(client.ListOptions{})
	if err != nil {
		return "", err
	}
	var match string
	for _, p := range props {
		if strings.HasPrefix(p.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous property ID %q", prefix)
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("property not found: %s", prefix)
	}
	return match, nil
}
