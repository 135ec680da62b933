package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/geo"
)

func newNearCmd() *cobra.Command {
	var radius float64

	cmd := &cobra.Command{
		Use:                "near <lat> <lng>",
		Short:              "List properties near a point",
		Long:               "List the properties within --radius meters of a point, closest first.",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, err := parseCoordArgs(cmd, args, cobra.ExactArgs(2))
			if err != nil || args == nil {
				return err
			}
			lat, lng, err := parseLatLng(args[0], args[1])
			if err != nil {
				return err
			}
			return runNear(geo.Point{Lat: lat, Lng: lng}, radius)
		},
	}

	cmd.Flags().Float64Var(&radius, "radius", 200, "search radius in meters")

	return cmd
}

func runNear(center geo.Point, radius float64) error {
	near, err := newAPIClient().PropertiesNear(center, radius)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(near)
	}

	if len(near) == 0 {
		fmt.Printf("No properties within %s.\n", formatDistance(radius))
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tADDRESS\tSTATUS\tDISTANCE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, n := range near {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(n.Property.ID), truncate(n.Property.Address, 40), n.Property.Status.Label(), formatDistance(n.Distance)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}
