package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/geo"
)

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "move <id> <lat> <lng>",
		Short:              "Correct a property's pin",
		Long:               "Move a property to a new coordinate. It is reassigned to the oldest territory containing the new spot.",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, err := parseCoordArgs(cmd, args, cobra.ExactArgs(3))
			if err != nil || args == nil {
				return err
			}
			return runMove(args[0], args[1], args[2])
		},
	}
}

func runMove(idArg, latArg, lngArg string) error {
	lat, lng, err := parseLatLng(latArg, lngArg)
	if err != nil {
		return err
	}

	c := newAPIClient()
	id, err := resolveID(c, idArg)
	if err != nil {
		return err
	}
	p, err := c.RelocateProperty(id, geo.Point{Lat: lat, Lng: lng})
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(p)
	}
	fmt.Printf("Moved %s to %.5f, %.5f\n", shortID(p.ID), p.Lat, p.Lng)
	return nil
}
