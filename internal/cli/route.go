package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/client"
	"github.com/evcraddock/canvasser/internal/geo"
)

func newRouteCmd() *cobra.Command {
	var (
		req  client.RouteRequest
		save string
	)

	cmd := &cobra.Command{
		Use:                "route <lat> <lng>",
		Short:              "Plan a walking route",
		Long:               "Order matching properties by repeatedly walking to the nearest one, starting at the given point. Do-not-contact properties are always skipped.",
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
			req.Start = geo.Point{Lat: lat, Lng: lng}
			return runRoute(req, save)
		},
	}

	cmd.Flags().StringVar(&req.Status, "status", "", "only properties in this status")
	cmd.Flags().StringVar(&req.Quality, "quality", "", "only this lead quality (hot|warm|cold)")
	cmd.Flags().StringVar(&req.TerritoryID, "territory", "", "only properties in this territory ID")
	cmd.Flags().StringVar(&save, "save", "", "save the route under this name")

	return cmd
}

func runRoute(req client.RouteRequest, save string) error {
	c := newAPIClient()

	plan, err := c.OptimizeRoute(req)
	if err != nil {
		return err
	}

	if save == "" {
		if isJSON() {
			return printJSON(plan)
		}
		printPlan(plan)
		return nil
	}

	req.Name = save
	r, err := c.SaveRoute(req)
	if err != nil {
		return fmt.Errorf("saving route: %w", err)
	}

	if isJSON() {
		return printJSON(r)
	}
	printPlan(plan)
	fmt.Printf("\nSaved as %q (%s).\n", r.Name, shortID(r.ID))
	return nil
}
