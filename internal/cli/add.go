package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/property"
)

func newAddCmd() *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:                "add <lat> <lng> [address]",
		Short:              "Pin a property",
		Long:               "Pin a property at a coordinate. Without an address the server looks one up, falling back to the coordinates.",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, err := parseCoordArgs(cmd, args, cobra.MinimumNArgs(2))
			if err != nil || args == nil {
				return err
			}
			return runAdd(args, quality)
		},
	}

	cmd.Flags().StringVar(&quality, "quality", "", "lead quality (hot|warm|cold)")

	return cmd
}

func runAdd(args []string, quality string) error {
	lat, lng, err := parseLatLng(args[0], args[1])
	if err != nil {
		return err
	}

	d := property.Draft{
		Address: strings.Join(args[2:], " "),
		Lat:     lat,
		Lng:     lng,
		Quality: property.Quality(quality),
	}
	if !d.Quality.IsValid() {
		return fmt.Errorf("invalid quality %q (want hot, warm or cold)", quality)
	}

	p, err := newAPIClient().AddProperty(d)
	if err != nil {
		return fmt.Errorf("adding property: %w", err)
	}

	if isJSON() {
		return printJSON(p)
	}

	fmt.Println("Property added.")
	printPropertySummary(p)
	return nil
}

// negativeMark hides a leading minus from the flag parser.
const negativeMark = "\x00"

// parseCoordArgs parses the command's flags itself so that a negative
// coordinate such as -75.1 stays positional instead of reading as a
// shorthand flag. It returns nil args after printing help.
func parseCoordArgs(cmd *cobra.Command, args []string, validate cobra.PositionalArgs) ([]string, error) {
	marked := make([]string, len(args))
	for i, a := range args {
		if isNegativeNumber(a) {
			a = negativeMark + a
		}
		marked[i] = a
	}

	fs := cmd.Flags()
	if err := fs.Parse(marked); err != nil {
		return nil, err
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, cmd.Help()
	}

	pos := fs.Args()
	for i, a := range pos {
		pos[i] = strings.TrimPrefix(a, negativeMark)
	}
	if err := validate(cmd, pos); err != nil {
		return nil, err
	}
	return pos, nil
}

func isNegativeNumber(s string) bool {
	if !strings.HasPrefix(s, "-") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// parseLatLng parses and range-checks a coordinate pair.
func parseLatLng(latStr, lngStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude: %s", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude: %s", lngStr)
	}
	return lat, lng, nil
}
