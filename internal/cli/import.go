package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk import properties from CSV",
		Long:  "Import properties from a CSV with lat and lng columns, plus optional address, quality and priority columns. Bad rows are reported and skipped.",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: closing %s: %v\n", args[0], cerr)
		}
	}()

	res, err := newAPIClient().ImportCSV(f)
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}

	if isJSON() {
		return printJSON(res)
	}

	fmt.Printf("Imported %d properties.\n", len(res.Created))
	if len(res.Errors) > 0 {
		fmt.Printf("Skipped %d rows:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	return nil
}
