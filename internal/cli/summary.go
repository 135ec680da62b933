package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/summary"
)

func newSummaryCmd() *cobra.Command {
	var date, out string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the day's canvassing summary",
		Long:  "Show the properties created or visited on a day, grouped by status. With --out, write the CSV export instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(date, out)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to report, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&out, "out", "", "write CSV to this file or directory")

	return cmd
}

func runSummary(date, out string) error {
	day := time.Now()
	if date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}
		day = d
	}

	c := newAPIClient()

	if out == "" {
		s, err := c.Summary(date)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(s)
		}
		printDaySummary(s)
		return nil
	}

	path, err := summaryPath(out, day)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := c.SummaryCSV(date, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

// summaryPath returns out itself, or the dated export name inside out when
// out is a directory.
func summaryPath(out string, day time.Time) (string, error) {
	info, err := os.Stat(out)
	if err == nil && info.IsDir() {
		return filepath.Join(out, summary.Filename(day)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("checking %s: %w", out, err)
	}
	return out, nil
}
