package cmd

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gen2sim/gen2sim/sim/results"
	"github.com/gen2sim/gen2sim/sim/rfid"
)

// defaultsCmd prints the default parameter bundle, a starting point for --config files.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default parameters as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if err := rfid.WriteParams(cmd.OutOrStdout(), rfid.DefaultParams()); err != nil {
			logrus.Fatalf("Failed to write defaults: %v", err)
		}
	},
}

var (
	runsDB   string // Database listed by `runs`
	sweepID  string // Sweep whose runs are listed
	runsJSON bool   // Print runs as JSON
)

// runsCmd lists stored results.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the results stored in a database",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listRuns(cmd.Context(), cmd.OutOrStdout(), runsDB, sweepID, runsJSON); err != nil {
			logrus.Fatalf("Failed to list runs: %v", err)
		}
	},
}

func listRuns(ctx context.Context, w io.Writer, path, sweep string, asJSON bool) error {
	store, err := results.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, sweep)
	if err != nil {
		return err
	}
	if asJSON {
		return results.WriteJSON(w, runs)
	}
	summaries := make([]*results.Summary, len(runs))
	for i, r := range runs {
		summaries[i] = &r.Summary
		logrus.Debugf("run %s stored %s", r.RunID, humanize.Time(r.CreatedAt))
	}
	return results.FprintSweep(w, summaries)
}

func init() {
	runsCmd.Flags().StringVar(&runsDB, "db", "results.db", "SQLite database holding the results")
	runsCmd.Flags().StringVar(&sweepID, "sweep", "", "Sweep id (empty lists single runs)")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Print runs as JSON")

	rootCmd.AddCommand(defaultsCmd)
	rootCmd.AddCommand(runsCmd)
}
