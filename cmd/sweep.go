package cmd

import (
	"context"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gen2sim/gen2sim/sim/results"
	"github.com/gen2sim/gen2sim/sim/rfid"
	"github.com/gen2sim/gen2sim/sim/sweep"
)

var (
	vary   string    // Parameter to sweep
	values []float64 // Values it takes
	jobs   int       // Concurrent runs
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the simulation over several values of one parameter",
	Example: `  gen2sim sweep --vary speed --values 10,20,30,40 --num-tags 100
  gen2sim sweep --vary q --values 2,3,4,5,6 --jobs 4 --db results.db`,
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		v, err := sweep.ParseVariable(vary)
		if err != nil {
			logrus.Fatalf("Invalid --vary: %v", err)
		}
		base, err := buildParams(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid parameters: %v", err)
		}
		cfg := sweep.Config{
			Base:     base,
			Variable: v,
			Values:   values,
			Seed:     seed,
			Jobs:     jobs,
			Sim:      currentOptions().Sim,
		}
		logrus.Infof("Starting %v", cfg)
		if err := runSweep(cmd.Context(), cmd.OutOrStdout(), cfg, currentOptions()); err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
	},
}

// runSweep runs cfg and writes one row per point to w, storing the points
// under a fresh sweep id when a database is configured.
func runSweep(ctx context.Context, w io.Writer, cfg sweep.Config, opts runOptions) error {
	points, err := sweep.Points(cfg)
	if err != nil {
		return err
	}
	summaries, err := sweep.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if opts.DBPath != "" {
		params := make([]rfid.Params, len(points))
		for i, pt := range points {
			params[i] = pt.Params
		}
		id := results.NewSweepID()
		if err := saveRuns(ctx, opts.DBPath, id, params, summaries); err != nil {
			return err
		}
		logrus.Infof("Stored sweep %s in %s", id, opts.DBPath)
	}
	if opts.JSON {
		return results.WriteJSON(w, summaries)
	}
	return results.FprintSweep(w, summaries)
}

func init() {
	sweepCmd.Flags().StringVar(&vary, "vary", "", "Parameter to sweep (speed, tid_word_size, altitude, reader_offset, tag_offset, power, q)")
	sweepCmd.Flags().Float64SliceVar(&values, "values", nil, "Comma-separated values of the swept parameter")
	sweepCmd.Flags().IntVar(&jobs, "jobs", runtime.NumCPU(), "Number of simulations run concurrently")
	_ = sweepCmd.MarkFlagRequired("vary")
	_ = sweepCmd.MarkFlagRequired("values")
	addRunFlags(sweepCmd.Flags())
	addParamFlags(sweepCmd.Flags())

	rootCmd.AddCommand(sweepCmd)
}
