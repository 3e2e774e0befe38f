package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gen2sim/gen2sim/sim"
	"github.com/gen2sim/gen2sim/sim/gen2"
	"github.com/gen2sim/gen2sim/sim/results"
	"github.com/gen2sim/gen2sim/sim/rfid"
)

var (
	// CLI flags shared by run and sweep
	seed        int64         // Seed of the run (sweeps derive one per point from it)
	logLevel    string        // Log verbosity level
	configPath  string        // YAML parameter file layered over the defaults
	jsonOutput  bool          // Print results as JSON instead of a table
	dbPath      string        // SQLite file receiving the results
	maxSimTime  float64       // Model-time ceiling, s
	maxRealTime time.Duration // Wall-clock ceiling per run
	maxEvents   int           // Event-count ceiling per run

	// Model parameters; applied over the config file only when set
	tari           float64 // Tari, µs
	encoding       string  // Tag encoding (FM0, M2, M4, M8)
	tidWordSize    int     // TID words read after the EPC
	powerDBm       float64 // Reader transmit power, dBm
	numTags        int     // Tags to simulate
	speed          float64 // Tag speed, km/h
	readerOffset   float64 // Reader distance from the wall, m
	tagOffset      float64 // Tag distance from the wall, m
	altitude       float64 // Reader antenna height, m
	useAdjust      bool    // Enable Q adjustment
	q              int     // Initial Q
	adjustStrategy string  // Q adjustment step rule
	delta          float64 // Fixed Q adjustment step
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "gen2sim",
	Short: "Discrete-event simulator for EPC Gen2 RFID inventory",
}

// runOptions carries everything a run needs besides the model parameters.
type runOptions struct {
	Seed   int64
	JSON   bool
	DBPath string
	Sim    sim.Config
}

func currentOptions() runOptions {
	return runOptions{
		Seed:   seed,
		JSON:   jsonOutput,
		DBPath: dbPath,
		Sim: sim.Config{
			MaxSimTime:   maxSimTime,
			MaxRealTime:  maxRealTime,
			MaxNumEvents: maxEvents,
			Logger:       logrus.StandardLogger(),
		},
	}
}

// runCmd executes one simulation using parameters from the config file and flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one RFID inventory simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		p, err := buildParams(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid parameters: %v", err)
		}
		logrus.Infof("Starting simulation: %d tags at %.1f km/h, Q=%d, seed %d", p.NumTags, p.SpeedKmph, p.Q, seed)
		if err := runSimulation(cmd.Context(), cmd.OutOrStdout(), p, currentOptions()); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildParams layers the config file (if any) over the defaults, then the
// flags the user set explicitly, and validates the result.
func buildParams(fs *pflag.FlagSet) (rfid.Params, error) {
	p := rfid.DefaultParams()
	if configPath != "" {
		var err error
		if p, err = rfid.LoadParams(configPath); err != nil {
			return rfid.Params{}, err
		}
	}

	if fs.Changed("tari") {
		p.Tari = tari
	}
	if fs.Changed("encoding") {
		e, err := gen2.ParseTagEncoding(encoding)
		if err != nil {
			return rfid.Params{}, err
		}
		p.Encoding = e
	}
	if fs.Changed("tid-word-size") {
		p.TIDWordSize = tidWordSize
	}
	if fs.Changed("power") {
		p.PowerDBm = powerDBm
	}
	if fs.Changed("num-tags") {
		p.NumTags = numTags
	}
	if fs.Changed("speed") {
		p.SpeedKmph = speed
	}
	if fs.Changed("reader-offset") {
		p.ReaderOffset = readerOffset
	}
	if fs.Changed("tag-offset") {
		p.TagOffset = tagOffset
	}
	if fs.Changed("altitude") {
		p.Altitude = altitude
	}
	if fs.Changed("adjust") {
		p.UseAdjust = useAdjust
	}
	if fs.Changed("q") {
		p.Q = q
	}
	if fs.Changed("adjust-strategy") {
		p.AdjustStrategy = rfid.QStrategy(adjustStrategy)
	}
	if fs.Changed("delta") {
		p.Delta = delta
	}
	return p, p.Validate()
}

// runSimulation runs p once and writes the summary to w, storing it when a
// database is configured.
func runSimulation(ctx context.Context, w io.Writer, p rfid.Params, opts runOptions) error {
	m, err := rfid.NewModel(p, opts.Seed)
	if err != nil {
		return err
	}
	res, err := rfid.Run(m, opts.Sim)
	if err != nil {
		return err
	}
	summary := results.Summarize(res, opts.Seed)

	if opts.DBPath != "" {
		if err := saveRuns(ctx, opts.DBPath, "", []rfid.Params{p}, []*results.Summary{summary}); err != nil {
			return err
		}
	}
	if opts.JSON {
		return results.WriteJSON(w, summary)
	}
	return results.Fprint(w, summary)
}

func saveRuns(ctx context.Context, path, sweepID string, params []rfid.Params, summaries []*results.Summary) error {
	store, err := results.Open(path)
	if err != nil {
		return errors.Wrapf(err, "results database %s", path)
	}
	defer store.Close()
	for i, s := range summaries {
		if err := store.SaveRun(ctx, sweepID, params[i], s); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.Int64Var(&seed, "seed", 42, "Seed for the simulation randomness")
	fs.StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	fs.StringVar(&configPath, "config", "", "YAML parameter file (see `gen2sim defaults`)")
	fs.BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	fs.StringVar(&dbPath, "db", "", "SQLite database to store results in")
	fs.Float64Var(&maxSimTime, "max-sim-time", 0, "Stop after this much model time, s (0 = no limit)")
	fs.DurationVar(&maxRealTime, "max-real-time", 0, "Stop each run after this wall-clock time (0 = no limit)")
	fs.IntVar(&maxEvents, "max-events", 0, "Stop each run after this many events (0 = no limit)")
}

func addParamFlags(fs *pflag.FlagSet) {
	d := rfid.DefaultParams()
	fs.Float64Var(&tari, "tari", d.Tari, "Tari, µs (6.25, 12.5, 18.75 or 25)")
	fs.StringVar(&encoding, "encoding", d.Encoding.String(), "Tag encoding (FM0, M2, M4, M8)")
	fs.IntVar(&tidWordSize, "tid-word-size", d.TIDWordSize, "TID words to read (0 disables TID reading)")
	fs.Float64Var(&powerDBm, "power", d.PowerDBm, "Reader transmit power, dBm")
	fs.IntVar(&numTags, "num-tags", d.NumTags, "Number of tags to simulate")
	fs.Float64Var(&speed, "speed", d.SpeedKmph, "Tag speed, km/h")
	fs.Float64Var(&readerOffset, "reader-offset", d.ReaderOffset, "Reader distance from the wall, m")
	fs.Float64Var(&tagOffset, "tag-offset", d.TagOffset, "Tag distance from the wall, m")
	fs.Float64Var(&altitude, "altitude", d.Altitude, "Reader antenna height, m")
	fs.BoolVar(&useAdjust, "adjust", d.UseAdjust, "Adjust Q from slot outcomes")
	fs.IntVar(&q, "q", d.Q, "Initial Q (0..15)")
	fs.StringVar(&adjustStrategy, "adjust-strategy", string(d.AdjustStrategy), "Q adjustment step (fixed or adaptive)")
	fs.Float64Var(&delta, "delta", d.Delta, "Fixed Q adjustment step, (0, 1]")
}

// init sets up CLI flags and subcommands
func init() {
	addRunFlags(runCmd.Flags())
	addParamFlags(runCmd.Flags())

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
