package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/standsim/internal/config"
	"github.com/Iron-Ham/standsim/internal/logging"
	"github.com/Iron-Ham/standsim/internal/phase"
	"github.com/Iron-Ham/standsim/internal/report"
	"github.com/Iron-Ham/standsim/internal/sim"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/Iron-Ham/standsim/internal/tui"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Long: `Run the simulation until interrupted.

When stdout is a terminal the track is drawn in a full-screen view; press
space or q to stop. Otherwise, or with --headless, the waiting count is
printed as "waiting=N" lines whenever it changes.`,
	RunE: runRun,
}

var (
	runHeadless bool
	runDuration time.Duration
	runPhase    int
	runSeed     uint64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "print telemetry instead of drawing the track")
	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 0, "stop after this long (0 = until interrupted)")
	runCmd.Flags().IntVar(&runPhase, "phase", -1, "pin the signal to a phase (0 red, 1 green, 2 amber)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "seed for agent parameters (0 = random)")
	runCmd.Flags().Int("max-agents", 0, "cap on live agents (0 = unlimited)")
	_ = viper.BindPFlag("fleet.max_agents", runCmd.Flags().Lookup("max-agents"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var opts []sim.Option
	if runPhase >= 0 {
		if runPhase >= phase.Count {
			return fmt.Errorf("invalid --phase %d: must be 0, 1 or 2", runPhase)
		}
		opts = append(opts, sim.WithPinnedPhase(phase.Phase(runPhase)))
	}
	if runSeed != 0 {
		opts = append(opts, sim.WithSeed(runSeed))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	opts = append(opts, sim.WithLogger(logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	s := sim.New(cfg, opts...)
	out := cmd.OutOrStdout()

	interactive := !runHeadless && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		err = runInteractive(ctx, s, cfg, logger)
	} else {
		err = runHeadlessLoop(ctx, s, cfg, out, logger)
	}
	if err != nil {
		return err
	}

	printStats(out, s.Stats())
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// startReporter subscribes a reporter before the simulation starts and runs
// it until the returned stop function is called. stop waits for it to exit.
func startReporter(s *sim.Simulation, cfg *config.Config, out io.Writer, logger *logging.Logger) (stop func()) {
	if !cfg.Report.Enabled {
		return func() {}
	}

	opts := []report.Option{report.WithLogger(logger.WithComponent("report"))}
	if out != nil {
		opts = append(opts,
			report.WithInterval(cfg.Report.Interval()),
			report.WithSource(s.Waiting),
		)
	}
	r := report.New(s.Bus(), out, opts...)
	r.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	var wg conc.WaitGroup
	wg.Go(func() { r.Start(ctx) })
	return func() {
		cancel()
		wg.Wait()
	}
}

// runHeadlessLoop prints waiting counts to out until ctx is done.
func runHeadlessLoop(ctx context.Context, s *sim.Simulation, cfg *config.Config, out io.Writer, logger *logging.Logger) error {
	stopReport := startReporter(s, cfg, out, logger)
	err := s.Run(ctx)
	stopReport()
	return err
}

// runInteractive draws the simulation until the user quits or ctx is done.
func runInteractive(ctx context.Context, s *sim.Simulation, cfg *config.Config, logger *logging.Logger) error {
	stopReport := startReporter(s, cfg, nil, logger)
	defer stopReport()

	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	trackWidth := cfg.TUI.TrackWidth
	if trackWidth == 0 {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			trackWidth = w - 4
		}
	}

	app := tui.New(s,
		tui.WithFrame(cfg.TUI.Frame()),
		tui.WithTrackWidth(trackWidth),
		tui.WithLateralSpan((cfg.Track.Approach-cfg.Track.Midpoint)*cfg.Agent.DriftFactor),
	)
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func printStats(w io.Writer, st sim.Stats) {
	fmt.Fprintf(w, "spawned=%d finished=%d cancelled=%d peak_waiting=%d\n",
		st.Spawned, st.Finished, st.Cancelled, st.PeakWaiting)
	for _, id := range stand.All() {
		fmt.Fprintf(w, "stand %s served=%d\n", id, st.Served[id])
	}
}
