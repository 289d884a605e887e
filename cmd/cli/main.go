package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"echidna/adapters/excel"
	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/config"
	"echidna/internal/container"
	"echidna/internal/logging"
	"echidna/internal/migration"
	"echidna/internal/testkit"
	"echidna/ui"
)

// session carries what every subcommand needs once the root command ran
type session struct {
	config *config.Config
	logger *zap.Logger
}

func main() {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "echidna",
		Short: "Limit setting on binned double-beta decay spectra",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Run.LogLevel)
			if err != nil {
				return err
			}
			s.config, s.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if s.logger != nil {
				_ = s.logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newSimulateCmd(s),
		newImportCmd(s),
		newInspectCmd(s),
		newLimitCmd(s),
		newRunsCmd(s),
		newPlotCmd(s),
		newServeCmd(s),
		newMigrateCmd(s),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open connects the container to the configured database
func (s *session) open(ctx context.Context) (*container.Container, error) {
	c, err := container.New(s.config, s.logger)
	if err != nil {
		return nil, err
	}
	if err := c.Open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// analysis loads the analysis at path, or the configured analysis file
func (s *session) analysis(path string) (*config.Analysis, error) {
	if path == "" {
		path = s.config.Paths.AnalysisFile
	}
	return config.LoadAnalysis(path)
}

func newSimulateCmd(s *session) *cobra.Command {
	var events int
	var seed uint64
	var resolution float64
	var analysisPath string

	cmd := &cobra.Command{
		Use:   "simulate [spectra...]",
		Short: "Generate synthetic spectra and store them",
		Long: `Generate Monte Carlo spectra with the binning of the analysis and store them.

Known spectra: ` + strings.Join(testkit.KnownSpectra(), ", ") + `

Example: echidna simulate Xe136_0n2b_n1 Xe136_2n2b B8_Solar --events 200000 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := s.analysis(analysisPath)
			if err != nil {
				return err
			}
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			cfg := testkit.DefaultSpectraConfig()
			cfg.Events = events
			cfg.Seed = seed
			cfg.Resolution = resolution
			cfg.Energy = analysis.Binning.Energy
			cfg.Radial = analysis.Binning.Radial
			cfg.Time = analysis.Binning.Time

			generated, err := c.SpectraService.Simulate(cmd.Context(), cfg, args...)
			if err != nil {
				return err
			}
			for _, sp := range generated {
				fmt.Printf("%-12s num decays %-10.6g events %.6g\n", sp.Name, sp.NumDecays, sp.Sum())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&events, "events", testkit.DefaultSpectraConfig().Events, "Events generated per spectrum")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().Float64Var(&resolution, "resolution", testkit.DefaultSpectraConfig().Resolution, "Fractional energy resolution at 1 MeV")
	cmd.Flags().StringVar(&analysisPath, "analysis", "", "Analysis file providing the binning (default ANALYSIS_FILE)")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	var sheet string
	var numDecays float64
	var analysisPath string

	cmd := &cobra.Command{
		Use:   "import [name] [file]",
		Short: "Bin an event list from a CSV or XLSX file into a stored spectrum",
		Long: `Bin an event list into a spectrum with the binning of the analysis.

The file needs energy, radius and time columns (energy|energy_mc|e,
radius|radial_mc|r, time|t) and may carry a weight column (weight|w).

Example: echidna import B8_Solar events.xlsx --num-decays 1252.99691`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := s.analysis(analysisPath)
			if err != nil {
				return err
			}
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			reader := excel.NewDataReader(args[1], s.logger)
			if sheet != "" {
				reader = reader.WithSheet(sheet)
			}
			sp, err := c.SpectraService.Import(cmd.Context(), args[0], reader, analysis.Binning, numDecays)
			if err != nil {
				return err
			}
			fmt.Printf("%s: num decays %.6g, raw events %d, events %.6g\n", sp.Name, sp.NumDecays, sp.RawEvents, sp.Sum())
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from an xlsx file (default first sheet)")
	cmd.Flags().Float64Var(&numDecays, "num-decays", 0, "Number of decays the events represent (default one per event)")
	cmd.Flags().StringVar(&analysisPath, "analysis", "", "Analysis file providing the binning (default ANALYSIS_FILE)")
	return cmd
}

func newInspectCmd(s *session) *cobra.Command {
	var dim string

	cmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "List stored spectra or summarise one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if len(args) == 0 {
				infos, err := c.SpectraService.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Printf("%-16s num decays %-12.6g raw events %-10d events %.6g\n",
						info.Name, info.NumDecays, info.RawEvents, info.Events)
				}
				return nil
			}

			sp, summary, err := c.SpectraService.Inspect(cmd.Context(), args[0], dim)
			if err != nil {
				return err
			}
			fmt.Printf("Spectra: %s\n", sp.Name)
			fmt.Printf("Num decays: %.6g\n", sp.NumDecays)
			fmt.Printf("Raw events: %d\n", sp.RawEvents)
			fmt.Printf("Events: %.6g\n", sp.Sum())
			for _, axis := range sp.Axes() {
				fmt.Printf("  %-10s [%g, %g] %d bins\n", axis.Name, axis.Low, axis.High, axis.Bins)
			}
			for _, roi := range sp.ROIs() {
				fmt.Printf("  roi %s [%g, %g] efficiency %.4f\n", roi.Dimension, roi.Low, roi.High, roi.Efficiency)
			}
			fmt.Printf("Projection on %s: mean %.4g, peak bin %.4g, bin mean %.4g, bin std dev %.4g, bin median %.4g\n",
				summary.Dimension, summary.Mean, summary.PeakBin, summary.BinMean, summary.BinStdDev, summary.BinMedian)
			return nil
		},
	}

	cmd.Flags().StringVar(&dim, "dim", spectra.DimEnergy, "Dimension to summarise")
	return cmd
}

func newLimitCmd(s *session) *cobra.Command {
	var analysisPath string

	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Set limits on every signal of an analysis",
		Long: `Load the spectra of an analysis, apply its cuts and set a limit on every
signal without and with penalty terms. Results are stored and the workbook,
plots and report written under OUTPUT_DIR/<run id>.

Example: echidna limit --analysis configs/klz_majoron.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := s.analysis(analysisPath)
			if err != nil {
				return err
			}
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			outcome, err := c.LimitService.Run(cmd.Context(), analysis)
			if err != nil {
				return err
			}
			printLimits(outcome.Run)
			for _, path := range outcome.Outputs {
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisPath, "analysis", "", "Analysis file (default ANALYSIS_FILE)")
	return cmd
}

func printLimits(run *limit.Run) {
	fmt.Printf("Run %s (%s)\n", run.ID, run.Name)
	for _, l := range run.Limits {
		if l.Failed() {
			fmt.Printf("  %-10s %-12s failed: %s\n", l.Mode, l.Signal, l.Failure)
			continue
		}
		fmt.Printf("  %-10s %-12s limit %.4g counts (best fit %.4g)", l.Mode, l.Signal, l.Counts, l.BestFit)
		if l.HalfLife > 0 {
			fmt.Printf(", T1/2 > %.4g y", l.HalfLife)
		}
		if l.EffectiveMass > 0 {
			fmt.Printf(", <m> < %.4g eV", l.EffectiveMass)
		}
		fmt.Println()
	}
}

func newRunsCmd(s *session) *cobra.Command {
	var maxRuns int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored runs or show the limits of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if len(args) == 1 {
				runID, err := core.ParseRunID(args[0])
				if err != nil {
					return err
				}
				run, err := c.ResultRepo.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				printLimits(run)
				return nil
			}

			runs, err := c.ResultRepo.ListRuns(cmd.Context(), maxRuns)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  %-20s %s\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
					run.Name, core.Hash(run.Fingerprint).Short())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxRuns, "max", 20, "Maximum runs listed")
	return cmd
}

func newPlotCmd(s *session) *cobra.Command {
	var analysisPath string

	cmd := &cobra.Command{
		Use:   "plot [run-id]",
		Short: "Redraw the workbook and plots of a stored run",
		Long: `Redraw the workbook and plots of a stored run from its dumps. Error bars
and contour maps follow the output section of the analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			analysis, err := s.analysis(analysisPath)
			if err != nil {
				return err
			}
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			written, err := c.LimitService.Render(cmd.Context(), runID, analysis.Output)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&analysisPath, "analysis", "", "Analysis file (default ANALYSIS_FILE)")
	return cmd
}

func newServeCmd(s *session) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run browser, reports and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			handler, err := c.Handler()
			if err != nil {
				return err
			}
			if port == "" {
				port = s.config.Server.Port
			}
			return ui.Serve(cmd.Context(), ":"+port, handler, s.logger)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default PORT)")
	return cmd
}

func newMigrateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			fmt.Printf("schema version %s on %s\n", migration.NewRunner().Version(), s.config.Database.Driver)
			return nil
		},
	}
}
