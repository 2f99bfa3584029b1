package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/NoiseStory/internal/aggregate"
	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/config"
	"github.com/TobiSchelling/NoiseStory/internal/database"
	"github.com/TobiSchelling/NoiseStory/internal/fetch"
	"github.com/TobiSchelling/NoiseStory/internal/logging"
	"github.com/TobiSchelling/NoiseStory/internal/pipeline"
	"github.com/TobiSchelling/NoiseStory/internal/report"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "noisestory",
	Short:   "NYC noise complaints before, during and after the 2020 lockdown",
	Long:    "NoiseStory fetches NYC 311 noise complaints, splits them into pandemic phases, and writes summary tables and a narrative report.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := config.LoadEnv(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		logger.Debug("loaded config", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(phaseCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(showCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("noisestory", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/noisestory/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to change date ranges, phase dates, or output formats.")
		return nil
	},
}

// --- run command ---

var (
	dryRun    bool
	outputDir string
	limit     int
	rangeIDs  []string
)

// parseRanges turns --range values like "2019" or "2020-03-01..2020-06-30"
// into fetch ranges.
func parseRanges(ids []string) ([]fetch.Range, error) {
	var out []fetch.Range
	for _, id := range ids {
		r, err := fetch.ParseRangeID(id)
		if err != nil {
			return nil, fmt.Errorf("--range %q: %w", id, err)
		}
		out = append(out, r)
	}
	return out, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch -> clean -> classify -> aggregate -> export",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(cfg, logger)
		if err != nil {
			return err
		}
		ranges, err := parseRanges(rangeIDs)
		if err != nil {
			return err
		}
		opts := pipeline.Options{Limit: limit, OutputDir: outputDir, Ranges: ranges}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(opts)
		} else {
			result = pipe.Run(ctx, opts)
		}

		failed := false
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				failed = true
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if failed {
			return fmt.Errorf("pipeline did not complete")
		}
		if !dryRun {
			fmt.Printf("\nPipeline complete! Run %s\n", result.RunID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the requests without executing")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override output directory")
	runCmd.Flags().IntVar(&limit, "limit", 0, "Override the per-range row limit")
	runCmd.Flags().StringSliceVar(&rangeIDs, "range", nil, "Fetch these ranges instead of the configured ones (e.g. 2019 or 2020-03-01..2020-06-30)")
}

// --- phase command ---

var phaseCmd = &cobra.Command{
	Use:   "phase TIMESTAMP...",
	Short: "Print the phase each timestamp falls in",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := cfg.Boundaries()
		if err != nil {
			return err
		}
		for _, arg := range args {
			t, ok := complaint.ParseTimestamp(arg)
			if !ok {
				return fmt.Errorf("invalid timestamp %q", arg)
			}
			p := b.Classify(t)
			fmt.Printf("%s\t%s\t%d days\n", arg, p, b.Days(p))
		}
		return nil
	},
}

// --- count command ---

var countBy string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Fetch and clean complaints, then print counts as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		var dims []aggregate.Dimension
		for _, part := range strings.Split(countBy, ",") {
			d, err := aggregate.ParseDimension(strings.TrimSpace(part))
			if err != nil {
				return err
			}
			dims = append(dims, d)
		}
		ranges, err := parseRanges(rangeIDs)
		if err != nil {
			return err
		}

		pipe, err := pipeline.New(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		df, step := pipe.Count(ctx, pipeline.Options{Limit: limit, Ranges: ranges}, dims)
		fmt.Fprintln(os.Stderr, step.Summary)
		return report.WriteTable(os.Stdout, df)
	},
}

func init() {
	countCmd.Flags().StringVar(&countBy, "by", "borough,phase", "Comma-separated dimensions: date, month, year, borough, category, phase")
	countCmd.Flags().IntVar(&limit, "limit", 0, "Override the per-range row limit")
	countCmd.Flags().StringSliceVar(&rangeIDs, "range", nil, "Fetch these ranges instead of the configured ones")
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [DIR]",
	Short: "Print the run stored in an output directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.GetOutputDir()
		if len(args) == 1 {
			dir = args[0]
		}
		path := filepath.Join(dir, report.ResultsFile)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no results in %s: %w", dir, err)
		}

		db, err := database.Open(path, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.LatestRun()
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run stored in %s", path)
		}
		tables, err := db.GetTables(run.ID)
		if err != nil {
			return err
		}
		report.PrintRun(os.Stdout, run, tables)
		return nil
	},
}
