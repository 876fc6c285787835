package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/SusheelSathyaraj/FlightDataLoader/config"
	"github.com/SusheelSathyaraj/FlightDataLoader/database"
	"github.com/SusheelSathyaraj/FlightDataLoader/importer"
	"github.com/SusheelSathyaraj/FlightDataLoader/monitoring"
)

// swapped out in tests
var newTarget = database.NewTargetClientFromConfig

type rootOptions struct {
	configPath string
	envFile    string
	driver     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "flightload",
		Short: "Bulk load the airlines, airports and flights CSV exports into a database",
		Long: `flightload reads the airlines and airports reference files and loads each one
in a single transaction, then loads the flights file in batches with a commit per batch.

Rerunning a load inserts every row again unless import.resume is enabled,
in which case a failed flights load continues after its last committed batch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file with FLIGHTDB_* overrides")
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "Target database type (mysql,postgresql,mongodb), overrides the config")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	for _, name := range []string{"airlines", "airports", "flights"} {
		root.AddCommand(newTableCmd(opts, name))
	}
	root.AddCommand(newAllCmd(opts))
	root.AddCommand(newCheckpointsCmd(opts))
	return root
}

func newTableCmd(opts *rootOptions, table string) *cobra.Command {
	return &cobra.Command{
		Use:   table,
		Short: fmt.Sprintf("Load the %s file into the %s table", table, table),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			job, err := importer.JobFor(cfg, table)
			if err != nil {
				return err
			}
			return runJobs(cmd, cfg, []importer.Job{job})
		},
	}
}

func newAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Load airlines, airports and flights in that order, stopping at the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runJobs(cmd, cfg, importer.DefaultJobs(cfg))
		},
	}
}

func newCheckpointsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Inspect or clean up resume checkpoints",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := checkpointManager(cmd, opts)
			if err != nil {
				return err
			}
			checkpoints, err := cm.ListCheckpoints()
			if err != nil {
				return err
			}
			printCheckpoints(cmd.OutOrStdout(), checkpoints)
			return nil
		},
	}

	var olderThan time.Duration
	clean := &cobra.Command{
		Use:   "clean",
		Short: "Remove completed checkpoints older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := checkpointManager(cmd, opts)
			if err != nil {
				return err
			}
			cleaned, err := cm.CleanupOldCheckpoints(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoints\n", cleaned)
			return nil
		},
	}
	clean.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of a completed checkpoint to remove")

	cmd.AddCommand(list, clean)
	return cmd
}

// loadConfig layers config.yaml, the .env file / environment and CLI flags, in that order.
// A missing config.yaml is fine as long as --config was not given explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("error loading config, %w", err)
		}
		cfg = config.Default()
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := validateDriver(opts.driver, config.SupportedDrivers); err != nil {
		return nil, err
	}
	if opts.driver != "" {
		if err := cfg.SetDriver(opts.driver); err != nil {
			return nil, err
		}
	}
	if opts.verbose {
		cfg.Import.Verbose = true
	}
	return cfg, nil
}

func checkpointManager(cmd *cobra.Command, opts *rootOptions) (*importer.CheckpointManager, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := monitoring.NewImportLoggerTo(cmd.ErrOrStderr(), cfg.Import.Verbose)
	return importer.NewCheckpointManager(cfg.Import.CheckpointDir, logger)
}

func runJobs(cmd *cobra.Command, cfg *config.Config, jobs []importer.Job) error {
	logger := monitoring.NewImportLoggerTo(cmd.ErrOrStderr(), cfg.Import.Verbose)

	target, err := newTarget(cfg)
	if err != nil {
		return err
	}

	logger.Infof("Attempting to connect to %s database...", target.Name())
	if err := target.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s database, %w", target.Name(), err)
	}
	defer target.Close()
	logger.Infof("Successfully connected to %s database", target.Name())

	var checkpoints *importer.CheckpointManager
	if cfg.Import.Resume {
		if checkpoints, err = importer.NewCheckpointManager(cfg.Import.CheckpointDir, logger); err != nil {
			return err
		}
	}

	engine := importer.NewEngine(importer.ImportConfigFrom(cfg), target, checkpoints, logger)
	engine.Out = cmd.OutOrStdout()

	results, err := engine.RunAll(cmd.Context(), jobs)
	printResults(cmd.OutOrStdout(), results)
	return err
}

func printResults(w io.Writer, results []*importer.ImportResult) {
	for _, r := range results {
		status := "OK"
		if !r.Success {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%-9s %-6s %d/%d rows inserted in %v\n", r.Table, status, r.RowsInserted, r.RowsRead, r.Duration.Round(time.Millisecond))
		if r.RowsSkipped > 0 {
			fmt.Fprintf(w, "          %d rows skipped from an earlier run\n", r.RowsSkipped)
		}
	}
}

func printCheckpoints(w io.Writer, checkpoints []importer.Checkpoint) {
	if len(checkpoints) == 0 {
		fmt.Fprintln(w, "No checkpoints found")
		return
	}
	for _, cp := range checkpoints {
		fmt.Fprintf(w, "%s\t%s\t%d/%d rows\t%d batches\tupdated %s\n",
			cp.ID, cp.Status, cp.CommittedRows, cp.TotalRows, cp.Batches, cp.UpdatedAt.Format(time.RFC3339))
	}
}
