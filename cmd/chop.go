// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/logchopper/config"
	"github.com/cardinalhq/logchopper/internal/crunch"
	"github.com/cardinalhq/logchopper/internal/lineparser"
	"github.com/cardinalhq/logchopper/internal/logctx"
	"github.com/cardinalhq/logchopper/internal/parquetsink"
)

var chopCmd = &cobra.Command{
	Use:   "chop",
	Short: "Run one conversion job",
	Long:  `Partition the input file, parse each partition's lines, and write one Parquet artifact per non-empty partition.`,
	RunE:  runChop,
}

func init() {
	chopCmd.Flags().StringP("input", "i", "", "Input log file path")
	chopCmd.Flags().StringP("output-dir", "o", "", "Output directory (created if missing)")
	chopCmd.Flags().Int64("chunk-size", 0, "Target partition size in bytes before boundary snapping")
	chopCmd.Flags().IntP("parallelism", "p", 0, "Worker pool size (default: host core count)")
	chopCmd.Flags().Duration("task-timeout", 0, "Per-partition timeout, 0 disables")

	rootCmd.AddCommand(chopCmd)
}

func runChop(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithLogger(ctx, slog.Default())

	report, err := crunch.RunJob(ctx, crunch.JobConfig{
		InputPath:      cfg.InputPath,
		OutputDir:      cfg.OutputDir,
		ChunkSizeBytes: cfg.ChunkSizeBytes,
		Parallelism:    cfg.Parallelism,
		TaskTimeout:    cfg.TaskTimeout,
	}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink(cfg.NarrowFields...))
	if err != nil {
		return err
	}

	cmd.Printf("processed %d partitions in %s\n", len(report.Results), report.Duration.Round(time.Millisecond))
	for _, line := range report.StatusLines() {
		cmd.Println(line)
	}

	// Partition failures never abort the job, but they do set the exit
	// status.
	var errs *multierror.Error
	for _, res := range report.Failures() {
		errs = multierror.Append(errs, fmt.Errorf("partition %d: %s", res.Ordinal, res.Message))
	}
	return errs.ErrorOrNil()
}

// applyFlags overrides loaded configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("input") {
		cfg.InputPath, _ = cmd.Flags().GetString("input")
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("chunk-size") {
		cfg.ChunkSizeBytes, _ = cmd.Flags().GetInt64("chunk-size")
	}
	if cmd.Flags().Changed("parallelism") {
		cfg.Parallelism, _ = cmd.Flags().GetInt("parallelism")
	}
	if cmd.Flags().Changed("task-timeout") {
		cfg.TaskTimeout, _ = cmd.Flags().GetDuration("task-timeout")
	}
}

// setupLogging configures the default slog logger based on DEBUG environment
// variables.
func setupLogging() {
	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("LOGCHOPPER_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)).With(
		slog.String("service", "logchopper"),
	))
}
