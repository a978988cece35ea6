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

// Package crunch runs the partition-to-artifact conversion: it fans the
// partition list out to a bounded pool of workers and collects one result
// per partition, in ordinal order, no matter how the tasks end.
package crunch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/logchopper/internal/lineparser"
	"github.com/cardinalhq/logchopper/internal/logctx"
	"github.com/cardinalhq/logchopper/internal/parquetsink"
	"github.com/cardinalhq/logchopper/internal/partition"
)

// ErrInputNotFound reports the job-level condition of a missing input file.
// No partitioning or dispatch happens in that case.
var ErrInputNotFound = errors.New("input file not found")

// JobConfig is the full configuration for one job run, constructed once at
// start and passed by value. There is no process-wide mutable state.
type JobConfig struct {
	InputPath      string
	OutputDir      string
	ChunkSizeBytes int64
	// Parallelism caps the number of simultaneously executing tasks.
	// Zero or negative means the host core count.
	Parallelism int
	// TaskTimeout, when positive, bounds each task's run time; an expired
	// task reports Failure without affecting siblings.
	TaskTimeout time.Duration
}

// Report is the aggregate outcome of a job. Results are always in ordinal
// order regardless of task completion order.
type Report struct {
	JobID    uuid.UUID
	Results  []Result
	Duration time.Duration
}

// StatusLines renders one human-readable line per partition.
func (r *Report) StatusLines() []string {
	lines := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		lines = append(lines, res.StatusLine())
	}
	return lines
}

// Failures returns the results with a Failure outcome.
func (r *Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailure {
			failed = append(failed, res)
		}
	}
	return failed
}

// RunJob partitions the input file and dispatches one task per partition to
// a pool bounded by cfg.Parallelism. It never fails because a partition
// failed; the returned report always holds one result per partition. Errors
// returned here are job-level: bad configuration, missing input, or an
// unreadable input file.
func RunJob(ctx context.Context, cfg JobConfig, parser lineparser.Parser, sink parquetsink.Sink) (*Report, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", cfg.OutputDir, err)
	}

	if _, err := os.Stat(cfg.InputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, cfg.InputPath)
		}
		return nil, fmt.Errorf("stat input %s: %w", cfg.InputPath, err)
	}

	ranges, err := partition.ComputeRanges(cfg.InputPath, cfg.ChunkSizeBytes)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	ctx = logctx.WithAttrs(ctx, slog.String("jobID", jobID.String()))
	ll := logctx.FromContext(ctx)
	ll.Info("partitioned input",
		slog.String("input", cfg.InputPath),
		slog.Int("partitions", len(ranges)),
		slog.Int("parallelism", cfg.Parallelism))

	tasks := make([]partition.Task, len(ranges))
	for i, r := range ranges {
		tasks[i] = partition.Task{
			Ordinal:    i,
			Range:      r,
			SourcePath: cfg.InputPath,
			OutputDir:  cfg.OutputDir,
		}
	}

	// Each task writes only its own ordinal's slot, so no locking is
	// needed and the slice is already in report order when Wait returns.
	results := make([]Result, len(tasks))
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(cfg.Parallelism)
	for _, task := range tasks {
		g.Go(func() error {
			tctx := logctx.WithAttrs(ctx, slog.Int("ordinal", task.Ordinal))
			if cfg.TaskTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(tctx, cfg.TaskTimeout)
				defer cancel()
			}

			res := RunTask(tctx, task, parser, sink)
			results[task.Ordinal] = res

			tll := logctx.FromContext(tctx)
			switch res.Outcome {
			case OutcomeFailure:
				tll.Error("partition failed", slog.String("message", res.Message))
			case OutcomeEmpty:
				tll.Info("partition had no matching records", slog.Int64("dropped", res.Dropped))
			default:
				tll.Info("partition written",
					slog.Int64("rows", res.Rows),
					slog.Int64("dropped", res.Dropped),
					slog.String("artifact", res.Artifact))
			}
			return nil
		})
	}
	_ = g.Wait()

	return &Report{
		JobID:    jobID,
		Results:  results,
		Duration: time.Since(start),
	}, nil
}
