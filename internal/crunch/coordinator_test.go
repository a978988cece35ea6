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

package crunch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/logchopper/internal/lineparser"
	"github.com/cardinalhq/logchopper/internal/parquetsink"
)

// tenLines builds ten grammar-matching lines of identical byte length so
// chunk sizes divide the file predictably.
func tenLines() string {
	var sb strings.Builder
	for i := range 10 {
		sb.WriteString(logLine("10.0.0.1", fmt.Sprintf("/e%d", i), "200"))
	}
	return sb.String()
}

func TestRunJobSingleChunkScenario(t *testing.T) {
	// Three matching lines, chunk larger than the file: one partition, one
	// artifact, Success(3).
	input := writeInput(t, logLine("10.0.0.1", "/a", "200")+logLine("10.0.0.2", "/b", "201")+logLine("10.0.0.3", "/c", "202"))
	outDir := filepath.Join(t.TempDir(), "out")

	report, err := RunJob(context.Background(), JobConfig{
		InputPath:      input,
		OutputDir:      outDir,
		ChunkSizeBytes: 1 << 20,
		Parallelism:    2,
	}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink("status"))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeSuccess, report.Results[0].Outcome)
	assert.EqualValues(t, 3, report.Results[0].Rows)
	assert.FileExists(t, filepath.Join(outDir, "part-0000.parquet"))
	assert.GreaterOrEqual(t, report.Duration, time.Duration(0))
	assert.NotZero(t, report.JobID)
}

func TestRunJobMalformedInterleaved(t *testing.T) {
	input := writeInput(t, logLine("10.0.0.1", "/a", "200")+"not a log line\n"+logLine("10.0.0.2", "/b", "404"))
	outDir := filepath.Join(t.TempDir(), "out")

	report, err := RunJob(context.Background(), JobConfig{
		InputPath:      input,
		OutputDir:      outDir,
		ChunkSizeBytes: 1 << 20,
	}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink("status"))
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomeSuccess, report.Results[0].Outcome)
	assert.EqualValues(t, 2, report.Results[0].Rows)
	assert.EqualValues(t, 1, report.Results[0].Dropped)
}

func TestRunJobMissingInput(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := RunJob(context.Background(), JobConfig{
		InputPath:      filepath.Join(t.TempDir(), "nope.log"),
		OutputDir:      outDir,
		ChunkSizeBytes: 1 << 20,
	}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink())
	require.ErrorIs(t, err, ErrInputNotFound)

	// The output directory is still created, and stays empty.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunJobEmptyInput(t *testing.T) {
	input := writeInput(t, "")

	report, err := RunJob(context.Background(), JobConfig{
		InputPath:      input,
		OutputDir:      filepath.Join(t.TempDir(), "out"),
		ChunkSizeBytes: 1 << 20,
	}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink())
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestRunJobPartitionIndependence(t *testing.T) {
	content := tenLines()
	input := writeInput(t, content)
	lineLen := int64(len(logLine("10.0.0.1", "/e0", "200")))

	sink := newCaptureSink()
	report, err := RunJob(context.Background(), JobConfig{
		InputPath:      input,
		OutputDir:      t.TempDir(),
		ChunkSizeBytes: 2 * lineLen,
		Parallelism:    4,
	}, lineparser.NewAccessLogParser(), sink)
	require.NoError(t, err)
	// Each tentative boundary lands on a newline and extends one more
	// line, so the partitions hold 3, 3, 3, and 1 lines.
	require.Len(t, report.Results, 4)

	var rowCounts []int64
	for _, res := range report.Results {
		rowCounts = append(rowCounts, res.Rows)
	}
	assert.Equal(t, []int64{3, 3, 3, 1}, rowCounts)

	// Union of batches, in ordinal order, is exactly the input's matching
	// lines: no duplicates, no omissions, order preserved.
	var endpoints []string
	for _, res := range report.Results {
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		for _, rec := range sink.batches[res.Ordinal] {
			endpoints = append(endpoints, rec["endpoint"])
		}
	}
	want := make([]string, 0, 10)
	for i := range 10 {
		want = append(want, fmt.Sprintf("/e%d", i))
	}
	assert.Equal(t, want, endpoints)
}

func TestRunJobIdempotentAcrossParallelism(t *testing.T) {
	content := tenLines()
	input := writeInput(t, content)
	lineLen := int64(len(logLine("10.0.0.1", "/e0", "200")))

	runOnce := func(parallelism int) *Report {
		report, err := RunJob(context.Background(), JobConfig{
			InputPath:      input,
			OutputDir:      filepath.Join(t.TempDir(), "out"),
			ChunkSizeBytes: 3 * lineLen,
			Parallelism:    parallelism,
		}, lineparser.NewAccessLogParser(), parquetsink.NewParquetSink("status"))
		require.NoError(t, err)
		return report
	}

	first := runOnce(1)
	second := runOnce(8)
	require.Len(t, second.Results, len(first.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Outcome, second.Results[i].Outcome, "ordinal %d", i)
		assert.Equal(t, first.Results[i].Rows, second.Results[i].Rows, "ordinal %d", i)
	}
}

func TestRunJobFailureIsolation(t *testing.T) {
	content := tenLines()
	input := writeInput(t, content)
	lineLen := int64(len(logLine("10.0.0.1", "/e0", "200")))
	outDir := filepath.Join(t.TempDir(), "out")

	sink := &failingSink{inner: parquetsink.NewParquetSink("status"), failOrdinal: 1}
	report, err := RunJob(context.Background(), JobConfig{
		InputPath:      input,
		OutputDir:      outDir,
		ChunkSizeBytes: 2 * lineLen,
		Parallelism:    4,
	}, lineparser.NewAccessLogParser(), sink)
	require.NoError(t, err, "a partition failure must not fail the job")
	require.Len(t, report.Results, 4)

	for _, res := range report.Results {
		if res.Ordinal == 1 {
			assert.Equal(t, OutcomeFailure, res.Outcome)
			assert.Contains(t, res.Message, "injected sink failure")
			continue
		}
		assert.Equal(t, OutcomeSuccess, res.Outcome, "ordinal %d", res.Ordinal)
	}

	for ordinal := range 4 {
		path := filepath.Join(outDir, parquetsink.ArtifactName(ordinal))
		if ordinal == 1 {
			assert.NoFileExists(t, path)
		} else {
			assert.FileExists(t, path)
		}
	}

	require.Len(t, report.Failures(), 1)
	assert.Equal(t, 1, report.Failures()[0].Ordinal)
}

func TestReportStatusLines(t *testing.T) {
	report := &Report{Results: []Result{
		{Ordinal: 0, Outcome: OutcomeSuccess, Rows: 12},
		{Ordinal: 1, Outcome: OutcomeEmpty},
		{Ordinal: 2, Outcome: OutcomeFailure, Message: "boom"},
		{Ordinal: 3, Outcome: OutcomeSuccess, Rows: 4, Dropped: 2},
	}}

	lines := report.StatusLines()
	require.Len(t, lines, 4)
	assert.Equal(t, "partition 0000: wrote 12 rows", lines[0])
	assert.Equal(t, "partition 0001: no matching records", lines[1])
	assert.Equal(t, "partition 0002: failed: boom", lines[2])
	assert.Equal(t, "partition 0003: wrote 4 rows (2 lines dropped)", lines[3])
}
