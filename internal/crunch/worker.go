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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cardinalhq/logchopper/internal/lineparser"
	"github.com/cardinalhq/logchopper/internal/parquetsink"
	"github.com/cardinalhq/logchopper/internal/partition"
)

const readBufferSize = 256 * 1024

// RunTask processes one partition: it opens its own handle on the source
// file, reads whole lines within the task's byte range, parses them, and
// hands the matched records to the sink. Every error, including a panic in
// the parser or sink, is contained here and reported as a Failure outcome;
// a task can never abort its siblings.
func RunTask(ctx context.Context, task partition.Task, parser lineparser.Parser, sink parquetsink.Sink) (res Result) {
	res = Result{Ordinal: task.Ordinal}
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailure
			res.Message = fmt.Sprintf("panic: %v", p)
		}
	}()

	batch, dropped, err := readBatch(ctx, task, parser)
	res.Dropped = dropped
	if err != nil {
		res.Outcome = OutcomeFailure
		res.Message = err.Error()
		return res
	}

	if len(batch) == 0 {
		res.Outcome = OutcomeEmpty
		return res
	}

	artifact, err := sink.Write(ctx, task.Ordinal, task.OutputDir, batch)
	if err != nil {
		res.Outcome = OutcomeFailure
		res.Message = err.Error()
		return res
	}

	res.Outcome = OutcomeSuccess
	res.Rows = int64(len(batch))
	res.Artifact = artifact
	return res
}

// readBatch reads lines from the task's byte range and parses them. Reading
// stops when the cursor reaches the range end, or at EOF as a defensive
// bound for a corrupt range. Invalid UTF-8 sequences are replaced rather
// than failing the task; lines that do not match the grammar are counted
// and dropped.
func readBatch(ctx context.Context, task partition.Task, parser lineparser.Parser) ([]lineparser.Record, int64, error) {
	f, err := os.Open(task.SourcePath)
	if err != nil {
		return nil, 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(task.Range.Start, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek to %d: %w", task.Range.Start, err)
	}

	reader := bufio.NewReaderSize(f, readBufferSize)
	var batch []lineparser.Record
	var dropped int64
	pos := task.Range.Start

	for pos < task.Range.End {
		if err := ctx.Err(); err != nil {
			return nil, dropped, fmt.Errorf("aborted at offset %d: %w", pos, err)
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			pos += int64(len(line))
			if rec, ok := parser.Parse(strings.ToValidUTF8(line, "�")); ok {
				batch = append(batch, rec)
			} else {
				dropped++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("read at offset %d: %w", pos, err)
		}
	}

	return batch, dropped, nil
}
