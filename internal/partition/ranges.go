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

// Package partition splits a line-oriented input file into contiguous byte
// ranges aligned to line boundaries. Each range is processed by exactly one
// worker, so ranges must never split a line between two workers.
package partition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ByteRange is a half-open byte interval [Start, End) of the input file.
// Ranges produced by ComputeRanges are contiguous, non-overlapping, and both
// endpoints fall on a line boundary (file start, just after a newline, or
// file end).
type ByteRange struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}

// Task describes one unit of work: convert the given byte range of the
// source file into one output artifact. A Task is owned exclusively by the
// worker executing it.
type Task struct {
	Ordinal    int
	Range      ByteRange
	SourcePath string
	OutputDir  string
}

// ErrChunkSize is returned when the target chunk size is not positive.
var ErrChunkSize = errors.New("target chunk size must be positive")

// ComputeRanges splits the file at path into byte ranges of roughly
// targetChunkBytes each, extending every tentative boundary forward to the
// next newline so that no line straddles two ranges. A missing file yields
// an empty range set rather than an error; the caller decides whether that
// is a job-level condition. The final range always ends exactly at the file
// size, and a file whose size is an exact multiple of the chunk size does
// not produce a trailing zero-length range.
func ComputeRanges(path string, targetChunkBytes int64) ([]ByteRange, error) {
	if targetChunkBytes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, targetChunkBytes)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var ranges []ByteRange
	var pos int64
	for pos < size {
		start := pos
		tentative := start + targetChunkBytes
		if tentative > size {
			tentative = size
		}
		end, err := nextLineBoundary(f, tentative, size)
		if err != nil {
			return nil, fmt.Errorf("scan for line boundary at %d: %w", tentative, err)
		}
		ranges = append(ranges, ByteRange{Start: start, End: end})
		pos = end
	}
	return ranges, nil
}

// nextLineBoundary returns the offset just past the first newline at or
// after from, or size if the file ends first.
func nextLineBoundary(f *os.File, from, size int64) (int64, error) {
	if from >= size {
		return size, nil
	}
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return 0, err
	}

	buf := make([]byte, 64*1024)
	pos := from
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
				return pos + int64(i) + 1, nil
			}
			pos += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return size, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
