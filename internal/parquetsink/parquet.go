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

package parquetsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/cardinalhq/logchopper/internal/idgen"
	"github.com/cardinalhq/logchopper/internal/lineparser"
)

// ParquetSink writes each batch as a snappy-compressed Parquet file. Fields
// listed in narrowFields are stored as 16-bit integers instead of strings;
// a value that does not fit is a write error.
type ParquetSink struct {
	narrow map[string]bool
	ids    idgen.IDGenerator
}

var _ Sink = (*ParquetSink)(nil)

func NewParquetSink(narrowFields ...string) *ParquetSink {
	narrow := make(map[string]bool, len(narrowFields))
	for _, f := range narrowFields {
		narrow[f] = true
	}
	return &ParquetSink{
		narrow: narrow,
		ids:    &idgen.InlineULIDGenerator{},
	}
}

func (s *ParquetSink) Write(ctx context.Context, ordinal int, outputDir string, batch []lineparser.Record) (string, error) {
	if len(batch) == 0 {
		return "", fmt.Errorf("partition %d: refusing to write an empty batch", ordinal)
	}

	columns := s.collectColumns(batch)
	schema := s.buildSchema(columns)

	rows, err := s.convertRows(batch, columns)
	if err != nil {
		return "", fmt.Errorf("partition %d: %w", ordinal, err)
	}

	finalPath := filepath.Join(outputDir, ArtifactName(ordinal))
	tmpPath := filepath.Join(outputDir, fmt.Sprintf(".%s.%s.tmp", ArtifactName(ordinal), s.ids.Make(time.Now())))

	if err := s.writeFile(tmpPath, schema, rows); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("partition %d: %w", ordinal, err)
	}

	// Rename is atomic on the same filesystem, so readers see the artifact
	// fully written or not at all.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("partition %d: rename artifact: %w", ordinal, err)
	}
	return finalPath, nil
}

// collectColumns returns the sorted union of field names across the batch.
func (s *ParquetSink) collectColumns(batch []lineparser.Record) []string {
	seen := make(map[string]bool)
	for _, rec := range batch {
		for name := range rec {
			seen[name] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}

func (s *ParquetSink) buildSchema(columns []string) *parquet.Schema {
	nodes := make(map[string]parquet.Node, len(columns))
	for _, name := range columns {
		var leaf parquet.Node
		if s.narrow[name] {
			leaf = parquet.Int(16)
		} else {
			leaf = parquet.String()
		}
		nodes[name] = parquet.Optional(parquet.Encoded(leaf, &parquet.RLEDictionary))
	}
	return parquet.NewSchema("logchopper", parquet.Group(nodes))
}

// convertRows maps records to writer rows, narrowing designated fields to
// int16. Input order is preserved.
func (s *ParquetSink) convertRows(batch []lineparser.Record, columns []string) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(batch))
	for i, rec := range batch {
		row := make(map[string]any, len(columns))
		for name, value := range rec {
			if !s.narrow[name] {
				row[name] = value
				continue
			}
			n, err := strconv.ParseInt(value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("narrow field %q at row %d: value %q is not a 16-bit integer: %w", name, i, value, err)
			}
			row[name] = int16(n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ParquetSink) writeFile(path string, schema *parquet.Schema, rows []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}

	writer := parquet.NewGenericWriter[map[string]any](f, schema, parquet.Compression(&parquet.Snappy))
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		_ = f.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	return f.Close()
}
