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

// Package parquetsink persists batches of parsed records as Parquet
// artifacts, one artifact per partition.
package parquetsink

import (
	"context"
	"fmt"

	"github.com/cardinalhq/logchopper/internal/lineparser"
)

type Sink interface {
	// Write persists one batch of records for the given partition ordinal
	// into outputDir, producing exactly one artifact named from the
	// ordinal. It returns the final artifact path. The artifact is either
	// fully present or absent; a failed write leaves nothing visible at
	// the artifact path.
	Write(ctx context.Context, ordinal int, outputDir string, batch []lineparser.Record) (string, error)
}

// ArtifactName returns the deterministic artifact file name for a partition.
func ArtifactName(ordinal int) string {
	return fmt.Sprintf("part-%04d.parquet", ordinal)
}
