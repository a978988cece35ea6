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

import "fmt"

// Outcome classifies how a partition task ended.
type Outcome string

const (
	// OutcomeSuccess means the partition produced an artifact.
	OutcomeSuccess Outcome = "success"
	// OutcomeEmpty means no line in the partition matched the grammar, so
	// no artifact was produced.
	OutcomeEmpty Outcome = "empty"
	// OutcomeFailure means the task hit an error; siblings are unaffected.
	OutcomeFailure Outcome = "failure"
)

// Result is the immutable outcome of one partition task.
type Result struct {
	Ordinal  int
	Outcome  Outcome
	Rows     int64
	Dropped  int64
	Artifact string
	Message  string
}

// StatusLine renders the result as one human-readable report line.
func (r Result) StatusLine() string {
	switch r.Outcome {
	case OutcomeSuccess:
		if r.Dropped > 0 {
			return fmt.Sprintf("partition %04d: wrote %d rows (%d lines dropped)", r.Ordinal, r.Rows, r.Dropped)
		}
		return fmt.Sprintf("partition %04d: wrote %d rows", r.Ordinal, r.Rows)
	case OutcomeEmpty:
		return fmt.Sprintf("partition %04d: no matching records", r.Ordinal)
	case OutcomeFailure:
		return fmt.Sprintf("partition %04d: failed: %s", r.Ordinal, r.Message)
	default:
		return fmt.Sprintf("partition %04d: unknown outcome %q", r.Ordinal, string(r.Outcome))
	}
}
