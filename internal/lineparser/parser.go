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

// Package lineparser turns raw log lines into field maps.
package lineparser

// Record is one parsed log line, keyed by field name.
type Record map[string]string

type Parser interface {
	// Parse converts one raw line into a Record. It returns (nil, false)
	// when the line does not match the grammar; a non-match is not an
	// error. Implementations must be deterministic, side-effect free, and
	// tolerant of trailing whitespace and line terminators.
	Parse(line string) (Record, bool)
}
