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

package lineparser

import (
	"regexp"
	"strings"
)

// accessLogRegex matches the leading portion of a common-log-format request
// line: client IP, bracketed timestamp, request method and endpoint, and
// the numeric status code. Anything after the status is ignored.
var accessLogRegex = regexp.MustCompile(
	`^(?P<ip>\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`\s-\s-\s\[` +
		`(?P<timestamp>.*?)\]` +
		`\s"(?P<method>\w+)\s(?P<endpoint>.*?)\s.*?"` +
		`\s(?P<status>\d{3})`,
)

// AccessLogParser parses web server access log lines into ip, timestamp,
// method, endpoint, and status fields.
type AccessLogParser struct {
	names []string
}

var _ Parser = (*AccessLogParser)(nil)

func NewAccessLogParser() *AccessLogParser {
	return &AccessLogParser{names: accessLogRegex.SubexpNames()}
}

func (p *AccessLogParser) Parse(line string) (Record, bool) {
	line = strings.TrimRight(line, " \t\r\n")
	m := accessLogRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	rec := make(Record, len(p.names)-1)
	for i, name := range p.names {
		if i == 0 || name == "" {
			continue
		}
		rec[name] = m[i]
	}
	return rec, true
}
