// Copyright 2019 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package window

import (
	"bufio"
	"context"
	"sort"
	"strconv"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/coverage"
	"github.com/pkg/errors"
)

// ReadIntervals parses a reporting-interval file and returns the intervals
// grouped by reference name, sorted by start.  Each non-empty line gives
// chrom, start, end and id, separated by any mix of spaces, tabs, commas and
// semicolons.  The file may be gzip-compressed.
func ReadIntervals(ctx context.Context, path string) (m map[string][]coverage.Interval, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()

	m = make(map[string][]coverage.Interval)
	sc := bufio.NewScanner(reader)
	lineno := 0
	for sc.Scan() {
		lineno++
		fields := splitIntervalLine(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, errors.Errorf("%s:%d: expected chrom, start, end, id", path, lineno)
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad interval start", path, lineno)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad interval end", path, lineno)
		}
		if start < 0 || end < 0 || start >= end {
			return nil, errors.Errorf("%s:%d: invalid interval [%d, %d)", path, lineno, start, end)
		}
		m[fields[0]] = append(m[fields[0]], coverage.Interval{Start: start, End: end, ID: fields[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	for _, intervals := range m {
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
	}
	return m, nil
}

func splitIntervalLine(line string) []string {
	var fields []string
	start := -1
	for i, c := range line {
		switch c {
		case ' ', '\t', ',', ';':
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}
