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
package coverage

import (
	"strconv"
)

// Interval is one reporting interval, half-open [Start, End), with a
// caller-supplied identifier.
type Interval struct {
	Start int
	End   int
	ID    string
}

// Sum returns the total depth over [start, end), clamped to the array bounds.
func (d Depth) Sum(start, end int) uint64 {
	if start < 0 {
		start = 0
	}
	if end > len(d) {
		end = len(d)
	}
	var sum uint64
	for i := start; i < end; i++ {
		sum += uint64(d[i])
	}
	return sum
}

// SumIntervals evaluates each reporting interval against d, in the order
// given.  Intervals may overlap; each is summed independently.  This is a
// pure reduction, no state is retained across calls.
func SumIntervals(d Depth, intervals []Interval) []uint64 {
	sums := make([]uint64, len(intervals))
	for i, iv := range intervals {
		sums[i] = d.Sum(iv.Start, iv.End)
	}
	return sums
}

// Windows tiles a reference of refLen bases with reporting intervals of the
// given size, advancing by offset between window starts.  When num is
// positive, size and offset are instead derived so the reference splits into
// num windows.  Window ids take the form "ref:start-end".  The result is
// ordered by start.
func Windows(refName string, refLen, size, offset, num int) []Interval {
	if num > 0 {
		size = refLen/num + 1
		offset = size
	}
	if size <= 0 || offset <= 0 {
		return nil
	}
	intervals := make([]Interval, 0, refLen/offset+1)
	for pos := 0; pos < refLen; pos += offset {
		end := pos + size
		if end > refLen {
			end = refLen
		}
		id := refName + ":" + strconv.Itoa(pos) + "-" + strconv.Itoa(end)
		intervals = append(intervals, Interval{Start: pos, End: end, ID: id})
	}
	return intervals
}
