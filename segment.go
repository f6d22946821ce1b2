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
	"sort"
)

// Segment is one constant-score run of a coverage track, covering the
// half-open reference interval [Start, End).  A segment list produced by this
// package is ordered by Start, contiguous, and covers the encoded range
// exactly once.
type Segment struct {
	Start int
	End   int
	Score float64
}

// RunLength encodes d into its maximal run-length segmentation: every run of
// consecutive equal counters becomes one segment.  Scores are the counter
// values scaled by norm (pass 1 for raw counts).  An empty array yields no
// segments.  The encoding is lossless: expanding the segments reproduces
// norm times the original array.
func RunLength(d Depth, norm float64) []Segment {
	if len(d) == 0 {
		return nil
	}
	segs := make([]Segment, 0, 16)
	start := 0
	cur := d[0]
	for i := 1; i < len(d); i++ {
		if d[i] != cur {
			segs = append(segs, Segment{Start: start, End: i, Score: norm * float64(cur)})
			start = i
			cur = d[i]
		}
	}
	return append(segs, Segment{Start: start, End: len(d), Score: norm * float64(cur)})
}

// Compress greedily merges adjacent segments until the segment count drops to
// resolution times the original count, trading accuracy for size.  Each pass
// computes the width-weighted merge cost of every adjacent pair, sorts the
// costs, picks the cost at a batch rank as the pass threshold, and then
// merges every pair at or below the threshold in one scan.  A just-merged
// segment may merge again within the same pass, but only with its next
// neighbor.  Merging strictly decreases the count each pass (the threshold is
// at least the minimum observed cost), so the loop terminates in at most
// len(segs) passes.
//
// A resolution outside (0, 1) disables reduction and returns segs unchanged.
// The reduction is lossy and approximate: it does not promise an
// error-minimal encoding for the target count, only locally-minimal merges
// and a monotonically shrinking segment count.  Compress never fails.
//
// Segments are threaded through an index arena rather than erased from the
// slice, since merges land anywhere in the list; segs is consumed in the
// process and must not be reused by the caller.
func Compress(segs []Segment, resolution float64) []Segment {
	if resolution <= 0 || resolution >= 1 || len(segs) < 2 {
		return segs
	}
	orig := len(segs)
	next := make([]int, len(segs))
	for i := range next {
		next[i] = i + 1
	}
	next[len(segs)-1] = -1

	n := len(segs)
	ratio := 1.0
	costs := make([]float64, 0, n-1)
	for n > 1 && ratio > resolution {
		costs = costs[:0]
		for i := 0; next[i] >= 0; i = next[i] {
			_, cost := merged(segs[i], segs[next[i]])
			costs = append(costs, cost)
		}
		sort.Float64s(costs)
		// Batch threshold: the cost at rank (ratio-resolution)*n, truncated
		// and then decremented when positive.  Exact behavior at resolution
		// boundaries follows from this truncate-then-decrement convention.
		rank := int((ratio - resolution) * float64(n))
		if rank > 0 {
			rank--
		}
		if rank >= len(costs) {
			rank = len(costs) - 1
		}
		thres := costs[rank]

		for i := 0; next[i] >= 0; {
			j := next[i]
			score, cost := merged(segs[i], segs[j])
			if cost <= thres {
				segs[i].End = segs[j].End
				segs[i].Score = score
				next[i] = next[j]
				n--
				// The merged segment stays current so it can absorb its new
				// neighbor in turn.
			} else {
				i = j
			}
		}
		ratio = float64(n) / float64(orig)
	}

	out := make([]Segment, 0, n)
	for i := 0; i >= 0; i = next[i] {
		out = append(out, segs[i])
	}
	return out
}

// merged returns the width-weighted score of merging a and b into one segment
// and the weighted sum-of-squares error that the merge would introduce.
func merged(a, b Segment) (score, cost float64) {
	w1 := float64(a.End - a.Start)
	w2 := float64(b.End - b.Start)
	score = (w1*a.Score + w2*b.Score) / (w1 + w2)
	d1 := a.Score - score
	d2 := b.Score - score
	cost = w1*d1*d1 + w2*d2*d2
	return score, cost
}
