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
	"fmt"
	"math"

	"github.com/grailbio/hts/sam"
)

// MaxCount is the saturation bound for depth counters.  Counters stop one
// short of the uint16 maximum so that saturated positions still compare
// consistently against the bound; saturation is a silent clamp, not an error.
const MaxCount = math.MaxUint16 - 1

// Depth is one reference's per-base coverage, one counter per base.
// It is mutated only during accumulation and read-only afterward.
type Depth []uint16

// NewDepth returns a zeroed depth array for a reference of refLen bases.
func NewDepth(refLen int) Depth {
	return make(Depth, refLen)
}

// AddAlignment walks cigar from reference position pos, incrementing the
// counter under every aligned (match, equal, mismatch) base.  Deletions and
// reference skips advance the cursor without incrementing; insertions, soft
// clips, hard clips and padding consume no reference bases.  Positions past
// the end of the array are ignored rather than erroring.  An unrecognized
// operation kind aborts the reference, since coverage correctness cannot be
// guaranteed once the cursor position is in doubt.
func (d Depth) AddAlignment(pos int, cigar sam.Cigar) error {
	rp := pos
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for k := 0; k < co.Len(); k++ {
				if rp >= 0 && rp < len(d) && d[rp] < MaxCount {
					d[rp]++
				}
				rp++
			}
		case sam.CigarDeletion, sam.CigarSkipped:
			rp += co.Len()
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarPadded:
			// No reference bases consumed.
		default:
			return fmt.Errorf("coverage: unrecognized CIGAR op %v", co)
		}
	}
	return nil
}

// AddMidpoint increments only the midpoint of the alignment, pos plus half
// the reference span of cigar.  The window-counting use case counts one
// fragment per pair this way instead of accumulating full per-base depth.
func (d Depth) AddMidpoint(pos int, cigar sam.Cigar) error {
	span, err := refSpan(cigar)
	if err != nil {
		return err
	}
	mid := pos + span/2
	if mid >= 0 && mid < len(d) && d[mid] < MaxCount {
		d[mid]++
	}
	return nil
}

// refSpan returns the number of reference bases consumed by cigar.
func refSpan(cigar sam.Cigar) (int, error) {
	span := 0
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion, sam.CigarSkipped:
			span += co.Len()
		case sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarHardClipped, sam.CigarPadded:
		default:
			return 0, fmt.Errorf("coverage: unrecognized CIGAR op %v", co)
		}
	}
	return span, nil
}

// MatchedBases returns the number of aligned (match, equal, mismatch) bases
// in cigar.  Track normalization sums this over all resolved fragments.
func MatchedBases(cigar sam.Cigar) int {
	n := 0
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			n += co.Len()
		}
	}
	return n
}
