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
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/hts/sam"
)

// FragmentKey identifies the two mates of one sequencing fragment.  It is an
// order-independent hash of the query name and the pair's two alignment
// positions, so both mates of a genuine pair derive the same key without
// either mate's record being retained.  Collisions are possible but rare
// enough to be an accepted approximation; they are not detected or corrected.
type FragmentKey uint64

// pairExclude disqualifies a record from pair resolution.
const pairExclude = sam.Secondary | sam.QCFail | sam.Duplicate | sam.Supplementary | sam.Unmapped | sam.MateUnmapped

// Fragment is the outcome of resolving one qualifying read pair.  Start and
// Cigar come from the mate that completed the pair; Quality is the minimum of
// the two mapping qualities.
type Fragment struct {
	Key     FragmentKey
	Quality byte
	Start   int
	Cigar   sam.Cigar
}

// Usable reports whether rec participates in pair resolution at all.
// Secondary, QC-failed, duplicate, supplementary, unmapped and mate-unmapped
// records are dropped, as are unpaired records, records whose mate maps to a
// different reference, and records below minMapQ.  Drops are silent.
func Usable(rec *sam.Record, minMapQ byte) bool {
	if rec.Flags&pairExclude != 0 || rec.Flags&sam.Paired == 0 {
		return false
	}
	if rec.Ref != rec.MateRef {
		return false
	}
	return rec.MapQ >= minMapQ
}

// Key derives rec's FragmentKey.  Both mates of a pair map to the same key.
func Key(rec *sam.Record) FragmentKey {
	lo, hi := rec.Pos, rec.MatePos
	if hi < lo {
		lo, hi = hi, lo
	}
	h := farm.Hash64([]byte(rec.Name))
	h = hashCombine(h, uint64(lo))
	h = hashCombine(h, uint64(hi))
	return FragmentKey(h)
}

// hashCombine folds v into the running hash h.
func hashCombine(h, v uint64) uint64 {
	return h ^ (farm.Hash64WithSeed(nil, v) + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2))
}

// qualResolved marks a pending-quality entry whose pair has already been
// emitted.  It is distinct from every real mapping quality, so later matches
// on the same key are ignored regardless of the threshold.
const qualResolved int16 = -1

// PairResolver converts a position-sorted stream of alignment records for one
// reference into resolved fragments, at most one per pair.  It keeps
// O(distinct fragments at one position) state: a table of pending first-mate
// qualities plus the set of query-name hashes already classified as first
// mates at the current leftmost position.
//
// The pairing logic relies on records arriving in non-decreasing position
// order; it is not safe under out-of-order delivery.
type PairResolver struct {
	minMapQ byte

	pending   map[FragmentKey]int16
	lastPos   int
	lastNames map[uint64]struct{}
}

// NewPairResolver returns a resolver that drops individual mates, and
// resolved pairs, whose mapping quality falls below minMapQ.
func NewPairResolver(minMapQ byte) *PairResolver {
	return &PairResolver{
		minMapQ:   minMapQ,
		pending:   make(map[FragmentKey]int16),
		lastNames: make(map[uint64]struct{}),
	}
}

// Reset clears all per-reference state.  Call it between references.
func (r *PairResolver) Reset() {
	r.pending = make(map[FragmentKey]int16)
	r.lastPos = 0
	r.lastNames = make(map[uint64]struct{})
}

// Resolve consumes one record.  It returns the resolved fragment plus true
// when rec completes a qualifying pair, and false otherwise: for records
// rejected by Usable, for first mates (their quality is parked until the
// second mate arrives), for second mates whose first mate was filtered out,
// and for pairs whose combined quality misses the threshold.
func (r *PairResolver) Resolve(rec *sam.Record) (Fragment, bool) {
	if !Usable(rec, r.minMapQ) {
		return Fragment{}, false
	}

	// The first-mate name set only covers the current leftmost position.
	if rec.Pos > r.lastPos {
		for h := range r.lastNames {
			delete(r.lastNames, h)
		}
		r.lastPos = rec.Pos
	}

	nameHash := farm.Hash64([]byte(rec.Name))
	key := Key(rec)
	if r.firstMate(rec, nameHash) {
		r.lastNames[nameHash] = struct{}{}
		r.pending[key] = int16(rec.MapQ)
		return Fragment{}, false
	}

	stored, ok := r.pending[key]
	if !ok {
		// Mate was discarded by filtering.
		return Fragment{}, false
	}
	if stored == qualResolved {
		// A key collision with an already emitted pair.
		return Fragment{}, false
	}
	qual := byte(stored)
	if rec.MapQ < qual {
		qual = rec.MapQ
	}
	r.pending[key] = qualResolved
	if qual < r.minMapQ {
		return Fragment{}, false
	}
	return Fragment{Key: key, Quality: qual, Start: rec.Pos, Cigar: rec.Cigar}, true
}

// firstMate classifies rec within its pair.  A record is the first mate if it
// aligns strictly before its mate, or at the same position when its name has
// not already been recorded as a first mate there.  The tie-break prevents
// both mates of a same-position pair from being classified as first.
func (r *PairResolver) firstMate(rec *sam.Record, nameHash uint64) bool {
	if rec.Pos != rec.MatePos {
		return rec.Pos < rec.MatePos
	}
	_, seen := r.lastNames[nameHash]
	return !seen
}
