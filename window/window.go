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

// Package window counts sequencing fragments per reporting window.  Each
// resolved read pair contributes one count at its midpoint; windows either
// tile every reference uniformly or come from an interval file.
package window

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/coverage"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// Opts configures Count.
type Opts struct {
	// MinMapQ drops individual mates, and resolved pairs, below this mapping
	// quality.
	MinMapQ int
	// WindowSize and WindowOffset define the tiling windows used when no
	// interval file is given.
	WindowSize   int
	WindowOffset int
	// WindowNum, when positive, overrides WindowSize/WindowOffset and splits
	// each reference into WindowNum windows.
	WindowNum int
	// IntervalPath names an optional reporting-interval file (chrom, start,
	// end, id).  When set, only references mentioned in the file are
	// processed.
	IntervalPath string
	// SampleName labels the count column.  Defaults to the BAM basename.
	SampleName string
	// Parallelism limits concurrent per-reference jobs; 0 = runtime.NumCPU().
	Parallelism int
}

// DefaultOpts mirrors the command-line defaults.
var DefaultOpts = Opts{
	MinMapQ:      10,
	WindowSize:   10000,
	WindowOffset: 10000,
}

// refCounts holds one reference's finished rows, in interval order.
type refCounts struct {
	intervals []coverage.Interval
	sums      []uint64
}

// Count computes per-window fragment counts for every reference in the BAM at
// bamPath and writes them to outPath as a gzip-compressed TSV with one row
// per window: {chrom, start, end, id, count}.
func Count(ctx context.Context, bamPath, outPath string, opts Opts) (err error) {
	provider := bamprovider.NewProvider(bamPath)
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	header, err := provider.GetHeader()
	if err != nil {
		return err
	}

	refs := header.Refs()
	var restrict map[string][]coverage.Interval
	if opts.IntervalPath != "" {
		if restrict, err = ReadIntervals(ctx, opts.IntervalPath); err != nil {
			return err
		}
		// A chromosome-naming mismatch ("1" vs "chr1") otherwise yields an
		// empty output with no hint.
		for _, name := range unmatchedRefs(restrict, refs) {
			log.Printf("window: interval reference %s not in the BAM header, skipped", name)
		}
	}

	results := make([]refCounts, len(refs))
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	log.Printf("window: counting %d references (%d jobs)", len(refs), parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		for refIdx := jobIdx; refIdx < len(refs); refIdx += parallelism {
			ref := refs[refIdx]
			var intervals []coverage.Interval
			if restrict != nil {
				intervals = restrict[ref.Name()]
				if len(intervals) == 0 {
					// Reference absent from the interval file.
					continue
				}
			} else {
				intervals = coverage.Windows(ref.Name(), ref.Len(), opts.WindowSize, opts.WindowOffset, opts.WindowNum)
			}
			sums, err := countRef(provider, ref, intervals, byte(opts.MinMapQ))
			if err != nil {
				return errors.E(err, "window: counting reference", ref.Name())
			}
			results[refIdx] = refCounts{intervals: intervals, sums: sums}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeCounts(ctx, outPath, sampleName(opts.SampleName, bamPath), refs, results)
}

// unmatchedRefs returns the interval-file reference names, sorted, that the
// BAM header does not mention.
func unmatchedRefs(restrict map[string][]coverage.Interval, refs []*sam.Reference) []string {
	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref.Name()] = true
	}
	var missing []string
	for name := range restrict {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// countRef streams one reference's records through a pair resolver and sums
// the midpoint counts per reporting interval.
func countRef(provider bamprovider.Provider, ref *sam.Reference, intervals []coverage.Interval, minMapQ byte) ([]uint64, error) {
	iter := provider.NewIterator(gbam.Shard{StartRef: ref, EndRef: ref, Start: 0, End: ref.Len()})
	resolver := coverage.NewPairResolver(minMapQ)
	depth := coverage.NewDepth(ref.Len())
	var err error
	for iter.Scan() {
		frag, ok := resolver.Resolve(iter.Record())
		if !ok {
			continue
		}
		if err = depth.AddMidpoint(frag.Start, frag.Cigar); err != nil {
			break
		}
	}
	if e := iter.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, err
	}
	return coverage.SumIntervals(depth, intervals), nil
}

func writeCounts(ctx context.Context, outPath, sample string, refs []*sam.Reference, results []refCounts) (err error) {
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	gz := gzip.NewWriter(out.Writer(ctx))
	defer func() {
		if e := gz.Close(); e != nil && err == nil {
			err = e
		}
	}()
	w := tsv.NewWriter(gz)
	w.WriteString("chr\tstart\tend\tid\t" + sample)
	if err = w.EndLine(); err != nil {
		return err
	}
	for refIdx, res := range results {
		for i, iv := range res.intervals {
			w.WriteString(refs[refIdx].Name())
			w.WriteUint32(uint32(iv.Start))
			w.WriteUint32(uint32(iv.End))
			w.WriteString(iv.ID)
			w.WriteString(strconv.FormatUint(res.sums[i], 10))
			if err = w.EndLine(); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// sampleName falls back to the BAM basename when the caller gave no sample
// name.
func sampleName(name, bamPath string) string {
	if name != "" {
		return name
	}
	base := filepath.Base(bamPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
