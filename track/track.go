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

// Package track exports per-base coverage of validated read pairs as a
// piecewise-constant browser track.  Coverage is restricted to pairs whose
// mates both survive filtering, run-length encoded, optionally normalized to
// a target pair count, and optionally reduced to a fraction of its original
// segment count.
package track

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

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

// Output formats.
const (
	FormatBedgraph = "bedgraph"
	FormatBED      = "bed"
)

// Opts configures Write.
type Opts struct {
	// MinMapQ drops individual mates, and resolved pairs, below this mapping
	// quality.
	MinMapQ int
	// Resolution is the target ratio of compressed to original segment
	// count.  Values outside (0, 1) disable reduction.
	Resolution float64
	// Normalize is the pair count every score is scaled to; 0 disables
	// normalization.
	Normalize uint64
	// Format selects FormatBedgraph or FormatBED output.
	Format string
	// SampleName labels the track.  Defaults to the BAM basename.
	SampleName string
	// Parallelism limits concurrent per-reference jobs; 0 = runtime.NumCPU().
	Parallelism int
}

// DefaultOpts mirrors the command-line defaults.  Normalization targets 30M
// pairs of 100bp paired-end reads.
var DefaultOpts = Opts{
	MinMapQ:    10,
	Resolution: 0.2,
	Normalize:  30000000,
	Format:     FormatBedgraph,
}

// Write computes the coverage track for every reference in the BAM at
// bamPath and writes it to outPath as gzip-compressed bedgraph or BED text.
// Per reference, segments are ordered by start, contiguous, and cover the
// reference exactly; references without a single valid pair are omitted.
func Write(ctx context.Context, bamPath, outPath string, opts Opts) (err error) {
	if opts.Format != FormatBedgraph && opts.Format != FormatBED {
		return fmt.Errorf("track: unknown output format %q", opts.Format)
	}
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
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	norm := 1.0
	if opts.Normalize > 0 {
		if norm, err = normFactor(provider, refs, opts, parallelism); err != nil {
			return err
		}
		log.Printf("track: normalization factor %v", norm)
	}

	results := make([][]coverage.Segment, len(refs))
	log.Printf("track: processing %d references (%d jobs)", len(refs), parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		for refIdx := jobIdx; refIdx < len(refs); refIdx += parallelism {
			segs, err := trackRef(provider, refs[refIdx], byte(opts.MinMapQ), opts.Resolution, norm)
			if err != nil {
				return errors.E(err, "track: processing reference", refs[refIdx].Name())
			}
			results[refIdx] = segs
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeSegments(ctx, outPath, sampleName(opts.SampleName, bamPath), opts.Format, refs, results)
}

// normFactor runs the normalization pre-pass: it totals the aligned bases
// contributed by all valid pairs and derives the scalar that rescales the
// track to opts.Normalize pairs of 100bp paired-end reads.
func normFactor(provider bamprovider.Provider, refs []*sam.Reference, opts Opts, parallelism int) (float64, error) {
	log.Printf("track: total read count normalization")
	var totalBases uint64
	err := traverse.Each(parallelism, func(jobIdx int) error {
		for refIdx := jobIdx; refIdx < len(refs); refIdx += parallelism {
			ref := refs[refIdx]
			iter := provider.NewIterator(gbam.Shard{StartRef: ref, EndRef: ref, Start: 0, End: ref.Len()})
			resolver := coverage.NewPairResolver(byte(opts.MinMapQ))
			var bases uint64
			for iter.Scan() {
				if frag, ok := resolver.Resolve(iter.Record()); ok {
					bases += uint64(coverage.MatchedBases(frag.Cigar))
				}
			}
			if err := iter.Close(); err != nil {
				return err
			}
			atomic.AddUint64(&totalBases, bases)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if totalBases == 0 {
		// Nothing qualifies; the per-reference passes will emit nothing
		// either, so the factor is moot.
		return 1, nil
	}
	return float64(opts.Normalize) / float64(totalBases) * 100 * 2, nil
}

// trackRef builds one reference's compressed segment list.  The first pass
// records which pairs validate; the second accumulates per-base coverage
// restricted to those pairs, so a mate is only ever counted when its whole
// pair qualifies.
func trackRef(provider bamprovider.Provider, ref *sam.Reference, minMapQ byte, resolution, norm float64) ([]coverage.Segment, error) {
	valid := make(map[coverage.FragmentKey]struct{})
	iter := provider.NewIterator(gbam.Shard{StartRef: ref, EndRef: ref, Start: 0, End: ref.Len()})
	resolver := coverage.NewPairResolver(minMapQ)
	for iter.Scan() {
		if frag, ok := resolver.Resolve(iter.Record()); ok {
			valid[frag.Key] = struct{}{}
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if len(valid) == 0 {
		return nil, nil
	}

	depth := coverage.NewDepth(ref.Len())
	iter = provider.NewIterator(gbam.Shard{StartRef: ref, EndRef: ref, Start: 0, End: ref.Len()})
	var err error
	for iter.Scan() {
		rec := iter.Record()
		if !coverage.Usable(rec, minMapQ) {
			continue
		}
		if _, ok := valid[coverage.Key(rec)]; !ok {
			continue
		}
		if err = depth.AddAlignment(rec.Pos, rec.Cigar); err != nil {
			break
		}
	}
	if e := iter.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, err
	}
	return coverage.Compress(coverage.RunLength(depth, norm), resolution), nil
}

func writeSegments(ctx context.Context, outPath, sample, format string, refs []*sam.Reference, results [][]coverage.Segment) (err error) {
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
	if format == FormatBedgraph {
		w.WriteString(`track type=bedGraph name="` + sample + `" description="` + sample + `" visibility=full color=44,162,95`)
	} else {
		w.WriteString("chr\tstart\tend\tid\t" + sample)
	}
	if err = w.EndLine(); err != nil {
		return err
	}
	for refIdx, segs := range results {
		refName := refs[refIdx].Name()
		for _, seg := range segs {
			w.WriteString(refName)
			w.WriteUint32(uint32(seg.Start))
			w.WriteUint32(uint32(seg.End))
			if format == FormatBED {
				w.WriteString(refName + ":" + strconv.Itoa(seg.Start) + "-" + strconv.Itoa(seg.End))
			}
			w.WriteString(strconv.FormatFloat(seg.Score, 'g', 6, 64))
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
