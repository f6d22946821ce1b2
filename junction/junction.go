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

// Package junction counts reads supporting exon-exon junctions.  A read
// supports a junction when one of its reference-skip CIGAR operations spans
// exactly from one exon's end to another exon's start.
package junction

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	biointerval "github.com/biogo/store/interval"
	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// Opts configures Count.
type Opts struct {
	// MinMapQ drops reads below this mapping quality.
	MinMapQ int
	// BEDPath names the exon BED file (chrom, start, end, gene).
	BEDPath string
	// SampleName labels the count column.  Defaults to the BAM basename.
	SampleName string
	// Parallelism limits concurrent per-reference jobs; 0 = runtime.NumCPU().
	Parallelism int
}

// DefaultOpts mirrors the command-line defaults.
var DefaultOpts = Opts{
	MinMapQ: 10,
}

// skipExclude disqualifies a record from junction counting.  Junction support
// is per read, not per pair, so mate flags are not consulted.
const skipExclude = sam.QCFail | sam.Duplicate | sam.Unmapped

// exonPair keys a junction counter by the two exon ids, smaller id first.
type exonPair [2]int

// Count tallies junction-supporting reads for every exon pair in the BED at
// opts.BEDPath and writes one TSV row per intra-gene exon pair:
// {gene, exonA, exonB, count}.
func Count(ctx context.Context, bamPath, outPath string, opts Opts) (err error) {
	feats, err := readExons(ctx, opts.BEDPath)
	if err != nil {
		return err
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
	counts := make([]map[exonPair]uint32, len(refs))
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	log.Printf("junction: counting %d references (%d jobs)", len(refs), parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		for refIdx := jobIdx; refIdx < len(refs); refIdx += parallelism {
			ref := refs[refIdx]
			exons := feats.byRef[ref.Name()]
			if len(exons) == 0 {
				continue
			}
			refCounts, err := countRef(provider, ref, exons, byte(opts.MinMapQ))
			if err != nil {
				return errors.E(err, "junction: counting reference", ref.Name())
			}
			counts[refIdx] = refCounts
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeCounts(ctx, outPath, sampleName(opts.SampleName, bamPath), refs, feats, counts)
}

// countRef scans one reference's reads for reference skips landing on exon
// boundaries.  Boundary positions are pre-flagged in a bitset so the interval
// tree is only consulted for skips that can possibly match.
func countRef(provider bamprovider.Provider, ref *sam.Reference, exons []exon, minMapQ byte) (map[exonPair]uint32, error) {
	boundary := make([]uintptr, ref.Len()/bitset.BitsPerWord+1)
	tree := &biointerval.IntTree{}
	for _, e := range exons {
		if e.end > ref.Len() {
			// BED and BAM disagree on the assembly.
			log.Printf("junction: %s: exon [%d, %d) extends past the reference end (%d), skipped", ref.Name(), e.start, e.end, ref.Len())
			continue
		}
		setBit(boundary, e.start)
		setBit(boundary, e.end)
		if err := tree.Insert(e, true); err != nil {
			return nil, err
		}
	}
	tree.AdjustRanges()

	counts := make(map[exonPair]uint32)
	iter := provider.NewIterator(gbam.Shard{StartRef: ref, EndRef: ref, Start: 0, End: ref.Len()})
	var err error
	for iter.Scan() {
		rec := iter.Record()
		if rec.Flags&skipExclude != 0 || rec.MapQ < minMapQ {
			continue
		}
		if err = countRecord(rec, boundary, tree, counts, ref.Len()); err != nil {
			break
		}
	}
	if e := iter.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func countRecord(rec *sam.Record, boundary []uintptr, tree *biointerval.IntTree, counts map[exonPair]uint32, refLen int) error {
	gp := rec.Pos
	for _, co := range rec.Cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			gp += co.Len()
		case sam.CigarSkipped:
			gpStart := gp
			gp += co.Len()
			gpEnd := gp
			if gpStart < 0 || gpEnd > refLen {
				continue
			}
			if !bitset.Test(boundary, gpStart) || !bitset.Test(boundary, gpEnd) {
				continue
			}
			for _, iv := range tree.Get(pointQuery(gpStart)) {
				e := iv.(exon)
				if e.end != gpStart {
					continue
				}
				for _, iv2 := range tree.Get(pointQuery(gpEnd)) {
					partner := iv2.(exon)
					if partner.start == gpEnd && e.id < partner.id {
						counts[exonPair{e.id, partner.id}]++
					}
				}
			}
		case sam.CigarSoftClipped, sam.CigarInsertion, sam.CigarHardClipped:
			// No reference bases consumed.
		default:
			return fmt.Errorf("junction: unrecognized CIGAR op %v", co)
		}
	}
	return nil
}

func writeCounts(ctx context.Context, outPath, sample string, refs []*sam.Reference, feats *exonSet, counts []map[exonPair]uint32) (err error) {
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("gene\texonA\texonB\t" + sample)
	if err = w.EndLine(); err != nil {
		return err
	}
	for refIdx, refCounts := range counts {
		refName := refs[refIdx].Name()
		exons := feats.byRef[refName]
		for i, a := range exons {
			for _, b := range exons[i+1:] {
				if a.gene != b.gene || a.end >= b.start {
					continue
				}
				w.WriteString(feats.genes[a.gene])
				w.WriteString(refName + ":" + strconv.Itoa(a.start) + "-" + strconv.Itoa(a.end))
				w.WriteString(refName + ":" + strconv.Itoa(b.start) + "-" + strconv.Itoa(b.end))
				lo, hi := a.id, b.id
				if hi < lo {
					lo, hi = hi, lo
				}
				w.WriteString(strconv.FormatUint(uint64(refCounts[exonPair{lo, hi}]), 10))
				if err = w.EndLine(); err != nil {
					return err
				}
			}
		}
	}
	return w.Flush()
}

func setBit(data []uintptr, pos int) {
	data[pos/bitset.BitsPerWord] |= uintptr(1) << uint(pos%bitset.BitsPerWord)
}
