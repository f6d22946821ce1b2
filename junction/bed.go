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
package junction

import (
	"bufio"
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	biointerval "github.com/biogo/store/interval"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// exon is one BED feature.  id is unique across the whole run; gene indexes
// the shared gene-name table.
type exon struct {
	start int
	end   int
	gene  int
	id    int
}

// Range implements biogo's interval.IntInterface.
func (e exon) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: e.start, End: e.end}
}

// Overlap implements biogo's interval.IntInterface.
func (e exon) Overlap(b biointerval.IntRange) bool {
	return e.start <= b.End && e.end >= b.Start
}

// ID implements biogo's interval.IntInterface.
func (e exon) ID() uintptr { return uintptr(e.id) }

// pointQuery is a single-position interval-tree probe.
type pointQuery int

func (q pointQuery) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: int(q), End: int(q)}
}

func (q pointQuery) Overlap(b biointerval.IntRange) bool {
	return int(q) >= b.Start && int(q) <= b.End
}

func (q pointQuery) ID() uintptr { return 0 }

// exonSet is the parsed exon BED: exons grouped per reference name and
// sorted by start, plus the gene-name table their gene indices point into.
type exonSet struct {
	genes []string
	byRef map[string][]exon
}

// readExons parses a BED file with columns chrom, start, end and gene name.
// The file may be gzip-compressed.  Exon ids are assigned in file order.
func readExons(ctx context.Context, path string) (feats *exonSet, err error) {
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

	feats = &exonSet{byRef: make(map[string][]exon)}
	geneIdx := make(map[string]int)
	sc := bufio.NewScanner(reader)
	lineno := 0
	nextID := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, errors.Errorf("%s:%d: expected chrom, start, end, gene", path, lineno)
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad exon start", path, lineno)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad exon end", path, lineno)
		}
		if start < 0 || start >= end {
			return nil, errors.Errorf("%s:%d: invalid exon [%d, %d)", path, lineno, start, end)
		}
		gene, ok := geneIdx[fields[3]]
		if !ok {
			gene = len(feats.genes)
			geneIdx[fields[3]] = gene
			feats.genes = append(feats.genes, fields[3])
		}
		feats.byRef[fields[0]] = append(feats.byRef[fields[0]], exon{
			start: start,
			end:   end,
			gene:  gene,
			id:    nextID,
		})
		nextID++
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	for _, exons := range feats.byRef {
		sort.Slice(exons, func(i, j int) bool { return exons[i].start < exons[j].start })
	}
	return feats, nil
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
