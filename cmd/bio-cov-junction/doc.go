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

/*
Command bio-cov-junction counts spliced alignments supporting
exon-exon junctions. Exons are given as a four column BED file
(chrom, start, end, gene); an alignment's N (reference skip) CIGAR
operation supports a junction when the skip starts on one exon's end
boundary and resumes on another exon's start boundary.

The output is a TSV listing, for every ordered pair of
non-overlapping exons within a gene, the number of supporting
alignments.

Example:
	bio-cov-junction -bed exons.bed -out junctions.tsv aligned.bam
*/
package main
