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
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/coverage/junction"
)

var (
	mapQual     = flag.Int("map-qual", junction.DefaultOpts.MinMapQ, "Minimum mapping quality")
	bedFile     = flag.String("bed", "", "Exon BED file (chrom start end gene); required")
	sample      = flag.String("sample", "", "Sample name for the count column; defaults to the BAM basename")
	outFile     = flag.String("out", "junctions.tsv", "Output file (TSV)")
	parallelism = flag.Int("parallelism", 0, "Maximum number of simultaneous per-reference jobs; 0 = runtime.NumCPU()")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] -bed exons.bed aligned.bam\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 || *bedFile == "" {
		log.Fatalf("Exactly one positional argument (aligned.bam) and -bed expected")
	}
	ctx := vcontext.Background()
	opts := junction.Opts{
		MinMapQ:     *mapQual,
		BEDPath:     *bedFile,
		SampleName:  *sample,
		Parallelism: *parallelism,
	}
	if err := junction.Count(ctx, flag.Arg(0), *outFile, opts); err != nil {
		log.Fatalf("%v", err)
	}
}
