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
	"github.com/grailbio/coverage/window"
)

var (
	mapQual      = flag.Int("map-qual", window.DefaultOpts.MinMapQ, "Minimum mapping quality")
	windowSize   = flag.Int("window-size", window.DefaultOpts.WindowSize, "Window size in bases")
	windowOffset = flag.Int("window-offset", window.DefaultOpts.WindowOffset, "Offset between window starts")
	windowNum    = flag.Int("window-num", window.DefaultOpts.WindowNum, "Number of windows per reference; overrides -window-size and -window-offset if >0")
	intervalFile = flag.String("interval-file", window.DefaultOpts.IntervalPath, "Reporting-interval file (chrom start end id); replaces the tiling windows if present")
	sample       = flag.String("sample", "", "Sample name for the count column; defaults to the BAM basename")
	outFile      = flag.String("out", "cov.gz", "Output file (gzip TSV)")
	parallelism  = flag.Int("parallelism", 0, "Maximum number of simultaneous per-reference jobs; 0 = runtime.NumCPU()")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] aligned.bam\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Exactly one positional argument (aligned.bam) expected, got %d", flag.NArg())
	}
	ctx := vcontext.Background()
	opts := window.Opts{
		MinMapQ:      *mapQual,
		WindowSize:   *windowSize,
		WindowOffset: *windowOffset,
		WindowNum:    *windowNum,
		IntervalPath: *intervalFile,
		SampleName:   *sample,
		Parallelism:  *parallelism,
	}
	if err := window.Count(ctx, flag.Arg(0), *outFile, opts); err != nil {
		log.Fatalf("%v", err)
	}
}
