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
	"github.com/grailbio/coverage/track"
)

var (
	mapQual     = flag.Int("map-qual", track.DefaultOpts.MinMapQ, "Minimum mapping quality")
	resolution  = flag.Float64("resolution", track.DefaultOpts.Resolution, "Fractional track resolution in (0,1); values outside disable reduction")
	normalize   = flag.Uint64("normalize", track.DefaultOpts.Normalize, "Number of pairs to normalize to; 0 disables normalization")
	format      = flag.String("format", track.DefaultOpts.Format, "Output format; 'bedgraph' and 'bed' supported")
	sample      = flag.String("sample", "", "Sample name for the track; defaults to the BAM basename")
	outFile     = flag.String("out", "track.gz", "Output file (gzip)")
	parallelism = flag.Int("parallelism", 0, "Maximum number of simultaneous per-reference jobs; 0 = runtime.NumCPU()")
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
	opts := track.Opts{
		MinMapQ:     *mapQual,
		Resolution:  *resolution,
		Normalize:   *normalize,
		Format:      *format,
		SampleName:  *sample,
		Parallelism: *parallelism,
	}
	if err := track.Write(ctx, flag.Arg(0), *outFile, opts); err != nil {
		log.Fatalf("%v", err)
	}
}
