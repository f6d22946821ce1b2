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

/*Package coverage computes per-base sequencing coverage from paired
  short-read alignments and reduces the result into compact piecewise-constant
  tracks or per-interval counts.

  The package operates on in-memory record streams and arrays; it never reads
  or writes files itself.  A caller streams position-sorted sam.Records for
  one reference through a PairResolver, feeds the resolved fragments into a
  Depth array, and then consumes the array either through SumIntervals
  (window/region counting) or through RunLength + Compress (track export).
  References carry no shared state, so callers are free to process them
  concurrently, one Depth array per in-flight reference.
*/
package coverage
