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
bio-cov-track exports the per-base coverage of validated read pairs as a
bedgraph or BED browser track.  Coverage is run-length encoded, optionally
normalized to a target read-pair count, and optionally reduced to a fraction
of its original segment count by greedy error-minimizing merges.

Sample usage:
bio-cov-track \
    -resolution 0.2 \
    -out track.gz \
    my.bam
*/
package main
