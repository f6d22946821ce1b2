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
bio-cov-window counts sequencing fragments per genomic window.  Read pairs
are resolved into single fragments, deduplicated, filtered by mapping
quality, and counted once at the fragment midpoint.  Windows either tile
every reference uniformly or come from an interval file.

Sample usage:
bio-cov-window \
    -window-size 10000 \
    -out cov.gz \
    my.bam
*/
package main
