package junction

import (
	"bufio"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

var (
	jChr1, _   = sam.NewReference("chr1", "", "", 1000, nil, nil)
	jHeader, _ = sam.NewHeader(nil, []*sam.Reference{jChr1})

	// Two genes on chr1: G1 with three exons, G2 with one.
	jExons = []exon{
		{start: 100, end: 200, gene: 0, id: 0},
		{start: 300, end: 400, gene: 0, id: 1},
		{start: 500, end: 600, gene: 0, id: 2},
		{start: 700, end: 800, gene: 1, id: 3},
	}
)

func splicedRecord(name string, pos int, cigar sam.Cigar, mapq byte, flags sam.Flags) *sam.Record {
	return &sam.Record{
		Name:  name,
		Ref:   jChr1,
		Pos:   pos,
		MapQ:  mapq,
		Flags: flags,
		Cigar: cigar,
	}
}

func spliceCigar(matchLen, skipLen int) sam.Cigar {
	return sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, matchLen),
		sam.NewCigarOp(sam.CigarSkipped, skipLen),
		sam.NewCigarOp(sam.CigarMatch, matchLen),
	}
}

func TestCountRef(t *testing.T) {
	recs := []*sam.Record{
		// Two reads spanning exon0 -> exon1 exactly.
		splicedRecord("r1", 190, spliceCigar(10, 100), 30, 0),
		splicedRecord("r2", 190, spliceCigar(10, 100), 30, 0),
		// One read skipping straight to exon2.
		splicedRecord("r3", 190, spliceCigar(10, 300), 30, 0),
		// Filtered out: quality, then flags.
		splicedRecord("r5", 190, spliceCigar(10, 100), 5, 0),
		splicedRecord("r6", 190, spliceCigar(10, 100), 30, sam.Duplicate),
		// Skip endpoints off the exon boundaries.
		splicedRecord("r4", 195, spliceCigar(10, 95), 30, 0),
	}
	provider := bamprovider.NewFakeProvider(jHeader, recs)
	counts, err := countRef(provider, jChr1, jExons, 10)
	expect.NoError(t, err)
	expect.EQ(t, counts, map[exonPair]uint32{
		{0, 1}: 2,
		{0, 2}: 1,
	})
}

func TestCountRefMultipleSkips(t *testing.T) {
	// One read crossing both junctions: 200N to exon1, then 100N to exon2.
	cigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 10),
		sam.NewCigarOp(sam.CigarSkipped, 100),
		sam.NewCigarOp(sam.CigarMatch, 100),
		sam.NewCigarOp(sam.CigarSkipped, 100),
		sam.NewCigarOp(sam.CigarMatch, 10),
	}
	recs := []*sam.Record{splicedRecord("r1", 190, cigar, 30, 0)}
	provider := bamprovider.NewFakeProvider(jHeader, recs)
	counts, err := countRef(provider, jChr1, jExons, 10)
	expect.NoError(t, err)
	expect.EQ(t, counts, map[exonPair]uint32{
		{0, 1}: 1,
		{1, 2}: 1,
	})
}

func TestCountRefExonPastReferenceEnd(t *testing.T) {
	// An exon from a mismatched assembly ends beyond the reference; it must
	// be dropped, not crash boundary indexing.
	exons := append(append([]exon{}, jExons...), exon{start: 900, end: 2000, gene: 0, id: 4})
	recs := []*sam.Record{
		splicedRecord("r1", 190, spliceCigar(10, 100), 30, 0),
	}
	provider := bamprovider.NewFakeProvider(jHeader, recs)
	counts, err := countRef(provider, jChr1, exons, 10)
	expect.NoError(t, err)
	expect.EQ(t, counts, map[exonPair]uint32{{0, 1}: 1})
}

func TestCountRefNoSkips(t *testing.T) {
	recs := []*sam.Record{
		splicedRecord("r1", 150, sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 50)}, 30, 0),
	}
	provider := bamprovider.NewFakeProvider(jHeader, recs)
	counts, err := countRef(provider, jChr1, jExons, 10)
	expect.NoError(t, err)
	expect.EQ(t, len(counts), 0)
}

func TestReadExons(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "exons.bed")
	body := strings.Join([]string{
		"# exon annotation",
		"chr1\t100\t200\tG1",
		"chr1\t500\t600\tG1",
		"",
		"chr2\t50\t80\tG2",
		"chr1\t300\t400\tG1",
	}, "\n")
	expect.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))

	feats, err := readExons(context.Background(), path)
	expect.NoError(t, err)
	expect.EQ(t, feats.genes, []string{"G1", "G2"})
	expect.EQ(t, feats.byRef["chr1"], []exon{
		{start: 100, end: 200, gene: 0, id: 0},
		{start: 300, end: 400, gene: 0, id: 3},
		{start: 500, end: 600, gene: 0, id: 1},
	})
	expect.EQ(t, feats.byRef["chr2"], []exon{
		{start: 50, end: 80, gene: 1, id: 2},
	})
}

func TestReadExonsErrors(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	for _, test := range []struct {
		name, body string
	}{
		{"shortline", "chr1\t100\t200"},
		{"badcoord", "chr1\tzero\t200\tG1"},
		{"inverted", "chr1\t200\t100\tG1"},
	} {
		path := filepath.Join(tempDir, test.name)
		assert.NoError(t, ioutil.WriteFile(path, []byte(test.body+"\n"), 0644))
		_, err := readExons(context.Background(), path)
		assert.Error(t, err, "case %s", test.name)
	}
}

func TestWriteCounts(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	outPath := filepath.Join(tempDir, "junctions.tsv")

	feats := &exonSet{
		genes: []string{"G1", "G2"},
		byRef: map[string][]exon{"chr1": jExons},
	}
	counts := []map[exonPair]uint32{{
		{0, 1}: 2,
		{0, 2}: 1,
	}}
	err := writeCounts(context.Background(), outPath, "samp", []*sam.Reference{jChr1}, feats, counts)
	expect.NoError(t, err)

	body, err := ioutil.ReadFile(outPath)
	expect.NoError(t, err)
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	expect.NoError(t, scanner.Err())
	expect.EQ(t, lines, []string{
		"gene\texonA\texonB\tsamp",
		"G1\tchr1:100-200\tchr1:300-400\t2",
		"G1\tchr1:100-200\tchr1:500-600\t1",
		"G1\tchr1:300-400\tchr1:500-600\t0",
	})
}
