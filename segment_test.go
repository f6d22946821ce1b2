package coverage

import (
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
)

// expand reproduces the per-base score array encoded by segs.
func expand(segs []Segment) []float64 {
	if len(segs) == 0 {
		return nil
	}
	out := make([]float64, segs[len(segs)-1].End)
	for _, seg := range segs {
		for i := seg.Start; i < seg.End; i++ {
			out[i] = seg.Score
		}
	}
	return out
}

func checkContiguous(t *testing.T, segs []Segment, length int) {
	expect.EQ(t, 0, segs[0].Start)
	expect.EQ(t, length, segs[len(segs)-1].End)
	for i := 1; i < len(segs); i++ {
		expect.EQ(t, segs[i-1].End, segs[i].Start)
	}
}

func TestRunLength(t *testing.T) {
	d := Depth{0, 0, 3, 3, 3, 0}
	want := []Segment{
		{Start: 0, End: 2, Score: 0},
		{Start: 2, End: 5, Score: 3},
		{Start: 5, End: 6, Score: 0},
	}
	expect.EQ(t, want, RunLength(d, 1))
}

func TestRunLengthNormalized(t *testing.T) {
	d := Depth{2, 2, 4}
	want := []Segment{
		{Start: 0, End: 2, Score: 1},
		{Start: 2, End: 3, Score: 2},
	}
	expect.EQ(t, want, RunLength(d, 0.5))
}

func TestRunLengthRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDepth(1000)
	for i := range d {
		d[i] = uint16(rng.Intn(4))
	}
	segs := RunLength(d, 1)
	checkContiguous(t, segs, len(d))
	got := expand(segs)
	for i := range d {
		expect.EQ(t, float64(d[i]), got[i])
	}
}

func TestCompressDisabled(t *testing.T) {
	segs := RunLength(Depth{0, 1, 0, 1, 0, 1}, 1)
	for _, resolution := range []float64{0, -1, 1, 2} {
		expect.EQ(t, segs, Compress(append([]Segment(nil), segs...), resolution))
	}
}

func TestCompressSmall(t *testing.T) {
	segs := RunLength(Depth{0, 0, 1, 1, 5, 5}, 1)
	got := Compress(segs, 0.5)
	// The cheap 0/1 merge happens first, then the remaining pair collapses
	// into a single width-weighted segment.
	expect.EQ(t, []Segment{{Start: 0, End: 6, Score: 2}}, got)
}

func TestCompressMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	d := NewDepth(5000)
	for i := range d {
		d[i] = uint16(rng.Intn(30))
	}
	orig := RunLength(d, 1)
	for _, resolution := range []float64{0.9, 0.5, 0.2, 0.05} {
		segs := Compress(append([]Segment(nil), orig...), resolution)
		expect.True(t, len(segs) <= len(orig), "resolution %v grew the list", resolution)
		expect.True(t, len(segs) >= 1)
		checkContiguous(t, segs, len(d))
	}
}

func TestCompressSingleRun(t *testing.T) {
	segs := RunLength(Depth{7, 7, 7, 7}, 1)
	expect.EQ(t, []Segment{{Start: 0, End: 4, Score: 7}}, Compress(segs, 0.1))
}
