package coverage

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestSumInterval(t *testing.T) {
	d := Depth{1, 1, 5, 5, 5, 1}
	expect.EQ(t, uint64(15), d.Sum(2, 5))
	expect.EQ(t, uint64(18), d.Sum(0, len(d)))
	expect.EQ(t, uint64(0), d.Sum(3, 3))

	// Out-of-range boundaries clamp to the array.
	expect.EQ(t, uint64(18), d.Sum(-10, 100))
}

func TestSumIntervalsPartition(t *testing.T) {
	d := Depth{0, 2, 2, 7, 1, 1, 0, 4}
	intervals := []Interval{
		{Start: 0, End: 3, ID: "a"},
		{Start: 3, End: 6, ID: "b"},
		{Start: 6, End: 8, ID: "c"},
	}
	sums := SumIntervals(d, intervals)
	expect.EQ(t, []uint64{4, 9, 4}, sums)

	var total uint64
	for _, s := range sums {
		total += s
	}
	expect.EQ(t, d.Sum(0, len(d)), total)
}

func TestSumIntervalsOverlapping(t *testing.T) {
	d := Depth{1, 1, 1, 1}
	intervals := []Interval{
		{Start: 0, End: 3, ID: "a"},
		{Start: 1, End: 4, ID: "b"},
	}
	expect.EQ(t, []uint64{3, 3}, SumIntervals(d, intervals))
}

func TestWindows(t *testing.T) {
	got := Windows("chr1", 25, 10, 10, 0)
	want := []Interval{
		{Start: 0, End: 10, ID: "chr1:0-10"},
		{Start: 10, End: 20, ID: "chr1:10-20"},
		{Start: 20, End: 25, ID: "chr1:20-25"},
	}
	expect.EQ(t, want, got)
}

func TestWindowsOverlapping(t *testing.T) {
	got := Windows("chr1", 30, 20, 10, 0)
	want := []Interval{
		{Start: 0, End: 20, ID: "chr1:0-20"},
		{Start: 10, End: 30, ID: "chr1:10-30"},
		{Start: 20, End: 30, ID: "chr1:20-30"},
	}
	expect.EQ(t, want, got)
}

func TestWindowsFixedCount(t *testing.T) {
	got := Windows("chrX", 100, 0, 0, 4)
	want := []Interval{
		{Start: 0, End: 26, ID: "chrX:0-26"},
		{Start: 26, End: 52, ID: "chrX:26-52"},
		{Start: 52, End: 78, ID: "chrX:52-78"},
		{Start: 78, End: 100, ID: "chrX:78-100"},
	}
	expect.EQ(t, want, got)
}
