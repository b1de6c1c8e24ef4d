package requirements

import (
	"testing"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

var base = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func at(offsetSeconds int) time.Time {
	return base.Add(time.Duration(offsetSeconds) * time.Second)
}

// TestMergeRanges covers Testable Property #4, reproducing the Rust
// original's literal unit test.
func TestMergeRanges(t *testing.T) {
	input := []Range{
		{From: at(32), To: at(33)},
		{From: at(40), To: at(45)},
		{From: at(0), To: at(20)},
		{From: at(10), To: at(30)},
		{From: at(21), To: at(31)},
		{From: at(43), To: at(50)},
	}

	got := mergeRanges(input)

	want := []Range{
		{From: at(0), To: at(31)},
		{From: at(32), To: at(33)},
		{From: at(40), To: at(50)},
	}

	if len(got) != len(want) {
		t.Fatalf("merge_ranges length = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].From.Equal(want[i].From) || !got[i].To.Equal(want[i].To) {
			t.Fatalf("merge_ranges[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCollector_FinalizePerFigi(t *testing.T) {
	c := New(func() time.Time { return at(100) })

	f1 := domain.Figi("F1")
	f2 := domain.Figi("F2")

	to30 := at(30)
	c.Push(f1, at(0), &to30)
	c.Push(f1, at(20), nil) // nil -> "now" = at(100)
	c.Push(f2, at(5), &to30)

	result := c.Finalize()

	if len(result[f1]) != 1 {
		t.Fatalf("expected one merged range for f1, got %v", result[f1])
	}
	if !result[f1][0].To.Equal(at(100)) {
		t.Fatalf("expected f1 range to extend to 'now', got %v", result[f1][0].To)
	}
	if len(result[f2]) != 1 || !result[f2][0].To.Equal(to30) {
		t.Fatalf("expected f2 range [5,30), got %v", result[f2])
	}
}
