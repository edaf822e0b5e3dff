package tui

import (
	"strings"
	"testing"
)

func TestRateHistory_PushAndSlice(t *testing.T) {
	r := NewRateHistory(3)
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}

	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4) // overwrites 1

	got := r.Slice()
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRateHistory_Resize(t *testing.T) {
	r := NewRateHistory(5)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}

	r.Resize(3)
	got := r.Slice()
	want := []float64{3, 4, 5}
	if len(got) != 3 {
		t.Fatalf("after shrink Slice() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	r.Resize(10)
	if r.Len() != 3 {
		t.Errorf("growing should preserve samples, Len() = %d", r.Len())
	}
}

func TestRateHistory_ZeroCapacity(t *testing.T) {
	r := NewRateHistory(0)
	r.Push(42)
	if r.Len() != 1 {
		t.Errorf("zero capacity should clamp to 1, Len() = %d", r.Len())
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline(nil); got != "" {
		t.Errorf("RenderSparkline(nil) = %q, want empty", got)
	}

	out := RenderSparkline([]float64{0, 50, 100})
	runes := []rune(out)
	if len(runes) != 3 {
		t.Fatalf("sparkline length = %d, want 3", len(runes))
	}
	if runes[0] != '▁' {
		t.Errorf("minimum sample rendered %q, want lowest block", runes[0])
	}
	if runes[2] != '█' {
		t.Errorf("maximum sample rendered %q, want full block", runes[2])
	}

	// All-equal nonzero samples render at full height of their own scale.
	flat := RenderSparkline([]float64{7, 7, 7})
	if !strings.HasPrefix(flat, "█") {
		t.Errorf("flat series rendered %q", flat)
	}

	// All-zero samples stay at the floor.
	zero := RenderSparkline([]float64{0, 0})
	if zero != "▁▁" {
		t.Errorf("zero series rendered %q", zero)
	}
}
