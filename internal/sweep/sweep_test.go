package sweep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRangeRejectsInverted(t *testing.T) {
	if _, err := NewRange(5, 4); err == nil {
		t.Fatal("expected error for inverted range")
	}
	r, err := NewRange(3, 3)
	if err != nil {
		t.Fatalf("NewRange(3, 3) error = %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestDefaultPlanHas110Trials(t *testing.T) {
	plan := Plan{Outer: Range{From: 1, To: 10}, Inner: Range{From: 0, To: 10}}
	if plan.Len() != 110 {
		t.Fatalf("Len() = %d, want 110", plan.Len())
	}
	trials := plan.Trials()
	if len(trials) != 110 {
		t.Fatalf("len(Trials()) = %d, want 110", len(trials))
	}
	seen := make(map[[2]int]bool, len(trials))
	for _, tr := range trials {
		key := [2]int{tr.Outer, tr.Inner}
		if seen[key] {
			t.Fatalf("duplicate trial %v", tr)
		}
		seen[key] = true
	}
	if first := trials[0]; first.Outer != 1 || first.Inner != 0 || first.Seq != 0 {
		t.Fatalf("first trial = %+v", first)
	}
	if last := trials[109]; last.Outer != 10 || last.Inner != 10 || last.Seq != 109 {
		t.Fatalf("last trial = %+v", last)
	}
}

func TestTrialsNestedAscending(t *testing.T) {
	plan := Plan{Outer: Range{From: 1, To: 10}, Inner: Range{From: 0, To: 10}}
	trials := plan.Trials()
	for k := 1; k < len(trials); k++ {
		prev, cur := trials[k-1], trials[k]
		switch {
		case cur.Outer == prev.Outer:
			if cur.Inner != prev.Inner+1 {
				t.Fatalf("inner not ascending at %d: %v -> %v", k, prev, cur)
			}
		case cur.Outer == prev.Outer+1:
			if prev.Inner != plan.Inner.To || cur.Inner != plan.Inner.From {
				t.Fatalf("outer advanced before inner completed at %d: %v -> %v", k, prev, cur)
			}
		default:
			t.Fatalf("outer jumped at %d: %v -> %v", k, prev, cur)
		}
	}
}

func TestArgsReducedSweep(t *testing.T) {
	plan := Plan{Outer: Range{From: 1, To: 2}, Inner: Range{From: 0, To: 1}}
	params := Params{OutputDir: "out", Lower: 0, Upper: 1000}

	var got [][]string
	for _, tr := range plan.Trials() {
		got = append(got, params.Args(tr))
	}
	want := [][]string{
		{"out", "0", "0.0", "1000.0", "1"},
		{"out", "1", "0.0", "1000.0", "1"},
		{"out", "0", "0.0", "1000.0", "2"},
		{"out", "1", "0.0", "1000.0", "2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatBound(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1000, "1000.0"},
		{12.5, "12.5"},
		{-3, "-3.0"},
		{0.001, "0.001"},
	}
	for _, tt := range tests {
		if got := FormatBound(tt.in); got != tt.want {
			t.Errorf("FormatBound(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
