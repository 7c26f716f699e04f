package bench

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{10, 1.4},
		{25, 2},
		{50, 3},
		{75, 4},
		{90, 4.6},
		{100, 5},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); !almostEqual(got, tt.want) {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile([]float64{7}, 50); got != 7 {
		t.Errorf("percentile of singleton = %v, want 7", got)
	}
}

func TestAggregate_Unstable(t *testing.T) {
	r := Aggregate([]float64{1, 2, 3, 4, 5}, 5, nil)
	if r.Successes != 5 || r.Repeats != 5 {
		t.Fatalf("successes/repeats = %d/%d, want 5/5", r.Successes, r.Repeats)
	}
	if !almostEqual(r.MedianMs, 3) {
		t.Errorf("median = %v, want 3", r.MedianMs)
	}
	if !almostEqual(r.IQRMs, 2) {
		t.Errorf("iqr = %v, want 2", r.IQRMs)
	}
	if r.Stability != StabilityUnstable {
		t.Errorf("stability = %q, want unstable", r.Stability)
	}
}

func TestAggregate_Stable(t *testing.T) {
	r := Aggregate([]float64{100, 100.5, 101, 100.2, 100.8}, 5, nil)
	if r.Stability != StabilityStable {
		t.Errorf("stability = %q (median %v, iqr %v), want stable",
			r.Stability, r.MedianMs, r.IQRMs)
	}
}

func TestAggregate_NoSuccess(t *testing.T) {
	r := Aggregate(nil, 5, map[string]int{"Time Limit Exceeded": 5})
	if r.Stability != StabilityNoSuccess {
		t.Errorf("stability = %q, want no_success", r.Stability)
	}
	if r.Successes != 0 {
		t.Errorf("successes = %d, want 0", r.Successes)
	}
	if r.Failures["Time Limit Exceeded"] != 5 {
		t.Errorf("failures = %v", r.Failures)
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Aggregate(in, 3, nil)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input reordered: %v", in)
	}
}
