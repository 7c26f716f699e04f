// Package bench repeats the run stage to measure wall-clock behavior of an
// accepted program: one discarded warm-up, then a fixed number of measured
// repeats, aggregated into robust order statistics. The benchmark never
// changes the verdict; it only annotates it.
package bench

import "sort"

// Stability classifications for a measurement series.
const (
	StabilityStable    = "stable"
	StabilityUnstable  = "unstable"
	StabilityNoSuccess = "no_success"
)

// relative IQR threshold under which a series counts as stable
const stableIQRFraction = 0.05

// Report aggregates the measured repeats.
type Report struct {
	Repeats   int            `json:"repeats"`
	Successes int            `json:"successes"`
	Failures  map[string]int `json:"failures,omitempty"`

	MedianMs float64 `json:"median_ms"`
	P10Ms    float64 `json:"p10_ms"`
	P90Ms    float64 `json:"p90_ms"`
	IQRMs    float64 `json:"iqr_ms"`

	Stability string    `json:"stability"`
	TimesMs   []float64 `json:"times_ms"`
}

// Aggregate computes the report statistics for the successful wall times.
// repeats is the number of measured runs attempted; failures counts the
// non-clean outcomes by status name.
func Aggregate(timesMs []float64, repeats int, failures map[string]int) *Report {
	r := &Report{
		Repeats:   repeats,
		Successes: len(timesMs),
		Failures:  failures,
		TimesMs:   timesMs,
	}
	if len(timesMs) == 0 {
		r.Stability = StabilityNoSuccess
		return r
	}

	sorted := append([]float64(nil), timesMs...)
	sort.Float64s(sorted)

	r.MedianMs = percentile(sorted, 50)
	r.P10Ms = percentile(sorted, 10)
	r.P90Ms = percentile(sorted, 90)
	r.IQRMs = percentile(sorted, 75) - percentile(sorted, 25)

	if r.MedianMs > 0 && r.IQRMs <= stableIQRFraction*r.MedianMs {
		r.Stability = StabilityStable
	} else {
		r.Stability = StabilityUnstable
	}
	return r
}

// percentile interpolates linearly between closest ranks; input must be
// sorted ascending and non-empty.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
