package evaluation

import (
	"math"
	"sort"
)

// Percentiles returns the 0th through 100th percentiles of values using
// linear interpolation between closest ranks. NaN values are ignored; an
// input without finite values yields nil.
func Percentiles(values []float64) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	out := make([]float64, ThresholdCount)
	for i := range out {
		out[i] = quantileSorted(sorted, float64(i)/float64(ThresholdCount-1))
	}
	return out
}

func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
