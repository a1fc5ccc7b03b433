package rfv

import (
	"math"
	"sort"

	"github.com/joseph-ayodele/rfv-segments/internal/entity"
)

// Quantile returns the p-th quantile of values using linear interpolation
// between order statistics: the quantile index is p*(n-1) over the sorted
// values. values is not modified. An empty slice yields NaN.
func Quantile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantileSorted(sorted, p)
}

func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// Points computes Q25, Q50 and Q75 of values.
func Points(values []float64) entity.QuartilePoints {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) == 0 {
		nan := math.NaN()
		return entity.QuartilePoints{Q25: nan, Q50: nan, Q75: nan}
	}
	return entity.QuartilePoints{
		Q25: quantileSorted(sorted, 0.25),
		Q50: quantileSorted(sorted, 0.50),
		Q75: quantileSorted(sorted, 0.75),
	}
}

// ComputeQuartiles builds the reference table over the joined customers.
// It must only be called once the customer set is complete.
func ComputeQuartiles(customers []entity.CustomerRFV) entity.Quartiles {
	rec := make([]float64, len(customers))
	freq := make([]float64, len(customers))
	val := make([]float64, len(customers))
	for i, c := range customers {
		rec[i] = float64(c.Recency)
		freq[i] = float64(c.Frequency)
		val[i] = c.Value
	}
	return entity.Quartiles{
		Recency:   Points(rec),
		Frequency: Points(freq),
		Value:     Points(val),
	}
}
