package analysis

import (
	"math"
	"slices"
)

// Stats are the descriptive statistics of one group of elapsed times.
type Stats struct {
	Mean   float64
	Std    float64
	Median float64
	N      int
}

// Describe computes the mean, population standard deviation and median of
// values. Sums run in input order, so equal inputs give bit-identical output.
// An empty input yields the zero Stats.
func Describe(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Stats{
		Mean:   mean,
		Std:    math.Sqrt(sq / float64(n)),
		Median: median,
		N:      n,
	}
}

// ImprovePct is the percentage by which avg is faster than base.
func ImprovePct(base, avg float64) float64 {
	return (base - avg) / base * 100
}
