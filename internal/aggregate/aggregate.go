// Package aggregate provides the small statistics used by the scoring,
// comparison and optimization code.
package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Clamp01 bounds v to [0,1]; NaN maps to 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev returns the sample standard deviation, or 0 with fewer than two values
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Median returns the median value, or 0 for an empty slice.
// The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// CoefficientOfVariation returns stddev/|mean|. The second return is false
// when fewer than two values exist or the mean is zero.
func CoefficientOfVariation(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	mean := Mean(values)
	if mean == 0 {
		return 0, false
	}
	return StdDev(values) / math.Abs(mean), true
}

// PercentileRank returns the share of values strictly below target plus half
// of the ties, scaled to [0,100]. An empty set ranks at 50.
func PercentileRank(target float64, values []float64) float64 {
	if len(values) == 0 {
		return 50
	}
	var below, equal int
	for _, v := range values {
		switch {
		case v < target:
			below++
		case v == target:
			equal++
		}
	}
	return 100 * (float64(below) + 0.5*float64(equal)) / float64(len(values))
}

// HHI returns the Herfindahl-Hirschman index of shares expressed as fractions
func HHI(shares []float64) float64 {
	var sum float64
	for _, s := range shares {
		sum += s * s
	}
	return sum
}

// WeightedMean returns sum(v*w)/sum(w), or 0 when the weights sum to zero
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0
	}
	return stat.Mean(values, weights)
}

// SimpleReturns converts a price series into period returns.
// Pairs involving a non-positive price are skipped.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	return returns
}
