// Package score holds the aggregate computations shown next to journal entries.
// All functions are pure; nothing computed here is ever persisted.
package score

import (
	"strconv"
	"strings"
)

// Number is the set of numeric types aggregates operate on.
type Number interface {
	~int | ~int64 | ~float64
}

// Sum adds values.
func Sum[N Number](values ...N) N {
	var total N
	for _, v := range values {
		total += v
	}
	return total
}

// SumBy adds value(item) across items.
func SumBy[S any, N Number](items []S, value func(S) N) N {
	var total N
	for _, it := range items {
		total += value(it)
	}
	return total
}

// SumTagged adds value(item) for items whose tag equals want, e.g. the pro
// weights of a mixed pro/con list.
func SumTagged[S any, N Number](items []S, tag func(S) string, want string, value func(S) N) N {
	var total N
	for _, it := range items {
		if tag(it) == want {
			total += value(it)
		}
	}
	return total
}

// CountTagged counts items whose tag equals want.
func CountTagged[S any](items []S, tag func(S) string, want string) int {
	return SumTagged(items, tag, want, func(S) int { return 1 })
}

// ExpectedValue weights value by a probability given in percent.
func ExpectedValue(value, probability float64) float64 {
	return value * probability / 100
}

// TotalExpectedValue sums the expected value of every item.
func TotalExpectedValue[S any](items []S, value, probability func(S) float64) float64 {
	return SumBy(items, func(it S) float64 {
		return ExpectedValue(value(it), probability(it))
	})
}

// WeightedAverage returns Σ(score·weight)/Σweight, or 0 when the weights sum to
// zero. Extra scores or weights beyond the shorter slice are ignored.
func WeightedAverage(scores, weights []float64) float64 {
	n := min(len(scores), len(weights))
	var num, den float64
	for i := 0; i < n; i++ {
		num += scores[i] * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// WeightedImpact scales an impact by a confidence given in percent.
func WeightedImpact(impact, confidence float64) float64 {
	return impact * confidence / 100
}

// Diff is actual minus predicted.
func Diff[N Number](predicted, actual N) N {
	return actual - predicted
}

// FormatSigned renders x with the given number of decimals and an explicit "+"
// for non-negative values. The sign follows the rounded text, so values that
// round to zero render as "+0".
func FormatSigned[N Number](x N, decimals int) string {
	s := strconv.FormatFloat(float64(x), 'f', decimals, 64)
	if digits, neg := strings.CutPrefix(s, "-"); neg {
		if strings.Trim(digits, "0.") != "" {
			return s
		}
		s = digits
	}
	return "+" + s
}
