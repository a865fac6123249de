package gesture

import "math"

// Normalize maps x onto [0,1] relative to the range lo..hi.
// It is monotonic non-decreasing in x and saturates outside the range.
// A degenerate range (hi <= lo) is treated as a step at lo.
func Normalize(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if hi <= lo {
		if x >= lo {
			return 1
		}
		return 0
	}
	return clamp01((x - lo) / (hi - lo))
}

// NormalizeEmotion maps an emotion score from the assumed -5..5 range onto
// [0,1] so that neutral-positive expression lands above the midpoint.
func NormalizeEmotion(x float64) float64 {
	return Normalize(x, -5, 5)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitize coerces non-finite values to 0.
func sanitize(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var acc float64
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(values)))
}
