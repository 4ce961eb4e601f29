package stats

import (
	"fmt"
	"math"
)

// HistogramBin is one equal-width bin
type HistogramBin struct {
	Label               string  `json:"bin"`
	Start               float64 `json:"start"`
	End                 float64 `json:"end"`
	Count               int     `json:"count"`
	Frequency           float64 `json:"frequency"`
	CumulativeFrequency float64 `json:"cumulativeFrequency"`
}

// Histogram splits [min, max] into binCount equal-width bins. Every bin is
// half-open except the last, which includes max. When all values are equal
// a single zero-width bin holds every value.
func Histogram(values []float64, binCount int) ([]HistogramBin, error) {
	if binCount <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", binCount)
	}
	n := len(values)
	if n == 0 {
		return []HistogramBin{}, nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if hi == lo {
		return []HistogramBin{{
			Label:               binLabel(lo, hi),
			Start:               lo,
			End:                 hi,
			Count:               n,
			Frequency:           1,
			CumulativeFrequency: 1,
		}}, nil
	}

	width := (hi - lo) / float64(binCount)
	counts := make([]int, binCount)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= binCount {
			idx = binCount - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}

	bins := make([]HistogramBin, binCount)
	cumulative := 0
	for i := range bins {
		start := lo + float64(i)*width
		end := lo + float64(i+1)*width
		if i == binCount-1 {
			end = hi
		}
		cumulative += counts[i]
		bins[i] = HistogramBin{
			Label:               binLabel(start, end),
			Start:               start,
			End:                 end,
			Count:               counts[i],
			Frequency:           float64(counts[i]) / float64(n),
			CumulativeFrequency: float64(cumulative) / float64(n),
		}
	}
	return bins, nil
}

func binLabel(start, end float64) string {
	return fmt.Sprintf("%.2f-%.2f", start, end)
}
