// Package downsampling reduces long generation series to a chart-sized
// number of points while keeping their visual shape.
package downsampling

import (
	"fmt"
	"math"

	"github.com/bactolab/resistscope/internal/analytics"
	"gonum.org/v1/gonum/stat"
)

// Mode represents the downsampling mode
type Mode string

const (
	// ModeNone means no downsampling
	ModeNone Mode = "none"
	// ModeAuto picks an algorithm when the series exceeds the threshold
	ModeAuto Mode = "auto"
	// ModeLTTB uses Largest-Triangle-Three-Buckets algorithm
	ModeLTTB Mode = "lttb"
	// ModeMinMax keeps min and max values per bucket (preserves resistance sweeps)
	ModeMinMax Mode = "minmax"
	// ModeAverage uses average value per bucket
	ModeAverage Mode = "avg"
	// ModeM4 keeps First, Min, Max, Last per bucket
	ModeM4 Mode = "m4"
)

// DefaultAutoThreshold is the default threshold for auto mode
const DefaultAutoThreshold = 500

// ValidModes returns all valid downsampling modes
func ValidModes() []Mode {
	return []Mode{ModeNone, ModeAuto, ModeLTTB, ModeMinMax, ModeAverage, ModeM4}
}

// ParseMode validates a mode string; empty means auto
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeAuto, nil
	}
	for _, m := range ValidModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown downsampling mode %q", s)
}

// Downsample reduces a series to at most threshold points (minmax and m4 may
// return slightly fewer). Average mode returns bucket means placed at the
// middle generation of each bucket; the other modes return original points.
func Downsample(series analytics.GenerationSeries, mode Mode, threshold int) (analytics.GenerationSeries, error) {
	if mode == ModeAverage {
		if threshold < 1 {
			threshold = 1
		}
		if len(series) <= threshold {
			return series, nil
		}
		return average(series, threshold), nil
	}

	indices, err := SelectIndices(series, mode, threshold)
	if err != nil {
		return nil, err
	}
	if indices == nil {
		return series, nil
	}
	out := make(analytics.GenerationSeries, len(indices))
	for i, idx := range indices {
		out[i] = series[idx]
	}
	return out, nil
}

// SelectIndices returns the indices of series to keep, in ascending order,
// or nil when every point should be kept. Average mode selects the middle
// point of each bucket so callers holding richer records can still use it.
func SelectIndices(series analytics.GenerationSeries, mode Mode, threshold int) ([]int, error) {
	if mode == ModeNone || len(series) == 0 {
		return nil, nil
	}

	if mode == ModeAuto {
		if threshold <= 0 {
			threshold = DefaultAutoThreshold
		}
		if len(series) <= threshold {
			return nil, nil
		}
		mode = detectBestAlgorithm(series)
	}

	if threshold < 2 {
		threshold = 2
	}
	if len(series) <= threshold {
		return nil, nil
	}

	switch mode {
	case ModeLTTB:
		return lttb(series, threshold), nil
	case ModeMinMax:
		return minmax(series, threshold), nil
	case ModeM4:
		return m4(series, threshold), nil
	case ModeAverage:
		return bucketMidpoints(len(series), threshold), nil
	}
	return nil, fmt.Errorf("unknown downsampling mode: %s", mode)
}

// detectBestAlgorithm: spiky series keep extremes (minmax), moderately
// spiky ones use m4, smooth ones use lttb
func detectBestAlgorithm(series analytics.GenerationSeries) Mode {
	spikiness := calculateSpikiness(series.Values())
	switch {
	case spikiness > 0.2:
		return ModeMinMax
	case spikiness > 0.1:
		return ModeM4
	}
	return ModeLTTB
}

// calculateSpikiness is a 0..1 score combining outliers beyond 2σ and
// step changes larger than σ
func calculateSpikiness(values []float64) float64 {
	if len(values) < 10 {
		return 0
	}

	mean, stdDev := stat.PopMeanStdDev(values, nil)
	if stdDev == 0 {
		return 0
	}

	outliers, jumps := 0, 0
	for i, v := range values {
		if math.Abs(v-mean) > 2*stdDev {
			outliers++
		}
		if i > 0 && math.Abs(v-values[i-1]) > stdDev {
			jumps++
		}
	}

	spikiness := (float64(outliers)/float64(len(values)) + 1.5*float64(jumps)/float64(len(values)-1)) / 2.5
	return math.Min(spikiness, 1)
}

// lttb implements Largest-Triangle-Three-Buckets using generation as x
func lttb(data analytics.GenerationSeries, threshold int) []int {
	n := len(data)
	if threshold <= 2 {
		return []int{0, n - 1}
	}

	sampled := make([]int, 0, threshold)
	sampled = append(sampled, 0)

	bucketSize := float64(n-2) / float64(threshold-2)
	a := 0

	for i := 0; i < threshold-2; i++ {
		nextStart := int(math.Floor(float64(i+1)*bucketSize)) + 1
		nextEnd := int(math.Floor(float64(i+2)*bucketSize)) + 1
		if nextEnd > n {
			nextEnd = n
		}

		var avgX, avgY float64
		for j := nextStart; j < nextEnd; j++ {
			avgX += float64(data[j].Generation)
			avgY += data[j].Value
		}
		if count := nextEnd - nextStart; count > 0 {
			avgX /= float64(count)
			avgY /= float64(count)
		}

		from := int(math.Floor(float64(i)*bucketSize)) + 1
		to := int(math.Floor(float64(i+1)*bucketSize)) + 1

		ax, ay := float64(data[a].Generation), data[a].Value
		maxArea, maxIdx := -1.0, from
		for j := from; j < to; j++ {
			area := math.Abs((ax-avgX)*(data[j].Value-ay)-(ax-float64(data[j].Generation))*(avgY-ay)) * 0.5
			if area > maxArea {
				maxArea, maxIdx = area, j
			}
		}

		sampled = append(sampled, maxIdx)
		a = maxIdx
	}

	return append(sampled, n-1)
}

// bucketBounds splits n points into numBuckets contiguous ranges
func bucketBounds(n, numBuckets, i int) (start, end int) {
	size := float64(n) / float64(numBuckets)
	start = int(float64(i) * size)
	end = int(float64(i+1) * size)
	if end > n {
		end = n
	}
	return start, end
}

func extremes(data analytics.GenerationSeries, start, end int) (minIdx, maxIdx int) {
	minIdx, maxIdx = start, start
	for j := start + 1; j < end; j++ {
		if data[j].Value < data[minIdx].Value {
			minIdx = j
		}
		if data[j].Value > data[maxIdx].Value {
			maxIdx = j
		}
	}
	return minIdx, maxIdx
}

// minmax keeps the min and max of each bucket, in generation order
func minmax(data analytics.GenerationSeries, threshold int) []int {
	numBuckets := threshold / 2
	if numBuckets < 1 {
		numBuckets = 1
	}

	sampled := make([]int, 0, numBuckets*2)
	for i := 0; i < numBuckets; i++ {
		start, end := bucketBounds(len(data), numBuckets, i)
		if start >= end {
			continue
		}
		lo, hi := extremes(data, start, end)
		sampled = appendOrdered(sampled, lo, hi)
	}
	return sampled
}

// m4 keeps first, min, max and last of each bucket
func m4(data analytics.GenerationSeries, threshold int) []int {
	numBuckets := threshold / 4
	if numBuckets < 1 {
		numBuckets = 1
	}

	sampled := make([]int, 0, numBuckets*4)
	for i := 0; i < numBuckets; i++ {
		start, end := bucketBounds(len(data), numBuckets, i)
		if start >= end {
			continue
		}
		lo, hi := extremes(data, start, end)
		sampled = appendOrdered(sampled, start, lo, hi, end-1)
	}
	return sampled
}

// appendOrdered appends the distinct indices in ascending order
func appendOrdered(dst []int, idx ...int) []int {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && idx[j] < idx[j-1]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	for i, v := range idx {
		if i > 0 && v == idx[i-1] {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}

func bucketMidpoints(n, numBuckets int) []int {
	out := make([]int, 0, numBuckets)
	for i := 0; i < numBuckets; i++ {
		start, end := bucketBounds(n, numBuckets, i)
		if start < end {
			out = append(out, start+(end-start)/2)
		}
	}
	return out
}

func average(data analytics.GenerationSeries, numBuckets int) analytics.GenerationSeries {
	out := make(analytics.GenerationSeries, 0, numBuckets)
	for i := 0; i < numBuckets; i++ {
		start, end := bucketBounds(len(data), numBuckets, i)
		if start >= end {
			continue
		}
		sum := 0.0
		for j := start; j < end; j++ {
			sum += data[j].Value
		}
		mid := start + (end-start)/2
		out = append(out, analytics.GenerationPoint{
			Generation: data[mid].Generation,
			Value:      sum / float64(end-start),
		})
	}
	return out
}
