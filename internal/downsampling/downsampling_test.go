package downsampling

import (
	"math"
	"testing"

	"github.com/bactolab/resistscope/internal/analytics"
)

func makeSeries(n int, f func(i int) float64) analytics.GenerationSeries {
	s := make(analytics.GenerationSeries, n)
	for i := range s {
		s[i] = analytics.GenerationPoint{Generation: i, Value: f(i)}
	}
	return s
}

func assertAscending(t *testing.T, indices []int) {
	t.Helper()
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			t.Fatalf("indices not strictly ascending at %d: %v", i, indices)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"lttb", ModeLTTB, false},
		{"minmax", ModeMinMax, false},
		{"avg", ModeAverage, false},
		{"m4", ModeM4, false},
		{"none", ModeNone, false},
		{"cubic", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSelectIndices_NoDownsampling(t *testing.T) {
	series := makeSeries(50, func(i int) float64 { return float64(i) })

	for _, mode := range []Mode{ModeNone, ModeAuto, ModeLTTB} {
		indices, err := SelectIndices(series, mode, 100)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", mode, err)
		}
		if indices != nil {
			t.Errorf("%s: expected nil for short series, got %d indices", mode, len(indices))
		}
	}
}

func TestLTTB_KeepsEndpoints(t *testing.T) {
	series := makeSeries(1000, func(i int) float64 { return math.Sin(float64(i) / 20) })

	indices, err := SelectIndices(series, ModeLTTB, 100)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(indices) != 100 {
		t.Fatalf("expected 100 indices, got %d", len(indices))
	}
	if indices[0] != 0 || indices[len(indices)-1] != 999 {
		t.Errorf("first/last must be kept, got %d..%d", indices[0], indices[len(indices)-1])
	}
	assertAscending(t, indices)
}

func TestMinMax_PreservesSpike(t *testing.T) {
	series := makeSeries(1000, func(i int) float64 {
		if i == 537 {
			return 1
		}
		return 0.1
	})

	out, err := Downsample(series, ModeMinMax, 50)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(out) > 50 {
		t.Errorf("expected at most 50 points, got %d", len(out))
	}
	found := false
	for _, p := range out {
		if p.Generation == 537 && p.Value == 1 {
			found = true
		}
	}
	if !found {
		t.Error("minmax must keep the resistance spike")
	}
}

func TestM4_Ordered(t *testing.T) {
	series := makeSeries(400, func(i int) float64 { return float64((i * 37) % 101) })

	indices, err := SelectIndices(series, ModeM4, 40)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(indices) > 40 {
		t.Errorf("expected at most 40 indices, got %d", len(indices))
	}
	assertAscending(t, indices)
}

func TestAverage(t *testing.T) {
	series := makeSeries(10, func(i int) float64 { return float64(i) })

	out, err := Downsample(series, ModeAverage, 5)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(out))
	}
	// buckets {0,1},{2,3},... average to 0.5, 2.5, ...
	for i, p := range out {
		want := float64(2*i) + 0.5
		if p.Value != want {
			t.Errorf("bucket %d value = %v, want %v", i, p.Value, want)
		}
		if p.Generation != 2*i+1 {
			t.Errorf("bucket %d generation = %d, want %d", i, p.Generation, 2*i+1)
		}
	}

	indices, err := SelectIndices(series, ModeAverage, 5)
	if err != nil || len(indices) != 5 {
		t.Fatalf("expected 5 midpoints, got %v (%v)", indices, err)
	}
	assertAscending(t, indices)
}

func TestAuto_PicksByShape(t *testing.T) {
	smooth := makeSeries(100, func(i int) float64 { return float64(i) })
	if mode := detectBestAlgorithm(smooth); mode != ModeLTTB {
		t.Errorf("smooth series: got %s, want lttb", mode)
	}

	spiky := makeSeries(100, func(i int) float64 {
		if i%2 == 0 {
			return 0
		}
		return 1
	})
	if mode := detectBestAlgorithm(spiky); mode != ModeMinMax {
		t.Errorf("alternating series: got %s, want minmax", mode)
	}

	indices, err := SelectIndices(smooth, ModeAuto, 20)
	if err != nil || len(indices) != 20 {
		t.Errorf("auto on long series should downsample to 20, got %d (%v)", len(indices), err)
	}
}

func TestCalculateSpikiness(t *testing.T) {
	if s := calculateSpikiness([]float64{1, 2, 3}); s != 0 {
		t.Errorf("short series spikiness = %v, want 0", s)
	}
	if s := calculateSpikiness(make([]float64, 20)); s != 0 {
		t.Errorf("constant series spikiness = %v, want 0", s)
	}
}
