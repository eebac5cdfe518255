package cutoff

import "testing"

func TestKeep(t *testing.T) {
	tests := []struct {
		name      string
		distances []float64
		want      int
	}{
		{name: "empty", distances: nil, want: 0},
		{name: "single above quality floor", distances: []float64{0.6}, want: 0},
		{name: "single strong match", distances: []float64{0.3}, want: 1},
		{name: "quality floor is inclusive", distances: []float64{0.5}, want: 1},
		{name: "ceiling trims the tail", distances: []float64{0.1, 0.15, 0.8}, want: 2},
		{name: "ceiling is inclusive", distances: []float64{0.3, 0.75}, want: 1},
		{name: "pair with jump above best", distances: []float64{0.1, 0.25}, want: 1},
		{name: "pair with modest jump", distances: []float64{0.2, 0.3}, want: 2},
		{name: "late break", distances: []float64{0.1, 0.12, 0.5}, want: 2},
		{name: "break right after first", distances: []float64{0.1, 0.4, 0.41, 0.42}, want: 1},
		{name: "break keeps the cluster", distances: []float64{0.2, 0.21, 0.22, 0.6, 0.61}, want: 3},
		{name: "break after trailing cluster", distances: []float64{0.1, 0.12, 0.14, 0.5}, want: 3},
		{name: "uniform spread keeps all", distances: []float64{0.1, 0.2, 0.3, 0.4}, want: 4},
		{name: "tight cluster keeps all", distances: []float64{0.10, 0.11, 0.12, 0.13}, want: 4},
		{name: "duplicates keep all", distances: []float64{0.2, 0.2, 0.2}, want: 3},
	}

	th := DefaultThresholds()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.Keep(tt.distances)
			if got != tt.want {
				t.Errorf("Keep(%v) = %d, want %d", tt.distances, got, tt.want)
			}
		})
	}
}

func TestKeepBounded(t *testing.T) {
	th := DefaultThresholds()
	lists := [][]float64{
		{},
		{0.01},
		{0.2, 0.3, 0.31, 0.32, 0.7},
		{0.1, 0.1, 0.1, 0.74, 0.76, 0.9},
		{0.45, 0.46, 0.47, 0.48},
		{0.05, 0.5, 0.55, 0.6, 0.65, 0.7},
	}
	for _, d := range lists {
		got := th.Keep(d)
		within := 0
		for _, v := range d {
			if v <= th.MaxDistance {
				within++
			}
		}
		if got < 0 || got > within {
			t.Errorf("Keep(%v) = %d, want within [0, %d]", d, got, within)
		}
	}
}

func TestKeepCustomThresholds(t *testing.T) {
	// Permissive multiplier: the late break in {0.1, 0.12, 0.5} no longer
	// registers once the required ratio is out of reach.
	th := Thresholds{QualityFloor: 0.5, MaxDistance: 0.75, GapMultiplier: 100, AvgFloor: 0.01}
	if got := th.Keep([]float64{0.1, 0.12, 0.5}); got != 3 {
		t.Errorf("Keep with high multiplier = %d, want 3", got)
	}

	// Strict quality floor rejects what the default accepts.
	th = Thresholds{QualityFloor: 0.05, MaxDistance: 0.75, GapMultiplier: 2.5, AvgFloor: 0.01}
	if got := th.Keep([]float64{0.1, 0.12}); got != 0 {
		t.Errorf("Keep with low quality floor = %d, want 0", got)
	}
}
