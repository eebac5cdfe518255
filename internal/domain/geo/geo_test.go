package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{name: "same point", lat1: 55.75, lon1: 37.62, lat2: 55.75, lon2: 37.62, wantKm: 0, tolKm: 0.001},
		{name: "one degree at equator", lat1: 0, lon1: 0, lat2: 0, lon2: 1, wantKm: 111.19, tolKm: 0.1},
		{name: "moscow to saint petersburg", lat1: 55.7558, lon1: 37.6173, lat2: 59.9343, lon2: 30.3351, wantKm: 634, tolKm: 5},
		{name: "berlin to paris", lat1: 52.52, lon1: 13.405, lat2: 48.8566, lon2: 2.3522, wantKm: 878, tolKm: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("Haversine() = %.2f km, want %.2f±%.2f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	ab := Haversine(41.0, 29.0, 52.5, 13.4)
	ba := Haversine(52.5, 13.4, 41.0, 29.0)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestWithinRadius(t *testing.T) {
	lat := 59.9343
	lon := 30.3351

	// ~634 km away from the origin.
	if WithinRadius(55.7558, 37.6173, &lat, &lon, 500) {
		t.Error("point 634 km away kept inside 500 km radius")
	}
	if !WithinRadius(55.7558, 37.6173, &lat, &lon, 700) {
		t.Error("point 634 km away dropped from 700 km radius")
	}
	if !WithinRadius(55.7558, 37.6173, nil, nil, 1) {
		t.Error("candidate without coordinates must be kept")
	}
	if !WithinRadius(55.7558, 37.6173, &lat, nil, 1) {
		t.Error("candidate with partial coordinates must be kept")
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.01, 0, false},
		{0, -180.5, false},
	}
	for _, tt := range tests {
		if got := ValidCoordinates(tt.lat, tt.lon); got != tt.want {
			t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
		}
	}
}
