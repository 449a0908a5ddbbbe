package geo

import (
	"math"
	"strings"
	"testing"
)

func TestDistanceZero(t *testing.T) {
	points := [][2]float64{{0, 0}, {40.7589, -73.9851}, {-33.8688, 151.2093}, {89.9, 179.9}}
	for _, p := range points {
		if d := Distance(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("expected 0 for %v, got %f", p, d)
		}
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{40.7589, -73.9851, 40.7614, -73.9776},
		{11.0168, 76.9558, 11.0796, 76.9410},
		{-1.2921, 36.8219, 51.5074, -0.1278},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1], p[2], p[3])
		ba := Distance(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-6 {
			t.Fatalf("distance not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestDistanceKnownStops(t *testing.T) {
	d := Distance(40.7589, -73.9851, 40.7614, -73.9776)
	if math.Abs(d-690) > 50 {
		t.Fatalf("expected roughly 700m, got %f", d)
	}
}

func TestETAMinutesKnownStops(t *testing.T) {
	eta := ETAMinutes(40.7589, -73.9851, 40.7614, -73.9776, DefaultSpeedMps)
	if eta == nil {
		t.Fatal("expected eta, got nil")
	}
	if *eta != 1 {
		t.Fatalf("expected 1 minute, got %d", *eta)
	}
}

func TestETAMinutesNonPositiveSpeed(t *testing.T) {
	for _, speed := range []float64{0, -1, -8} {
		if eta := ETAMinutes(40.7589, -73.9851, 40.7614, -73.9776, speed); eta != nil {
			t.Fatalf("expected nil eta for speed %v, got %d", speed, *eta)
		}
	}
}

func TestETAMinutesTruncates(t *testing.T) {
	// 0.004 degrees of latitude is ~445m, 55.6s at 8 m/s.
	eta := ETAMinutes(0, 10, 0.004, 10, DefaultSpeedMps)
	if eta == nil || *eta != 0 {
		t.Fatalf("expected 0 minutes for a sub-minute trip, got %v", eta)
	}
}

func TestRouteLineRoundTrip(t *testing.T) {
	wkbBytes, err := RouteLine([]Point{{40.7589, -73.9851}, {40.7614, -73.9776}, {40.7505, -73.9934}})
	if err != nil {
		t.Fatalf("route line: %v", err)
	}
	out, err := WKBToGeoJSON(wkbBytes)
	if err != nil {
		t.Fatalf("geojson: %v", err)
	}
	if !strings.Contains(out, `"LineString"`) {
		t.Fatalf("expected LineString geojson, got %s", out)
	}
}

func TestRouteLineTooShort(t *testing.T) {
	b, err := RouteLine([]Point{{1, 2}})
	if err != nil || b != nil {
		t.Fatalf("expected no geometry, got %v %v", b, err)
	}
}
