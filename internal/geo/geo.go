// Package geo holds the pure geodesic helpers used for ETA and proximity.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Distance.
const EarthRadiusMeters = 6371000.0

// DefaultSpeedMps is the assumed shuttle speed (~28.8 km/h).
const DefaultSpeedMps = 8.0

// Distance returns the great-circle distance in meters between two points
// using the haversine formula. Out-of-range coordinates still yield a number.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ETAMinutes estimates whole minutes to cover the straight-line distance at
// speedMps. The result is truncated, so 59 seconds reports as 0. It returns
// nil when speedMps is not positive.
func ETAMinutes(lat1, lon1, lat2, lon2, speedMps float64) *int {
	if speedMps <= 0 {
		return nil
	}
	seconds := Distance(lat1, lon1, lat2, lon2) / speedMps
	minutes := int(seconds / 60)
	return &minutes
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
