// Package geo provides great-circle distance helpers for POI proximity queries.
package geo

import "math"

const (
	// EarthRadiusKm is the IUGG mean Earth radius.
	EarthRadiusKm = 6371.0088

	// MaxRadiusKm is the largest radius accepted by nearby queries.
	MaxRadiusKm = 1000.0

	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Point is a WGS 84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the haversine great-circle distance between a and b in kilometres.
// Coordinates are expected to be within their legal ranges; they are not re-validated.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(normalizeLonDelta(b.Lon - a.Lon))

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h marginally outside [0, 1] near the poles and antipodes.
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether the two coordinates are at most radiusKm apart.
func WithinRadius(lat1, lon1, lat2, lon2, radiusKm float64) bool {
	return Distance(Point{Lat: lat1, Lon: lon1}, Point{Lat: lat2, Lon: lon2}) <= radiusKm
}

// ValidLatitude reports whether lat is a finite value in [-90, 90].
func ValidLatitude(lat float64) bool {
	return lat >= MinLatitude && lat <= MaxLatitude
}

// ValidLongitude reports whether lon is a finite value in [-180, 180].
func ValidLongitude(lon float64) bool {
	return lon >= MinLongitude && lon <= MaxLongitude
}

// ValidRadius reports whether radiusKm is in (0, MaxRadiusKm].
func ValidRadius(radiusKm float64) bool {
	return radiusKm > 0 && radiusKm <= MaxRadiusKm
}

// normalizeLonDelta maps a longitude difference into [-180, 180] so that
// points on either side of the antimeridian compare as neighbours.
func normalizeLonDelta(d float64) float64 {
	d = math.Mod(d+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
