// Package geo provides great-circle distance between WGS84 points.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the haversine distance between two points in kilometers.
func Distance(a, b Point) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*sinLon*sinLon

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// BoundingBox returns the latitude/longitude box that contains every point
// within radiusKm of the center. Longitude spread widens toward the poles.
func BoundingBox(center Point, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := degrees(radiusKm / earthRadiusKm)
	minLat = center.Latitude - latDelta
	maxLat = center.Latitude + latDelta

	cosLat := math.Cos(radians(center.Latitude))
	if cosLat < 1e-9 {
		return minLat, maxLat, -180, 180
	}
	lonDelta := degrees(radiusKm / (earthRadiusKm * cosLat))
	return minLat, maxLat, center.Longitude - lonDelta, center.Longitude + lonDelta
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
