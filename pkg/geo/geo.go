// Package geo holds the spherical math used for geofencing and the mock walker.
package geo

import (
	"math"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000

// Point represents a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p is a finite WGS84 coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the haversine great-circle distance between a and b in meters.
// Swapping the arguments yields the same bits; NaN and Inf inputs propagate.
func Distance(a, b Point) float64 {
	sinLat := math.Sin(rad(b.Lat-a.Lat) / 2)
	sinLon := math.Sin(rad(b.Lon-a.Lon) / 2)
	h := sinLat*sinLat + sinLon*sinLon*(math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat)))
	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DestinationPoint moves meters along the initial bearing (degrees) from start.
func DestinationPoint(start Point, meters, bearing float64) Point {
	phi, lambda, theta := rad(start.Lat), rad(start.Lon), rad(bearing)
	delta := meters / EarthRadius

	phi2 := math.Asin(math.Sin(phi)*math.Cos(delta) + math.Cos(phi)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi), math.Cos(delta)-math.Sin(phi)*math.Sin(phi2))
	return Point{Lat: deg(phi2), Lon: deg(lambda2)}
}

// Bearing returns the initial bearing from a to b in degrees, 0..360.
func Bearing(a, b Point) float64 {
	phi1, phi2 := rad(a.Lat), rad(b.Lat)
	dLambda := rad(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(deg(math.Atan2(y, x))+360, 360)
}
