package geospatial

import "math"

const earthRadiusKm = 6371.0

// EarthRadiusMeters is the mean earth radius used by every distance in this package.
const EarthRadiusMeters = earthRadiusKm * 1000

// bboxSlack widens bounding boxes slightly so floating point error never
// excludes a point sitting exactly on the radius.
const bboxSlack = 1e-9

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// rounding can push a just past 1 for antipodal points
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns the smallest lat/lon box that contains every point whose
// Haversine distance from (lat, lon) is at most radiusMeters.
//
// When the circle reaches a pole the box spans all longitudes. When it crosses
// the antimeridian minLon < -180 or maxLon > 180; callers wrap as needed.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	if radiusMeters < 0 {
		radiusMeters = 0
	}
	ang := radiusMeters/EarthRadiusMeters*(1+bboxSlack) + bboxSlack
	latR := toRad(lat)

	minLatR := latR - ang
	maxLatR := latR + ang

	if minLatR <= -math.Pi/2 || maxLatR >= math.Pi/2 || ang >= math.Pi/2 {
		return math.Max(toDeg(minLatR), -90), -180, math.Min(toDeg(maxLatR), 90), 180
	}

	dLon := toDeg(math.Asin(math.Sin(ang) / math.Cos(latR)))
	if dLon >= 180 {
		return toDeg(minLatR), -180, toDeg(maxLatR), 180
	}
	return toDeg(minLatR), lon - dLon, toDeg(maxLatR), lon + dLon
}

// NormalizeLon wraps a longitude into [-180, 180).
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
