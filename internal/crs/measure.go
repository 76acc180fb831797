package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// AuthalicRadius is the radius of the sphere with the same surface area as
// the WGS84 ellipsoid, in meters.
const AuthalicRadius = 6371008.8

// PlanarArea returns the area of a polygonal geometry in squared map units,
// holes subtracted. Non-areal geometries have zero area.
func PlanarArea(g geom.T) float64 {
	total := 0.0
	forEachRing(g, func(ring []float64, hole bool) {
		a := math.Abs(shoelace(ring))
		if hole {
			total -= a
		} else {
			total += a
		}
	})
	return total
}

// shoelace returns the signed planar area of a closed ring in flat XY coords.
func shoelace(ring []float64) float64 {
	n := len(ring) / 2
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += ring[2*i]*ring[2*j+1] - ring[2*j]*ring[2*i+1]
	}
	return sum / 2
}

// SphericalArea returns the area in square meters of a polygonal geometry
// whose coordinates are lon/lat degrees, computed on the authalic sphere.
// This is the ellipsoidal-free cross-check for projected area computations.
func SphericalArea(g geom.T, srs SRS) (float64, error) {
	if !srs.IsGeographic() {
		return 0, eris.Errorf("crs: spherical area requires geographic coordinates, got %s", srs)
	}
	total := 0.0
	forEachRing(g, func(ring []float64, hole bool) {
		a := math.Abs(sphericalRingArea(ring))
		if hole {
			total -= a
		} else {
			total += a
		}
	})
	return total, nil
}

// sphericalRingArea computes the signed area of a lon/lat ring on the sphere
// using the spherical-excess approximation over trapezoids.
func sphericalRingArea(ring []float64) float64 {
	n := len(ring) / 2
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		lon1 := ring[2*i] * math.Pi / 180
		lat1 := ring[2*i+1] * math.Pi / 180
		lon2 := ring[2*j] * math.Pi / 180
		lat2 := ring[2*j+1] * math.Pi / 180
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return sum * AuthalicRadius * AuthalicRadius / 2
}

// Haversine returns the great-circle distance in meters between two lon/lat
// points on the authalic sphere.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	const rad = math.Pi / 180
	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * AuthalicRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// forEachRing visits every ring of a Polygon or MultiPolygon as a flat XY
// slice. The first ring of each polygon is the shell, the rest are holes.
func forEachRing(g geom.T, fn func(ring []float64, hole bool)) {
	switch gg := g.(type) {
	case *geom.Polygon:
		visitPolygonRings(gg.FlatCoords(), gg.Ends(), fn)
	case *geom.MultiPolygon:
		flat := gg.FlatCoords()
		offset := 0
		for _, ends := range gg.Endss() {
			if len(ends) == 0 {
				continue
			}
			local := make([]int, len(ends))
			for i, e := range ends {
				local[i] = e - offset
			}
			last := ends[len(ends)-1]
			visitPolygonRings(flat[offset:last], local, fn)
			offset = last
		}
	case *geom.LinearRing:
		fn(gg.FlatCoords(), false)
	}
}

func visitPolygonRings(flat []float64, ends []int, fn func(ring []float64, hole bool)) {
	start := 0
	for i, end := range ends {
		fn(flat[start:end], i > 0)
		start = end
	}
}
