package crs

import (
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Transform reprojects coordinates from a source to a destination SRS.
// Geometries are copied, never mutated in place.
type Transform struct {
	Src SRS
	Dst SRS
	fwd proj.Transformer
}

// NewTransform builds a transform between two reference systems.
// An unknown or malformed proj4 string surfaces as an immediate error.
func NewTransform(src, dst SRS) (*Transform, error) {
	srcSR, err := proj.Parse(src.Proj4)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: parse source %s", src)
	}
	dstSR, err := proj.Parse(dst.Proj4)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: parse destination %s", dst)
	}
	fwd, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: transform %s to %s", src, dst)
	}
	return &Transform{Src: src, Dst: dst, fwd: fwd}, nil
}

// Point reprojects a single coordinate pair.
func (t *Transform) Point(x, y float64) (float64, float64, error) {
	px, py, err := t.fwd(x, y)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "crs: project point (%g, %g)", x, y)
	}
	return px, py, nil
}

// Coords reprojects a slice of XY coordinates, returning a new slice.
func (t *Transform) Coords(coords []geom.Coord) ([]geom.Coord, error) {
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		x, y, err := t.Point(c[0], c[1])
		if err != nil {
			return nil, err
		}
		out[i] = geom.Coord{x, y}
	}
	return out, nil
}

// Geom reprojects a geometry, returning a new geometry of the same type.
// Only XY layouts are supported; the pipeline never carries Z or M values.
func (t *Transform) Geom(g geom.T) (geom.T, error) {
	if g.Layout() != geom.XY {
		return nil, eris.Errorf("crs: unsupported layout %v", g.Layout())
	}

	flat, err := t.flatCoords(g.FlatCoords())
	if err != nil {
		return nil, err
	}

	switch gg := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(geom.XY, flat), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, flat), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(geom.XY, flat), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(geom.XY, flat, copyInts(gg.Ends())), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(geom.XY, flat), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(geom.XY, flat, copyInts(gg.Ends())), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(geom.XY, flat, copyIntss(gg.Endss())), nil
	default:
		return nil, eris.Errorf("crs: unsupported geometry type %T", g)
	}
}

// flatCoords projects the XY pairs of a flat coordinate slice.
func (t *Transform) flatCoords(flat []float64) ([]float64, error) {
	out := make([]float64, len(flat))
	for i := 0; i+1 < len(flat); i += 2 {
		x, y, err := t.Point(flat[i], flat[i+1])
		if err != nil {
			return nil, err
		}
		out[i], out[i+1] = x, y
	}
	return out, nil
}

func copyInts(ends []int) []int {
	out := make([]int, len(ends))
	copy(out, ends)
	return out
}

func copyIntss(endss [][]int) [][]int {
	out := make([][]int, len(endss))
	for i, ends := range endss {
		out[i] = copyInts(ends)
	}
	return out
}
