package vector

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/terralab/geostat/internal/crs"
)

// ReadShapefile reads a shapefile into a collection. Shapefiles carry their
// CRS in a sidecar .prj file which go-shp does not parse, so the caller
// supplies the SRS. Records with unsupported or malformed shapes are skipped.
func ReadShapefile(path string, srs crs.SRS) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	out := NewCollection(srs)
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		out.Features = append(out.Features, &Feature{
			ID:         fmt.Sprintf("%d", n),
			Geometry:   g,
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("vector: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return out, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry.
// Returns nil for unsupported or nil shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine to a MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		ls := geom.NewLineStringFlat(geom.XY, partFlatCoords(pl.Points, pl.Parts, i, pl.NumParts))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("vector: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a MultiPolygon.
// Each shapefile part becomes its own single-ring polygon; hole/shell
// nesting is not reconstructed.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		ring := geom.NewLinearRingFlat(geom.XY, partFlatCoords(p.Points, p.Parts, i, p.NumParts))
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("vector: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("vector: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// partFlatCoords extracts the flat XY coordinates of one shapefile part.
func partFlatCoords(points []shp.Point, parts []int32, i, numParts int32) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < numParts {
		end = parts[i+1]
	}
	flat := make([]float64, 0, (end-start)*2)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
	}
	return flat
}
