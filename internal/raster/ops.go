package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/vector"
)

// Crop returns the subgrid covering the given bounding box, snapped outward
// to cell boundaries. The box must overlap the grid.
func (g *Grid) Crop(minX, minY, maxX, maxY float64) (*Grid, error) {
	gMinX, gMinY, gMaxX, gMaxY := g.Bounds()
	minX = math.Max(minX, gMinX)
	minY = math.Max(minY, gMinY)
	maxX = math.Min(maxX, gMaxX)
	maxY = math.Min(maxY, gMaxY)
	if minX >= maxX || minY >= maxY {
		return nil, eris.New("raster: crop box does not overlap grid")
	}

	c0 := int(math.Floor((minX - gMinX) / g.CellSize))
	c1 := int(math.Ceil((maxX - gMinX) / g.CellSize))
	s0 := int(math.Floor((minY - gMinY) / g.CellSize)) // south row offset
	s1 := int(math.Ceil((maxY - gMinY) / g.CellSize))
	if c1 > g.Cols {
		c1 = g.Cols
	}
	if s1 > g.Rows {
		s1 = g.Rows
	}

	cols := c1 - c0
	rows := s1 - s0
	out := &Grid{
		Cols:     cols,
		Rows:     rows,
		X0:       gMinX + float64(c0)*g.CellSize,
		Y0:       gMinY + float64(s0)*g.CellSize,
		CellSize: g.CellSize,
		NoData:   g.NoData,
		SRS:      g.SRS,
		Data:     make([]float64, cols*rows),
	}
	for row := 0; row < rows; row++ {
		srcRow := g.Rows - s1 + row
		copy(
			out.Data[row*cols:(row+1)*cols],
			g.Data[srcRow*g.Cols+c0:srcRow*g.Cols+c1],
		)
	}
	return out, nil
}

// Mask returns a copy of the grid with every cell whose center falls outside
// the polygon set to nodata. The polygon must be in the grid's CRS.
func (g *Grid) Mask(poly geom.T) *Grid {
	out := g.Clone()
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			x, y := g.CellCenter(col, row)
			if !vector.PointInPolygon(geom.Coord{x, y}, poly) {
				out.SetValue(col, row, g.NoData)
			}
		}
	}
	return out
}

// Warp resamples the grid into the template's CRS and cell geometry.
// Template cell centers are transformed back into the source CRS and filled
// by bilinear interpolation; centers landing outside the source become
// nodata.
func (g *Grid) Warp(template *Grid) (*Grid, error) {
	inv, err := crs.NewTransform(template.SRS, g.SRS)
	if err != nil {
		return nil, eris.Wrap(err, "raster: warp transform")
	}

	out := template.Clone()
	out.NoData = g.NoData
	for row := 0; row < out.Rows; row++ {
		for col := 0; col < out.Cols; col++ {
			x, y := out.CellCenter(col, row)
			sx, sy, err := inv.Point(x, y)
			if err != nil {
				return nil, eris.Wrap(err, "raster: warp point")
			}
			v, ok := g.Bilinear(sx, sy)
			if !ok {
				v = g.NoData
			}
			out.SetValue(col, row, v)
		}
	}
	return out, nil
}

// Resample returns the grid resampled to a new cell size using nearest-cell
// lookups at the target cell centers.
func (g *Grid) Resample(cellSize float64) (*Grid, error) {
	if cellSize <= 0 {
		return nil, eris.Errorf("raster: invalid cell size %g", cellSize)
	}
	minX, minY, maxX, maxY := g.Bounds()
	cols := int(math.Ceil((maxX - minX) / cellSize))
	rows := int(math.Ceil((maxY - minY) / cellSize))
	out := &Grid{
		Cols:     cols,
		Rows:     rows,
		X0:       minX,
		Y0:       minY,
		CellSize: cellSize,
		NoData:   g.NoData,
		SRS:      g.SRS,
		Data:     make([]float64, cols*rows),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := out.CellCenter(col, row)
			v, ok := g.At(x, y)
			if !ok {
				v = g.NoData
			}
			out.SetValue(col, row, v)
		}
	}
	return out, nil
}
