// Package raster holds the in-memory raster data model: a single-band
// regular grid with an affine cell geometry and an attached coordinate
// reference system. Operations return new grids; cell data is never shared.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/terralab/geostat/internal/crs"
)

// Grid is a single-band raster. Data is row-major with row 0 at the top
// (north), matching the ESRI ASCII grid layout. X0/Y0 anchor the lower-left
// corner of the lower-left cell; cells are square with side CellSize.
type Grid struct {
	Cols, Rows int
	X0, Y0     float64
	CellSize   float64
	NoData     float64
	SRS        crs.SRS
	Data       []float64
}

// New allocates a grid with every cell set to the nodata value.
func New(cols, rows int, x0, y0, cellSize float64, srs crs.SRS) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, eris.Errorf("raster: invalid dimensions %dx%d", cols, rows)
	}
	if cellSize <= 0 {
		return nil, eris.Errorf("raster: invalid cell size %g", cellSize)
	}
	g := &Grid{
		Cols:     cols,
		Rows:     rows,
		X0:       x0,
		Y0:       y0,
		CellSize: cellSize,
		NoData:   -9999,
		SRS:      srs,
		Data:     make([]float64, cols*rows),
	}
	for i := range g.Data {
		g.Data[i] = g.NoData
	}
	return g, nil
}

// Value returns the cell value at the given column and row.
func (g *Grid) Value(col, row int) float64 {
	return g.Data[row*g.Cols+col]
}

// SetValue sets the cell value at the given column and row.
func (g *Grid) SetValue(col, row int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// Fill sets every cell to v. New grids start out all nodata, which marks
// every cell as masked out; filling with a placeholder marks them all as
// targets instead.
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// IsNoData reports whether v is this grid's nodata marker.
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v)
}

// Bounds returns the outer envelope of the grid as minX, minY, maxX, maxY.
func (g *Grid) Bounds() (minX, minY, maxX, maxY float64) {
	return g.X0, g.Y0,
		g.X0 + float64(g.Cols)*g.CellSize,
		g.Y0 + float64(g.Rows)*g.CellSize
}

// CellCenter returns the map coordinates of a cell's center.
func (g *Grid) CellCenter(col, row int) (x, y float64) {
	x = g.X0 + (float64(col)+0.5)*g.CellSize
	y = g.Y0 + (float64(g.Rows-1-row)+0.5)*g.CellSize
	return x, y
}

// CellAt returns the column and row containing the map coordinate, and
// whether the coordinate falls inside the grid.
func (g *Grid) CellAt(x, y float64) (col, row int, ok bool) {
	minX, minY, maxX, maxY := g.Bounds()
	if x < minX || x >= maxX || y < minY || y >= maxY {
		return 0, 0, false
	}
	col = int((x - minX) / g.CellSize)
	row = g.Rows - 1 - int((y-minY)/g.CellSize)
	return col, row, true
}

// At returns the nearest-cell value at a map coordinate. The second return
// is false outside the grid or on a nodata cell.
func (g *Grid) At(x, y float64) (float64, bool) {
	col, row, ok := g.CellAt(x, y)
	if !ok {
		return 0, false
	}
	v := g.Value(col, row)
	if g.IsNoData(v) {
		return 0, false
	}
	return v, true
}

// Bilinear returns the bilinearly interpolated value at a map coordinate,
// falling back to the nearest cell when a neighbor is nodata.
func (g *Grid) Bilinear(x, y float64) (float64, bool) {
	minX, minY, _, _ := g.Bounds()
	fx := (x-minX)/g.CellSize - 0.5
	fy := (y-minY)/g.CellSize - 0.5

	c0 := int(math.Floor(fx))
	r0south := int(math.Floor(fy))
	tx := fx - float64(c0)
	ty := fy - float64(r0south)

	var vals [4]float64
	for i, off := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		col := c0 + off[0]
		south := r0south + off[1]
		if col < 0 || col >= g.Cols || south < 0 || south >= g.Rows {
			return g.At(x, y)
		}
		v := g.Value(col, g.Rows-1-south)
		if g.IsNoData(v) {
			return g.At(x, y)
		}
		vals[i] = v
	}

	top := vals[2]*(1-tx) + vals[3]*tx
	bottom := vals[0]*(1-tx) + vals[1]*tx
	return bottom*(1-ty) + top*ty, true
}

// Summary holds descriptive statistics over the valid cells of a grid.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Stats computes descriptive statistics over the valid cells.
func (g *Grid) Stats() Summary {
	valid := make([]float64, 0, len(g.Data))
	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range g.Data {
		if g.IsNoData(v) {
			continue
		}
		valid = append(valid, v)
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Count = len(valid)
	if s.Count == 0 {
		return Summary{}
	}
	s.Mean = stat.Mean(valid, nil)
	s.StdDev = stat.StdDev(valid, nil)
	return s
}

// ValidValues returns the values of all non-nodata cells.
func (g *Grid) ValidValues() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	return &out
}
