package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Mosaic merges grids with identical cell size and CRS into one grid covering
// their combined extent. Cells outside every input stay nodata; where inputs
// overlap, later grids win.
func Mosaic(grids []*Grid) (*Grid, error) {
	if len(grids) == 0 {
		return nil, eris.New("raster: mosaic of zero grids")
	}
	first := grids[0]
	minX, minY, maxX, maxY := first.Bounds()
	for _, g := range grids[1:] {
		if g.CellSize != first.CellSize {
			return nil, eris.Errorf("raster: mosaic cell size mismatch: %g vs %g", g.CellSize, first.CellSize)
		}
		if !g.SRS.Equal(first.SRS) {
			return nil, eris.Errorf("raster: mosaic CRS mismatch: %s vs %s", g.SRS, first.SRS)
		}
		x0, y0, x1, y1 := g.Bounds()
		minX = math.Min(minX, x0)
		minY = math.Min(minY, y0)
		maxX = math.Max(maxX, x1)
		maxY = math.Max(maxY, y1)
	}

	cols := int(math.Round((maxX - minX) / first.CellSize))
	rows := int(math.Round((maxY - minY) / first.CellSize))
	out, err := New(cols, rows, minX, minY, first.CellSize, first.SRS)
	if err != nil {
		return nil, err
	}
	out.NoData = first.NoData

	for _, g := range grids {
		colOff := int(math.Round((g.X0 - minX) / first.CellSize))
		southOff := int(math.Round((g.Y0 - minY) / first.CellSize))
		for row := 0; row < g.Rows; row++ {
			v := g.Data[row*g.Cols : (row+1)*g.Cols]
			for col, val := range v {
				if g.IsNoData(val) {
					continue
				}
				south := (g.Rows - 1 - row) + southOff
				out.SetValue(col+colOff, rows-1-south, val)
			}
		}
	}
	return out, nil
}
